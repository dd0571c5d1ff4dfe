package retropay

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-retropay/internal/domain/retropay"
	"github.com/shopspring/decimal"
)

// DistributionInput - everything the calculator needs to build a distribution
type DistributionInput struct {
	EffectiveFrom    time.Time
	EffectiveTo      time.Time
	OldAmount        decimal.Decimal
	NewAmount        decimal.Decimal
	Mode             retropay.DistributionMode
	PaymentMonth     *int
	PaymentYear      *int
	InstallmentCount *int
	Installments     []retropay.Installment
}

type DistributionCalculator struct {
	now func() time.Time
}

func NewDistributionCalculator(now func() time.Time) *DistributionCalculator {
	if now == nil {
		now = time.Now
	}
	return &DistributionCalculator{now: now}
}

// Calculate computes the retro pay total for the effective range and splits it
// into installments. The returned installments always sum to TotalAmount.
func (c *DistributionCalculator) Calculate(input DistributionInput) (retropay.Distribution, error) {
	if input.EffectiveFrom.After(input.EffectiveTo) {
		return retropay.Distribution{}, retropay.ErrInvalidDateRange
	}

	mode := input.Mode
	if mode == "" {
		mode = retropay.DistributionSingle
	}

	oldAmount := input.OldAmount.Round(retropay.AmountScale)
	newAmount := input.NewAmount.Round(retropay.AmountScale)
	difference := newAmount.Sub(oldAmount)
	monthsCount := MonthsBetween(input.EffectiveFrom, input.EffectiveTo)
	total := difference.Mul(decimal.NewFromInt(int64(monthsCount)))
	if total.Abs().GreaterThan(retropay.MaxAmount) {
		return retropay.Distribution{}, fmt.Errorf("%w: total %s", retropay.ErrAmountOutOfRange, total.StringFixed(retropay.AmountScale))
	}

	dist := retropay.Distribution{
		Mode:        mode,
		Difference:  difference,
		MonthsCount: monthsCount,
		TotalAmount: total,
	}

	var err error
	switch mode {
	case retropay.DistributionSingle:
		month, year := c.startPeriod(input.PaymentMonth, input.PaymentYear)
		if !validPeriod(month, year) {
			return retropay.Distribution{}, retropay.ErrInvalidInstallment
		}
		dist.Installments = []retropay.Installment{{Month: month, Year: year, Amount: total}}
	case retropay.DistributionEqualSplit:
		dist.Installments, err = c.equalSplit(total, input)
	case retropay.DistributionCustomAmounts:
		dist.Installments, err = customSplit(total, input.Installments)
	default:
		return retropay.Distribution{}, retropay.ErrInvalidDistributionMode
	}
	if err != nil {
		return retropay.Distribution{}, err
	}

	return dist, nil
}

func (c *DistributionCalculator) equalSplit(total decimal.Decimal, input DistributionInput) ([]retropay.Installment, error) {
	if input.InstallmentCount == nil {
		return nil, retropay.ErrInvalidInstallmentCount
	}
	n := *input.InstallmentCount
	if n < retropay.MinInstallments || n > retropay.MaxInstallments {
		return nil, retropay.ErrInvalidInstallmentCount
	}

	month, year := c.startPeriod(input.PaymentMonth, input.PaymentYear)
	if !validPeriod(month, year) {
		return nil, retropay.ErrInvalidInstallment
	}

	count := decimal.NewFromInt(int64(n))
	per := total.Div(count).RoundFloor(retropay.AmountScale)
	remainder := total.Sub(per.Mul(count)).Round(retropay.AmountScale)

	installments := make([]retropay.Installment, 0, n)
	for i := 0; i < n; i++ {
		amount := per
		if i == 0 {
			amount = per.Add(remainder)
		}
		m, y := AddMonths(month, year, i)
		if !validPeriod(m, y) {
			return nil, retropay.ErrInvalidInstallment
		}
		installments = append(installments, retropay.Installment{Month: m, Year: y, Amount: amount})
	}

	return installments, nil
}

func customSplit(total decimal.Decimal, requested []retropay.Installment) ([]retropay.Installment, error) {
	if len(requested) < retropay.MinInstallments {
		return nil, retropay.ErrTooFewInstallments
	}
	if len(requested) > retropay.MaxInstallments {
		return nil, retropay.ErrTooManyInstallments
	}

	installments := make([]retropay.Installment, 0, len(requested))
	sum := decimal.Zero
	for i, inst := range requested {
		if !validPeriod(inst.Month, inst.Year) {
			return nil, fmt.Errorf("%w: installment %d has month %d year %d", retropay.ErrInvalidInstallment, i+1, inst.Month, inst.Year)
		}
		amount := inst.Amount.Round(retropay.AmountScale)
		if amount.Abs().GreaterThan(retropay.MaxAmount) {
			return nil, fmt.Errorf("%w: installment %d amount %s", retropay.ErrAmountOutOfRange, i+1, amount.StringFixed(retropay.AmountScale))
		}
		sum = sum.Add(amount)
		installments = append(installments, retropay.Installment{Month: inst.Month, Year: inst.Year, Amount: amount})
	}

	residual := total.Sub(sum)
	if residual.Abs().GreaterThan(retropay.CustomAmountTolerance) {
		return nil, fmt.Errorf("%w: installments sum to %s, expected %s",
			retropay.ErrAmountMismatch, sum.StringFixed(retropay.AmountScale), total.StringFixed(retropay.AmountScale))
	}

	// Fold the accepted rounding residual into the first installment so the
	// group reconciles to the cent.
	installments[0].Amount = installments[0].Amount.Add(residual)
	if installments[0].Amount.Abs().GreaterThan(retropay.MaxAmount) {
		return nil, fmt.Errorf("%w: installment 1 amount %s", retropay.ErrAmountOutOfRange, installments[0].Amount.StringFixed(retropay.AmountScale))
	}

	return installments, nil
}

func (c *DistributionCalculator) startPeriod(month, year *int) (int, int) {
	now := c.now()
	m, y := int(now.Month()), now.Year()
	if month != nil {
		m = *month
	}
	if year != nil {
		y = *year
	}
	return m, y
}

// MonthsBetween counts calendar months touched by the inclusive range, ignoring days.
func MonthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month()) + 1
}

// AddMonths advances a (month, year) period by offset months.
func AddMonths(month, year, offset int) (int, int) {
	idx := year*12 + (month - 1) + offset
	return idx%12 + 1, idx / 12
}

func validPeriod(month, year int) bool {
	return month >= 1 && month <= 12 && year >= retropay.MinPaymentYear && year <= retropay.MaxPaymentYear
}
