package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/hris-retropay/internal/domain/retropay"
	"github.com/cmlabs-hris/hris-retropay/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const retroPaySelectColumns = `
	rp.id, rp.company_id, rp.employee_id, rp.reason, rp.effective_from, rp.effective_to,
	rp.old_amount, rp.new_amount, rp.difference, rp.months_count, rp.total_amount,
	rp.payment_month, rp.payment_year, rp.distribution_mode, rp.installment_number, rp.installment_count,
	rp.status, rp.group_id, rp.notes, rp.created_by_id, rp.approved_by_id,
	rp.approved_at, rp.paid_at, rp.cancelled_at, rp.created_at, rp.updated_at,
	e.full_name, e.employee_code
`

// retroPaySetStatus is shared by the conditional transitions. $1 company, $2 target
// (entry, group or month), $3 allowed statuses; $4.. the update fields.
const retroPaySetStatus = `
	SET status = $4,
		approved_by_id = COALESCE($5, approved_by_id),
		approved_at = COALESCE($6, approved_at),
		paid_at = COALESCE($7, paid_at),
		cancelled_at = COALESCE($8, cancelled_at),
		notes = CASE WHEN $9::text IS NULL THEN notes ELSE COALESCE(notes, '') || $10 || $9::text END,
		updated_at = NOW()
`

type rowScanner interface {
	Scan(dest ...any) error
}

type retroPayRepositoryImpl struct {
	db *database.DB
}

func NewRetroPayRepository(db *database.DB) retropay.RetroPayRepository {
	return &retroPayRepositoryImpl{db: db}
}

func scanRetroPay(row rowScanner) (retropay.RetroPayEntry, error) {
	var rp retropay.RetroPayEntry
	err := row.Scan(
		&rp.ID, &rp.CompanyID, &rp.EmployeeID, &rp.Reason, &rp.EffectiveFrom, &rp.EffectiveTo,
		&rp.OldAmount, &rp.NewAmount, &rp.Difference, &rp.MonthsCount, &rp.TotalAmount,
		&rp.PaymentMonth, &rp.PaymentYear, &rp.DistributionMode, &rp.InstallmentNumber, &rp.InstallmentCount,
		&rp.Status, &rp.GroupID, &rp.Notes, &rp.CreatedByID, &rp.ApprovedByID,
		&rp.ApprovedAt, &rp.PaidAt, &rp.CancelledAt, &rp.CreatedAt, &rp.UpdatedAt,
		&rp.EmployeeName, &rp.EmployeeCode,
	)
	return rp, err
}

func collectRetroPays(rows pgx.Rows) ([]retropay.RetroPayEntry, error) {
	defer rows.Close()

	entries := make([]retropay.RetroPayEntry, 0)
	for rows.Next() {
		rp, err := scanRetroPay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan retro pay: %w", err)
		}
		entries = append(entries, rp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate retro pays: %w", err)
	}

	return entries, nil
}

func statusStrings(statuses []retropay.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func updateArgs(update retropay.StatusUpdate) []any {
	return []any{
		update.Status,
		update.ApprovedByID,
		update.ApprovedAt,
		update.PaidAt,
		update.CancelledAt,
		update.AppendNote,
		retropay.CancelNoteMarker,
	}
}

// CreateGroup implements retropay.RetroPayRepository.
func (r *retroPayRepositoryImpl) CreateGroup(ctx context.Context, entries []retropay.RetroPayEntry) ([]retropay.RetroPayEntry, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO retro_pays (
			id, company_id, employee_id, reason, effective_from, effective_to,
			old_amount, new_amount, difference, months_count, total_amount,
			payment_month, payment_year, distribution_mode, installment_number, installment_count,
			status, group_id, notes, created_by_id,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16,
			$17, $18, $19, $20,
			NOW(), NOW()
		) RETURNING created_at, updated_at
	`

	created := make([]retropay.RetroPayEntry, 0, len(entries))
	for _, rp := range entries {
		err := q.QueryRow(ctx, query,
			rp.ID, rp.CompanyID, rp.EmployeeID, rp.Reason, rp.EffectiveFrom, rp.EffectiveTo,
			rp.OldAmount, rp.NewAmount, rp.Difference, rp.MonthsCount, rp.TotalAmount,
			rp.PaymentMonth, rp.PaymentYear, rp.DistributionMode, rp.InstallmentNumber, rp.InstallmentCount,
			rp.Status, rp.GroupID, rp.Notes, rp.CreatedByID,
		).Scan(&rp.CreatedAt, &rp.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to create retro pay installment %d: %w", rp.InstallmentNumber, err)
		}
		created = append(created, rp)
	}

	return created, nil
}

// GetByID implements retropay.RetroPayRepository.
func (r *retroPayRepositoryImpl) GetByID(ctx context.Context, id string, companyID string) (retropay.RetroPayEntry, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + retroPaySelectColumns + `
		FROM retro_pays rp
		LEFT JOIN employees e ON e.id = rp.employee_id
		WHERE rp.id = $1 AND rp.company_id = $2
	`

	rp, err := scanRetroPay(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return retropay.RetroPayEntry{}, retropay.ErrRetroPayNotFound
		}
		return retropay.RetroPayEntry{}, fmt.Errorf("failed to get retro pay: %w", err)
	}

	return rp, nil
}

// List implements retropay.RetroPayRepository.
func (r *retroPayRepositoryImpl) List(ctx context.Context, companyID string, filter retropay.RetroPayFilter) ([]retropay.RetroPayEntry, error) {
	q := GetQuerier(ctx, r.db)

	whereClause := "WHERE rp.company_id = $1"
	args := []interface{}{companyID}
	argIndex := 2

	if filter.Status != nil {
		whereClause += fmt.Sprintf(" AND rp.status = $%d", argIndex)
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.EmployeeID != nil {
		whereClause += fmt.Sprintf(" AND rp.employee_id = $%d", argIndex)
		args = append(args, *filter.EmployeeID)
		argIndex++
	}

	if filter.GroupID != nil {
		whereClause += fmt.Sprintf(" AND rp.group_id = $%d", argIndex)
		args = append(args, *filter.GroupID)
		argIndex++
	}

	if filter.PaymentMonth != nil {
		whereClause += fmt.Sprintf(" AND rp.payment_month = $%d", argIndex)
		args = append(args, *filter.PaymentMonth)
		argIndex++
	}

	if filter.PaymentYear != nil {
		whereClause += fmt.Sprintf(" AND rp.payment_year = $%d", argIndex)
		args = append(args, *filter.PaymentYear)
	}

	query := `
		SELECT ` + retroPaySelectColumns + `
		FROM retro_pays rp
		LEFT JOIN employees e ON e.id = rp.employee_id
		` + whereClause + `
		ORDER BY rp.created_at DESC, rp.installment_number ASC
	`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list retro pays: %w", err)
	}

	return collectRetroPays(rows)
}

// ListByEmployee implements retropay.RetroPayRepository.
func (r *retroPayRepositoryImpl) ListByEmployee(ctx context.Context, employeeID string, companyID string) ([]retropay.RetroPayEntry, error) {
	return r.List(ctx, companyID, retropay.RetroPayFilter{EmployeeID: &employeeID})
}

// ListByGroupID implements retropay.RetroPayRepository.
func (r *retroPayRepositoryImpl) ListByGroupID(ctx context.Context, groupID string, companyID string) ([]retropay.RetroPayEntry, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + retroPaySelectColumns + `
		FROM retro_pays rp
		LEFT JOIN employees e ON e.id = rp.employee_id
		WHERE rp.group_id = $1 AND rp.company_id = $2
		ORDER BY rp.installment_number ASC
	`

	rows, err := q.Query(ctx, query, groupID, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list retro pay group: %w", err)
	}

	return collectRetroPays(rows)
}

// TransitionStatus implements retropay.RetroPayRepository.
func (r *retroPayRepositoryImpl) TransitionStatus(ctx context.Context, companyID, id string, from []retropay.Status, update retropay.StatusUpdate) (retropay.RetroPayEntry, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		WITH updated AS (
			UPDATE retro_pays
			` + retroPaySetStatus + `
			WHERE company_id = $1 AND id = $2 AND status = ANY($3)
			RETURNING *
		)
		SELECT ` + retroPaySelectColumns + `
		FROM updated rp
		LEFT JOIN employees e ON e.id = rp.employee_id
	`

	args := append([]any{companyID, id, statusStrings(from)}, updateArgs(update)...)
	rp, err := scanRetroPay(q.QueryRow(ctx, query, args...))
	if err == nil {
		return rp, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return retropay.RetroPayEntry{}, fmt.Errorf("failed to update retro pay status: %w", err)
	}

	// Nothing matched: either the entry does not exist or its status moved on.
	current, getErr := r.GetByID(ctx, id, companyID)
	if getErr != nil {
		return retropay.RetroPayEntry{}, getErr
	}
	return current, retropay.ErrStatusConflict
}

// TransitionGroupStatus implements retropay.RetroPayRepository.
func (r *retroPayRepositoryImpl) TransitionGroupStatus(ctx context.Context, companyID, groupID string, from []retropay.Status, update retropay.StatusUpdate) ([]retropay.RetroPayEntry, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		WITH updated AS (
			UPDATE retro_pays
			` + retroPaySetStatus + `
			WHERE company_id = $1 AND group_id = $2 AND status = ANY($3)
			RETURNING *
		)
		SELECT ` + retroPaySelectColumns + `
		FROM updated rp
		LEFT JOIN employees e ON e.id = rp.employee_id
		ORDER BY rp.installment_number ASC
	`

	args := append([]any{companyID, groupID, statusStrings(from)}, updateArgs(update)...)
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update retro pay group status: %w", err)
	}

	return collectRetroPays(rows)
}

// TransitionPeriodStatus implements retropay.RetroPayRepository.
func (r *retroPayRepositoryImpl) TransitionPeriodStatus(ctx context.Context, companyID string, month, year int, from []retropay.Status, update retropay.StatusUpdate) ([]retropay.RetroPayEntry, error) {
	q := GetQuerier(ctx, r.db)

	// $2 is the month; year is appended after the update fields as $11.
	query := `
		WITH updated AS (
			UPDATE retro_pays
			` + retroPaySetStatus + `
			WHERE company_id = $1 AND payment_month = $2 AND payment_year = $11 AND status = ANY($3)
			RETURNING *
		)
		SELECT ` + retroPaySelectColumns + `
		FROM updated rp
		LEFT JOIN employees e ON e.id = rp.employee_id
		ORDER BY rp.employee_id, rp.installment_number ASC
	`

	args := append([]any{companyID, month, statusStrings(from)}, updateArgs(update)...)
	args = append(args, year)
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update retro pay period status: %w", err)
	}

	return collectRetroPays(rows)
}

// GetStatusSummary implements retropay.RetroPayRepository.
func (r *retroPayRepositoryImpl) GetStatusSummary(ctx context.Context, companyID string, year *int) ([]retropay.StatusSummary, error) {
	q := GetQuerier(ctx, r.db)

	whereClause := "WHERE company_id = $1"
	args := []interface{}{companyID}
	if year != nil {
		whereClause += " AND EXTRACT(YEAR FROM created_at) = $2"
		args = append(args, *year)
	}

	query := `
		SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM retro_pays
		` + whereClause + `
		GROUP BY status
	`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize retro pays: %w", err)
	}
	defer rows.Close()

	summaries := make([]retropay.StatusSummary, 0, 4)
	for rows.Next() {
		var s retropay.StatusSummary
		if err := rows.Scan(&s.Status, &s.Count, &s.TotalAmount); err != nil {
			return nil, fmt.Errorf("failed to scan retro pay summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate retro pay summary: %w", err)
	}

	return summaries, nil
}
