package retropay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-retropay/internal/domain/employee"
	"github.com/cmlabs-hris/hris-retropay/internal/domain/outbox"
	"github.com/cmlabs-hris/hris-retropay/internal/domain/retropay"
	"github.com/cmlabs-hris/hris-retropay/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type RetroPayServiceImpl struct {
	transactor         database.Transactor
	retroPayRepository retropay.RetroPayRepository
	employeeRepository employee.EmployeeRepository
	outboxRepository   outbox.OutboxRepository
	calculator         *DistributionCalculator
	topic              string
	now                func() time.Time
}

type Option func(*RetroPayServiceImpl)

// WithClock overrides time.Now for timestamps and the default payment period.
func WithClock(now func() time.Time) Option {
	return func(s *RetroPayServiceImpl) {
		s.now = now
	}
}

func NewRetroPayService(
	transactor database.Transactor,
	retroPayRepository retropay.RetroPayRepository,
	employeeRepository employee.EmployeeRepository,
	outboxRepository outbox.OutboxRepository,
	topic string,
	opts ...Option,
) retropay.RetroPayService {
	s := &RetroPayServiceImpl{
		transactor:         transactor,
		retroPayRepository: retroPayRepository,
		employeeRepository: employeeRepository,
		outboxRepository:   outboxRepository,
		topic:              topic,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.calculator = NewDistributionCalculator(s.now)
	return s
}

// Create implements retropay.RetroPayService.
func (s *RetroPayServiceImpl) Create(ctx context.Context, companyID, actorID string, req retropay.CreateRetroPayRequest) (retropay.CreateRetroPayResponse, error) {
	if err := req.Validate(); err != nil {
		return retropay.CreateRetroPayResponse{}, err
	}

	effectiveFrom, _ := retropay.ParseDate(req.EffectiveFrom)
	effectiveTo, _ := retropay.ParseDate(req.EffectiveTo)

	emp, err := s.employeeRepository.GetByID(ctx, req.EmployeeID, companyID)
	if err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			return retropay.CreateRetroPayResponse{}, retropay.ErrEmployeeNotFound
		}
		return retropay.CreateRetroPayResponse{}, fmt.Errorf("failed to get employee: %w", err)
	}

	installments := make([]retropay.Installment, 0, len(req.Installments))
	for _, inst := range req.Installments {
		installments = append(installments, retropay.Installment{Month: inst.Month, Year: inst.Year, Amount: inst.Amount})
	}

	dist, err := s.calculator.Calculate(DistributionInput{
		EffectiveFrom:    effectiveFrom,
		EffectiveTo:      effectiveTo,
		OldAmount:        req.OldAmount,
		NewAmount:        req.NewAmount,
		Mode:             req.Mode(),
		PaymentMonth:     req.PaymentMonth,
		PaymentYear:      req.PaymentYear,
		InstallmentCount: req.InstallmentCount,
		Installments:     installments,
	})
	if err != nil {
		return retropay.CreateRetroPayResponse{}, err
	}

	var groupID *string
	if dist.Mode.IsSplit() {
		id, err := newID()
		if err != nil {
			return retropay.CreateRetroPayResponse{}, err
		}
		groupID = &id
	}

	var notes *string
	if req.Notes != nil && strings.TrimSpace(*req.Notes) != "" {
		trimmed := strings.TrimSpace(*req.Notes)
		notes = &trimmed
	}

	entries := make([]retropay.RetroPayEntry, 0, len(dist.Installments))
	for i, inst := range dist.Installments {
		id, err := newID()
		if err != nil {
			return retropay.CreateRetroPayResponse{}, err
		}
		entries = append(entries, retropay.RetroPayEntry{
			ID:                id,
			CompanyID:         companyID,
			EmployeeID:        emp.ID,
			Reason:            strings.TrimSpace(req.Reason),
			EffectiveFrom:     effectiveFrom,
			EffectiveTo:       effectiveTo,
			OldAmount:         req.OldAmount.Round(retropay.AmountScale),
			NewAmount:         req.NewAmount.Round(retropay.AmountScale),
			Difference:        dist.Difference,
			MonthsCount:       dist.MonthsCount,
			TotalAmount:       inst.Amount,
			PaymentMonth:      inst.Month,
			PaymentYear:       inst.Year,
			DistributionMode:  dist.Mode,
			InstallmentNumber: i + 1,
			InstallmentCount:  len(dist.Installments),
			Status:            retropay.StatusPending,
			GroupID:           groupID,
			Notes:             notes,
			CreatedByID:       optionalString(actorID),
			EmployeeName:      &emp.FullName,
			EmployeeCode:      &emp.EmployeeCode,
		})
	}

	var created []retropay.RetroPayEntry
	err = s.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		created, err = s.retroPayRepository.CreateGroup(txCtx, entries)
		if err != nil {
			return fmt.Errorf("failed to create retro pay: %w", err)
		}
		return s.recordEvent(txCtx, retropay.EventCreated, companyID, actorID, created, nil)
	})
	if err != nil {
		return retropay.CreateRetroPayResponse{}, err
	}

	// Joined fields are not returned by the insert.
	for i := range created {
		created[i].EmployeeName = &emp.FullName
		created[i].EmployeeCode = &emp.EmployeeCode
	}

	slog.Info("Retro pay created",
		"company_id", companyID,
		"employee_id", emp.ID,
		"actor_id", actorID,
		"distribution_mode", dist.Mode,
		"installment_count", len(created),
		"total_amount", dist.TotalAmount.StringFixed(retropay.AmountScale),
	)

	return retropay.CreateRetroPayResponse{
		GroupID:          groupID,
		DistributionMode: string(dist.Mode),
		Difference:       dist.Difference,
		MonthsCount:      dist.MonthsCount,
		TotalAmount:      dist.TotalAmount,
		Entries:          toEntryResponses(created),
	}, nil
}

// Approve implements retropay.RetroPayService.
func (s *RetroPayServiceImpl) Approve(ctx context.Context, companyID, id, approverID string) (retropay.RetroPayEntryResponse, error) {
	now := s.now()
	update := retropay.StatusUpdate{
		Status:       retropay.StatusApproved,
		ApprovedByID: optionalString(approverID),
		ApprovedAt:   &now,
	}
	return s.transition(ctx, companyID, id, approverID,
		[]retropay.Status{retropay.StatusPending}, update, retropay.EventApproved, retropay.ErrAlreadyDecided)
}

// MarkPaid implements retropay.RetroPayService.
func (s *RetroPayServiceImpl) MarkPaid(ctx context.Context, companyID, id, actorID string) (retropay.RetroPayEntryResponse, error) {
	now := s.now()
	update := retropay.StatusUpdate{
		Status: retropay.StatusPaid,
		PaidAt: &now,
	}
	return s.transition(ctx, companyID, id, actorID,
		[]retropay.Status{retropay.StatusApproved}, update, retropay.EventPaid, retropay.ErrNotApproved)
}

// Cancel implements retropay.RetroPayService.
func (s *RetroPayServiceImpl) Cancel(ctx context.Context, companyID, id, actorID string, req retropay.CancelRetroPayRequest) (retropay.RetroPayEntryResponse, error) {
	now := s.now()
	update := retropay.StatusUpdate{
		Status:      retropay.StatusCancelled,
		CancelledAt: &now,
		AppendNote:  cancelReason(req.Reason),
	}
	return s.transition(ctx, companyID, id, actorID,
		[]retropay.Status{retropay.StatusPending, retropay.StatusApproved}, update, retropay.EventCancelled, retropay.ErrCannotCancel)
}

// transition applies a conditional status change to one entry and records its event.
func (s *RetroPayServiceImpl) transition(
	ctx context.Context,
	companyID, id, actorID string,
	from []retropay.Status,
	update retropay.StatusUpdate,
	eventType retropay.EventType,
	conflictErr error,
) (retropay.RetroPayEntryResponse, error) {
	var updated retropay.RetroPayEntry
	err := s.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		entry, err := s.retroPayRepository.TransitionStatus(txCtx, companyID, id, from, update)
		if err != nil {
			if errors.Is(err, retropay.ErrStatusConflict) {
				return fmt.Errorf("%w (current status: %s, required: %s)", conflictErr, entry.Status, joinStatuses(from))
			}
			return err
		}
		updated = entry
		return s.recordEvent(txCtx, eventType, companyID, actorID, []retropay.RetroPayEntry{entry}, update.AppendNote)
	})
	if err != nil {
		return retropay.RetroPayEntryResponse{}, err
	}

	slog.Info("Retro pay status changed",
		"company_id", companyID,
		"entry_id", id,
		"actor_id", actorID,
		"status", updated.Status,
	)

	return toEntryResponse(updated), nil
}

// ApproveGroup implements retropay.RetroPayService.
func (s *RetroPayServiceImpl) ApproveGroup(ctx context.Context, companyID, groupID, approverID string) (retropay.GroupActionResponse, error) {
	now := s.now()
	update := retropay.StatusUpdate{
		Status:       retropay.StatusApproved,
		ApprovedByID: optionalString(approverID),
		ApprovedAt:   &now,
	}
	return s.transitionGroup(ctx, companyID, groupID, approverID,
		[]retropay.Status{retropay.StatusPending}, update, retropay.EventApproved)
}

// CancelGroup implements retropay.RetroPayService.
func (s *RetroPayServiceImpl) CancelGroup(ctx context.Context, companyID, groupID, actorID string, req retropay.CancelRetroPayRequest) (retropay.GroupActionResponse, error) {
	now := s.now()
	update := retropay.StatusUpdate{
		Status:      retropay.StatusCancelled,
		CancelledAt: &now,
		AppendNote:  cancelReason(req.Reason),
	}
	return s.transitionGroup(ctx, companyID, groupID, actorID,
		[]retropay.Status{retropay.StatusPending, retropay.StatusApproved}, update, retropay.EventCancelled)
}

// transitionGroup moves every eligible member of a group. Members already past
// the allowed statuses are left untouched and not counted.
func (s *RetroPayServiceImpl) transitionGroup(
	ctx context.Context,
	companyID, groupID, actorID string,
	from []retropay.Status,
	update retropay.StatusUpdate,
	eventType retropay.EventType,
) (retropay.GroupActionResponse, error) {
	var updated []retropay.RetroPayEntry
	err := s.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		updated, err = s.retroPayRepository.TransitionGroupStatus(txCtx, companyID, groupID, from, update)
		if err != nil {
			return err
		}

		if len(updated) == 0 {
			members, err := s.retroPayRepository.ListByGroupID(txCtx, groupID, companyID)
			if err != nil {
				return err
			}
			if len(members) == 0 {
				return retropay.ErrGroupNotFound
			}
			return nil
		}

		return s.recordEvent(txCtx, eventType, companyID, actorID, updated, update.AppendNote)
	})
	if err != nil {
		return retropay.GroupActionResponse{}, err
	}

	slog.Info("Retro pay group status changed",
		"company_id", companyID,
		"group_id", groupID,
		"actor_id", actorID,
		"status", update.Status,
		"updated_count", len(updated),
	)

	return retropay.GroupActionResponse{GroupID: groupID, UpdatedCount: len(updated)}, nil
}

// PayPeriod implements retropay.RetroPayService.
func (s *RetroPayServiceImpl) PayPeriod(ctx context.Context, companyID, actorID string, req retropay.PayPeriodRequest) (retropay.GroupActionResponse, error) {
	if err := req.Validate(); err != nil {
		return retropay.GroupActionResponse{}, err
	}

	now := s.now()
	update := retropay.StatusUpdate{
		Status: retropay.StatusPaid,
		PaidAt: &now,
	}

	var paid []retropay.RetroPayEntry
	err := s.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		paid, err = s.retroPayRepository.TransitionPeriodStatus(txCtx, companyID, req.PaymentMonth, req.PaymentYear,
			[]retropay.Status{retropay.StatusApproved}, update)
		if err != nil {
			return err
		}
		if len(paid) == 0 {
			return nil
		}
		return s.recordPeriodEvents(txCtx, companyID, actorID, req.PaymentMonth, req.PaymentYear, paid)
	})
	if err != nil {
		return retropay.GroupActionResponse{}, err
	}

	slog.Info("Retro pay period paid",
		"company_id", companyID,
		"actor_id", actorID,
		"payment_month", req.PaymentMonth,
		"payment_year", req.PaymentYear,
		"updated_count", len(paid),
	)

	return retropay.GroupActionResponse{UpdatedCount: len(paid)}, nil
}

// FindAll implements retropay.RetroPayService.
func (s *RetroPayServiceImpl) FindAll(ctx context.Context, companyID string, filter retropay.RetroPayFilter) ([]retropay.RetroPayEntryResponse, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	entries, err := s.retroPayRepository.List(ctx, companyID, filter)
	if err != nil {
		return nil, err
	}

	return toEntryResponses(entries), nil
}

// FindByID implements retropay.RetroPayService.
func (s *RetroPayServiceImpl) FindByID(ctx context.Context, companyID, id string) (retropay.RetroPayEntryResponse, error) {
	entry, err := s.retroPayRepository.GetByID(ctx, id, companyID)
	if err != nil {
		return retropay.RetroPayEntryResponse{}, err
	}

	return toEntryResponse(entry), nil
}

// FindByEmployee implements retropay.RetroPayService.
func (s *RetroPayServiceImpl) FindByEmployee(ctx context.Context, companyID, employeeID string) ([]retropay.RetroPayEntryResponse, error) {
	entries, err := s.retroPayRepository.ListByEmployee(ctx, employeeID, companyID)
	if err != nil {
		return nil, err
	}

	return toEntryResponses(entries), nil
}

// FindByGroup implements retropay.RetroPayService.
func (s *RetroPayServiceImpl) FindByGroup(ctx context.Context, companyID, groupID string) ([]retropay.RetroPayEntryResponse, error) {
	entries, err := s.retroPayRepository.ListByGroupID(ctx, groupID, companyID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, retropay.ErrGroupNotFound
	}

	return toEntryResponses(entries), nil
}

// GetStats implements retropay.RetroPayService.
func (s *RetroPayServiceImpl) GetStats(ctx context.Context, companyID string, year *int) (retropay.RetroPayStatsResponse, error) {
	var (
		summaries   []retropay.StatusSummary
		activeCount int
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		summaries, err = s.retroPayRepository.GetStatusSummary(gCtx, companyID, year)
		return err
	})

	g.Go(func() error {
		var err error
		activeCount, err = s.employeeRepository.CountActiveByCompanyID(gCtx, companyID)
		return err
	})

	if err := g.Wait(); err != nil {
		return retropay.RetroPayStatsResponse{}, err
	}

	stats := retropay.RetroPayStatsResponse{
		Year:                   year,
		TotalPendingAmount:     decimal.Zero,
		TotalApprovedAmount:    decimal.Zero,
		TotalPaidAmount:        decimal.Zero,
		AveragePaidPerEmployee: decimal.Zero,
	}
	for _, sum := range summaries {
		switch sum.Status {
		case retropay.StatusPending:
			stats.PendingCount = sum.Count
			stats.TotalPendingAmount = sum.TotalAmount
		case retropay.StatusApproved:
			stats.ApprovedCount = sum.Count
			stats.TotalApprovedAmount = sum.TotalAmount
		case retropay.StatusPaid:
			stats.PaidCount = sum.Count
			stats.TotalPaidAmount = sum.TotalAmount
		case retropay.StatusCancelled:
			stats.CancelledCount = sum.Count
		}
	}

	if activeCount > 0 {
		stats.AveragePaidPerEmployee = stats.TotalPaidAmount.
			Div(decimal.NewFromInt(int64(activeCount))).
			Round(retropay.AmountScale)
	}

	return stats, nil
}

// ========== EVENTS ==========

func (s *RetroPayServiceImpl) recordEvent(ctx context.Context, eventType retropay.EventType, companyID, actorID string, entries []retropay.RetroPayEntry, reason *string) error {
	if len(entries) == 0 {
		return nil
	}

	payload := retropay.LifecycleEvent{
		EventType:   eventType,
		CompanyID:   companyID,
		ActorID:     actorID,
		EntryIDs:    entryIDs(entries),
		GroupID:     entries[0].GroupID,
		TotalAmount: sumTotal(entries),
		Reason:      reason,
		OccurredAt:  s.now().UTC(),
	}

	return s.writeOutbox(ctx, companyID, aggregateID(entries[0]), payload)
}

// recordPeriodEvents writes one paid event per aggregate touched by the payroll run.
func (s *RetroPayServiceImpl) recordPeriodEvents(ctx context.Context, companyID, actorID string, month, year int, entries []retropay.RetroPayEntry) error {
	var order []string
	byAggregate := make(map[string][]retropay.RetroPayEntry)
	for _, e := range entries {
		key := aggregateID(e)
		if _, ok := byAggregate[key]; !ok {
			order = append(order, key)
		}
		byAggregate[key] = append(byAggregate[key], e)
	}

	for _, key := range order {
		members := byAggregate[key]
		payload := retropay.LifecycleEvent{
			EventType:    retropay.EventPaid,
			CompanyID:    companyID,
			ActorID:      actorID,
			EntryIDs:     entryIDs(members),
			GroupID:      members[0].GroupID,
			TotalAmount:  sumTotal(members),
			PaymentMonth: &month,
			PaymentYear:  &year,
			OccurredAt:   s.now().UTC(),
		}
		if err := s.writeOutbox(ctx, companyID, key, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *RetroPayServiceImpl) writeOutbox(ctx context.Context, companyID, key string, payload retropay.LifecycleEvent) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal retro pay event: %w", err)
	}

	id, err := newID()
	if err != nil {
		return err
	}

	event := outbox.Event{
		ID:            id,
		CompanyID:     companyID,
		AggregateType: retropay.AggregateType,
		AggregateID:   key,
		EventType:     string(payload.EventType),
		Topic:         s.topic,
		Payload:       body,
		Status:        outbox.StatusPending,
	}
	if err := s.outboxRepository.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to record %s event: %w", payload.EventType, err)
	}

	return nil
}

// ========== HELPERS ==========

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return id.String(), nil
}

// aggregateID is the outbox key of an entry. Installments of one group share
// the group id so the broker keeps their events on one partition in order.
func aggregateID(e retropay.RetroPayEntry) string {
	if e.GroupID != nil {
		return *e.GroupID
	}
	return e.ID
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func cancelReason(reason *string) *string {
	if reason == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*reason)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func joinStatuses(statuses []retropay.Status) string {
	parts := make([]string, 0, len(statuses))
	for _, st := range statuses {
		parts = append(parts, string(st))
	}
	return strings.Join(parts, " or ")
}

func entryIDs(entries []retropay.RetroPayEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}

func sumTotal(entries []retropay.RetroPayEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.TotalAmount)
	}
	return total
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func toEntryResponse(e retropay.RetroPayEntry) retropay.RetroPayEntryResponse {
	return retropay.RetroPayEntryResponse{
		ID:                e.ID,
		EmployeeID:        e.EmployeeID,
		EmployeeName:      e.EmployeeName,
		EmployeeCode:      e.EmployeeCode,
		Reason:            e.Reason,
		EffectiveFrom:     e.EffectiveFrom.Format(retropay.DateLayout),
		EffectiveTo:       e.EffectiveTo.Format(retropay.DateLayout),
		OldAmount:         e.OldAmount,
		NewAmount:         e.NewAmount,
		Difference:        e.Difference,
		MonthsCount:       e.MonthsCount,
		TotalAmount:       e.TotalAmount,
		PaymentMonth:      e.PaymentMonth,
		PaymentYear:       e.PaymentYear,
		DistributionMode:  string(e.DistributionMode),
		InstallmentNumber: e.InstallmentNumber,
		InstallmentCount:  e.InstallmentCount,
		Status:            string(e.Status),
		GroupID:           e.GroupID,
		Notes:             e.Notes,
		CreatedByID:       e.CreatedByID,
		ApprovedByID:      e.ApprovedByID,
		ApprovedAt:        formatTime(e.ApprovedAt),
		PaidAt:            formatTime(e.PaidAt),
		CancelledAt:       formatTime(e.CancelledAt),
		CreatedAt:         e.CreatedAt.Format(time.RFC3339),
	}
}

func toEntryResponses(entries []retropay.RetroPayEntry) []retropay.RetroPayEntryResponse {
	out := make([]retropay.RetroPayEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	return out
}
