package retropay

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-retropay/internal/domain/employee"
	"github.com/cmlabs-hris/hris-retropay/internal/domain/outbox"
	"github.com/cmlabs-hris/hris-retropay/internal/domain/retropay"
	"github.com/shopspring/decimal"
)

// memRetroPayRepository mirrors the conditional update semantics of the SQL repository.
type memRetroPayRepository struct {
	mu      sync.Mutex
	entries map[string]retropay.RetroPayEntry
	order   []string
	now     func() time.Time

	createErr error
}

func newMemRetroPayRepository(now func() time.Time) *memRetroPayRepository {
	return &memRetroPayRepository{entries: make(map[string]retropay.RetroPayEntry), now: now}
}

func (m *memRetroPayRepository) snapshot() (map[string]retropay.RetroPayEntry, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make(map[string]retropay.RetroPayEntry, len(m.entries))
	for k, v := range m.entries {
		entries[k] = v
	}
	return entries, append([]string(nil), m.order...)
}

func (m *memRetroPayRepository) restore(entries map[string]retropay.RetroPayEntry, order []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = entries
	m.order = order
}

func (m *memRetroPayRepository) CreateGroup(ctx context.Context, entries []retropay.RetroPayEntry) ([]retropay.RetroPayEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	created := make([]retropay.RetroPayEntry, 0, len(entries))
	for _, e := range entries {
		e.EmployeeName = nil
		e.EmployeeCode = nil
		e.CreatedAt = m.now()
		e.UpdatedAt = e.CreatedAt
		m.entries[e.ID] = e
		m.order = append(m.order, e.ID)
		created = append(created, e)
	}
	return created, nil
}

func (m *memRetroPayRepository) GetByID(ctx context.Context, id string, companyID string) (retropay.RetroPayEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.CompanyID != companyID {
		return retropay.RetroPayEntry{}, retropay.ErrRetroPayNotFound
	}
	return e, nil
}

func (m *memRetroPayRepository) match(companyID string, pred func(e retropay.RetroPayEntry) bool) []retropay.RetroPayEntry {
	out := make([]retropay.RetroPayEntry, 0)
	for _, id := range m.order {
		e := m.entries[id]
		if e.CompanyID == companyID && pred(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].InstallmentNumber < out[j].InstallmentNumber })
	return out
}

func (m *memRetroPayRepository) List(ctx context.Context, companyID string, filter retropay.RetroPayFilter) ([]retropay.RetroPayEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.match(companyID, func(e retropay.RetroPayEntry) bool {
		if filter.Status != nil && e.Status != *filter.Status {
			return false
		}
		if filter.EmployeeID != nil && e.EmployeeID != *filter.EmployeeID {
			return false
		}
		if filter.GroupID != nil && (e.GroupID == nil || *e.GroupID != *filter.GroupID) {
			return false
		}
		if filter.PaymentMonth != nil && e.PaymentMonth != *filter.PaymentMonth {
			return false
		}
		if filter.PaymentYear != nil && e.PaymentYear != *filter.PaymentYear {
			return false
		}
		return true
	}), nil
}

func (m *memRetroPayRepository) ListByEmployee(ctx context.Context, employeeID string, companyID string) ([]retropay.RetroPayEntry, error) {
	return m.List(ctx, companyID, retropay.RetroPayFilter{EmployeeID: &employeeID})
}

func (m *memRetroPayRepository) ListByGroupID(ctx context.Context, groupID string, companyID string) ([]retropay.RetroPayEntry, error) {
	return m.List(ctx, companyID, retropay.RetroPayFilter{GroupID: &groupID})
}

func statusIn(s retropay.Status, from []retropay.Status) bool {
	for _, f := range from {
		if s == f {
			return true
		}
	}
	return false
}

func applyUpdate(e retropay.RetroPayEntry, update retropay.StatusUpdate) retropay.RetroPayEntry {
	e.Status = update.Status
	if update.ApprovedByID != nil {
		e.ApprovedByID = update.ApprovedByID
	}
	if update.ApprovedAt != nil {
		e.ApprovedAt = update.ApprovedAt
	}
	if update.PaidAt != nil {
		e.PaidAt = update.PaidAt
	}
	if update.CancelledAt != nil {
		e.CancelledAt = update.CancelledAt
	}
	if update.AppendNote != nil {
		notes := ""
		if e.Notes != nil {
			notes = *e.Notes
		}
		notes += retropay.CancelNoteMarker + *update.AppendNote
		e.Notes = &notes
	}
	return e
}

func (m *memRetroPayRepository) TransitionStatus(ctx context.Context, companyID, id string, from []retropay.Status, update retropay.StatusUpdate) (retropay.RetroPayEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.CompanyID != companyID {
		return retropay.RetroPayEntry{}, retropay.ErrRetroPayNotFound
	}
	if !statusIn(e.Status, from) {
		return e, retropay.ErrStatusConflict
	}
	e = applyUpdate(e, update)
	m.entries[id] = e
	return e, nil
}

func (m *memRetroPayRepository) transitionWhere(companyID string, pred func(e retropay.RetroPayEntry) bool, from []retropay.Status, update retropay.StatusUpdate) []retropay.RetroPayEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := m.match(companyID, func(e retropay.RetroPayEntry) bool {
		return pred(e) && statusIn(e.Status, from)
	})
	for i, e := range matched {
		e = applyUpdate(e, update)
		m.entries[e.ID] = e
		matched[i] = e
	}
	return matched
}

func (m *memRetroPayRepository) TransitionGroupStatus(ctx context.Context, companyID, groupID string, from []retropay.Status, update retropay.StatusUpdate) ([]retropay.RetroPayEntry, error) {
	return m.transitionWhere(companyID, func(e retropay.RetroPayEntry) bool {
		return e.GroupID != nil && *e.GroupID == groupID
	}, from, update), nil
}

func (m *memRetroPayRepository) TransitionPeriodStatus(ctx context.Context, companyID string, month, year int, from []retropay.Status, update retropay.StatusUpdate) ([]retropay.RetroPayEntry, error) {
	return m.transitionWhere(companyID, func(e retropay.RetroPayEntry) bool {
		return e.PaymentMonth == month && e.PaymentYear == year
	}, from, update), nil
}

func (m *memRetroPayRepository) GetStatusSummary(ctx context.Context, companyID string, year *int) ([]retropay.StatusSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byStatus := make(map[retropay.Status]*retropay.StatusSummary)
	for _, id := range m.order {
		e := m.entries[id]
		if e.CompanyID != companyID {
			continue
		}
		if year != nil && e.CreatedAt.Year() != *year {
			continue
		}
		s, ok := byStatus[e.Status]
		if !ok {
			s = &retropay.StatusSummary{Status: e.Status, TotalAmount: decimal.Zero}
			byStatus[e.Status] = s
		}
		s.Count++
		s.TotalAmount = s.TotalAmount.Add(e.TotalAmount)
	}
	out := make([]retropay.StatusSummary, 0, len(byStatus))
	for _, s := range byStatus {
		out = append(out, *s)
	}
	return out, nil
}

type fakeEmployeeRepository struct {
	GetByIDFn                func(ctx context.Context, id string, companyID string) (employee.Employee, error)
	CountActiveByCompanyIDFn func(ctx context.Context, companyID string) (int, error)
}

func (f *fakeEmployeeRepository) GetByID(ctx context.Context, id string, companyID string) (employee.Employee, error) {
	if f.GetByIDFn != nil {
		return f.GetByIDFn(ctx, id, companyID)
	}
	return employee.Employee{}, employee.ErrEmployeeNotFound
}

func (f *fakeEmployeeRepository) CountActiveByCompanyID(ctx context.Context, companyID string) (int, error) {
	if f.CountActiveByCompanyIDFn != nil {
		return f.CountActiveByCompanyIDFn(ctx, companyID)
	}
	return 0, nil
}

type fakeOutboxRepository struct {
	mu        sync.Mutex
	events    []outbox.Event
	createErr error
}

func (f *fakeOutboxRepository) Create(ctx context.Context, event outbox.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutboxRepository) ListPending(ctx context.Context, limit int) ([]outbox.Event, error) {
	return nil, errors.New("not used")
}

func (f *fakeOutboxRepository) MarkSent(ctx context.Context, id string) error {
	return errors.New("not used")
}

func (f *fakeOutboxRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	return errors.New("not used")
}

func (f *fakeOutboxRepository) snapshot() []outbox.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]outbox.Event(nil), f.events...)
}

func (f *fakeOutboxRepository) restore(events []outbox.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = events
}

// fakeTransactor rolls every fake store back when fn fails. Transactions run one
// at a time, so a rollback never discards another caller's committed work.
type fakeTransactor struct {
	mu     sync.Mutex
	repo   *memRetroPayRepository
	outbox *fakeOutboxRepository
}

func (f *fakeTransactor) WithinTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, order := f.repo.snapshot()
	events := f.outbox.snapshot()
	if err := fn(ctx); err != nil {
		f.repo.restore(entries, order)
		f.outbox.restore(events)
		return err
	}
	return nil
}
