package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"financas/internal/amqp"
	"financas/internal/cache"
	"financas/internal/core"
	"financas/internal/metrics"
	"financas/internal/records"
	"financas/internal/session"
)

// MaxReportMonths bounds the trailing report window.
const MaxReportMonths = 24

var ErrInvalidWindow = errors.New("invalid report window")

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	Publish(ctx context.Context, ev amqp.FinanceEvent) error
}

// DerivationInconsistencyError reports a salary that was persisted while
// its derived tithe was not. The caller decides how to surface it; the
// service never retries on its own.
type DerivationInconsistencyError struct {
	Salary core.Salary
	Err    error
}

func (e *DerivationInconsistencyError) Error() string {
	return fmt.Sprintf("salary %s saved but tithe not persisted: %v", e.Salary.ID, e.Err)
}

func (e *DerivationInconsistencyError) Unwrap() error { return e.Err }

// FinanceService orchestrates the record store, the core computations and
// event publishing for one user session at a time.
type FinanceService struct {
	store     records.Gateway
	events    EventPublisher
	metrics   *metrics.Metrics
	summaries cache.Cache[core.PeriodSummary]
	now       func() time.Time
	newID     func() string
}

type Option func(*FinanceService)

func WithPublisher(p EventPublisher) Option {
	return func(s *FinanceService) { s.events = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *FinanceService) { s.metrics = m }
}

// WithSummaryCache caches month summaries per user. Any write for a user
// drops that user's entries.
func WithSummaryCache(c cache.Cache[core.PeriodSummary]) Option {
	return func(s *FinanceService) { s.summaries = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *FinanceService) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *FinanceService) { s.newID = gen }
}

func NewFinanceService(store records.Gateway, opts ...Option) *FinanceService {
	s := &FinanceService{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying gateway for health checks.
func (s *FinanceService) Store() records.Gateway { return s.store }

// Purchases

type PurchaseInput struct {
	Date            core.Date
	Total           core.Money
	DurationMinutes int
	PaymentMethod   core.PaymentMethod
}

func (s *FinanceService) RecordPurchase(ctx context.Context, sess session.Session, in PurchaseInput) (core.Purchase, error) {
	if err := requireSession(sess); err != nil {
		return core.Purchase{}, err
	}
	p := core.Purchase{
		ID:              s.newID(),
		UserID:          sess.UserID,
		Date:            in.Date,
		Total:           in.Total,
		DurationMinutes: in.DurationMinutes,
		PaymentMethod:   in.PaymentMethod,
		CreatedAt:       s.now().UTC(),
	}
	if err := p.Validate(); err != nil {
		return core.Purchase{}, err
	}
	if err := s.store.CreatePurchase(ctx, p); err != nil {
		return core.Purchase{}, fmt.Errorf("record purchase: %w", err)
	}
	s.written(ctx, sess.UserID, "purchase")
	s.publish(ctx, amqp.EventPurchaseCreated, sess.UserID, p.ID)
	return p, nil
}

// ListPurchases returns purchases between from and to inclusive, oldest first.
func (s *FinanceService) ListPurchases(ctx context.Context, sess session.Session, from, to core.Date) ([]core.Purchase, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if from.IsZero() || to.IsZero() || to.Before(from.Time) {
		return nil, &core.ValidationError{Field: "range", Err: core.ErrInvalidDate}
	}
	out, err := s.store.ListPurchases(ctx, sess.UserID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return out, nil
}

// Bills

type BillInput struct {
	Name     string
	Amount   core.Money
	Category core.BillCategory
	Type     core.BillType
	DueDay   int
}

func (s *FinanceService) RecordBill(ctx context.Context, sess session.Session, in BillInput) (core.Bill, error) {
	if err := requireSession(sess); err != nil {
		return core.Bill{}, err
	}
	b := core.Bill{
		ID:        s.newID(),
		UserID:    sess.UserID,
		Name:      strings.TrimSpace(in.Name),
		Amount:    in.Amount,
		Category:  in.Category,
		Type:      in.Type,
		DueDay:    in.DueDay,
		Active:    true,
		CreatedAt: s.now().UTC(),
	}
	if err := b.Validate(); err != nil {
		return core.Bill{}, err
	}
	if err := s.store.CreateBill(ctx, b); err != nil {
		return core.Bill{}, fmt.Errorf("record bill: %w", err)
	}
	s.written(ctx, sess.UserID, "bill")
	s.publish(ctx, amqp.EventBillCreated, sess.UserID, b.ID)
	return b, nil
}

// UpdateBill replaces the editable fields of an existing bill. Its id,
// owner, creation time and active flag are kept.
func (s *FinanceService) UpdateBill(ctx context.Context, sess session.Session, id string, in BillInput) (core.Bill, error) {
	if err := requireSession(sess); err != nil {
		return core.Bill{}, err
	}
	b, err := s.store.GetBill(ctx, sess.UserID, id)
	if err != nil {
		return core.Bill{}, fmt.Errorf("load bill: %w", err)
	}
	b.Name = strings.TrimSpace(in.Name)
	b.Amount = in.Amount
	b.Category = in.Category
	b.Type = in.Type
	b.DueDay = in.DueDay
	if err := b.Validate(); err != nil {
		return core.Bill{}, err
	}
	if err := s.store.UpdateBill(ctx, b); err != nil {
		return core.Bill{}, fmt.Errorf("update bill: %w", err)
	}
	s.invalidate(ctx, sess.UserID)
	s.publish(ctx, amqp.EventBillUpdated, sess.UserID, b.ID)
	return b, nil
}

// DeactivateBill soft deletes a bill. Deactivating twice is a no-op.
func (s *FinanceService) DeactivateBill(ctx context.Context, sess session.Session, id string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	b, err := s.store.GetBill(ctx, sess.UserID, id)
	if err != nil {
		return fmt.Errorf("load bill: %w", err)
	}
	if !b.Active {
		return nil
	}
	b.Active = false
	if err := s.store.UpdateBill(ctx, b); err != nil {
		return fmt.Errorf("deactivate bill: %w", err)
	}
	s.invalidate(ctx, sess.UserID)
	s.publish(ctx, amqp.EventBillUpdated, sess.UserID, b.ID)
	return nil
}

func (s *FinanceService) ListActiveBills(ctx context.Context, sess session.Session) ([]core.Bill, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	out, err := s.store.ListBills(ctx, sess.UserID, true)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return out, nil
}

// UpcomingBill is an active bill with its next due date.
type UpcomingBill struct {
	Bill      core.Bill
	DueDate   core.Date
	DaysUntil int
}

// UpcomingBills lists active bills falling due within the next withinDays
// days (today included), soonest first.
func (s *FinanceService) UpcomingBills(ctx context.Context, sess session.Session, now time.Time, withinDays int) ([]UpcomingBill, error) {
	if withinDays < 0 {
		return nil, &core.ValidationError{Field: "days", Err: core.ErrInvalidDay}
	}
	bills, err := s.ListActiveBills(ctx, sess)
	if err != nil {
		return nil, err
	}
	today := core.DateOf(now)
	out := make([]UpcomingBill, 0, len(bills))
	for _, b := range bills {
		due := NextDueDate(b.DueDay, now)
		days := daysBetween(today, due)
		if days > withinDays {
			continue
		}
		out = append(out, UpcomingBill{Bill: b, DueDate: due, DaysUntil: days})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysUntil != out[j].DaysUntil {
			return out[i].DaysUntil < out[j].DaysUntil
		}
		return out[i].Bill.Name < out[j].Bill.Name
	})
	return out, nil
}

// Salaries and tithes

// RegisterSalary stores the salary of a month together with its derived
// tithe. Gateways that support it write both atomically; otherwise a tithe
// failure after the salary was saved yields a DerivationInconsistencyError.
func (s *FinanceService) RegisterSalary(ctx context.Context, sess session.Session, amount core.Money, month, year int) (core.Salary, core.Tithe, error) {
	if err := requireSession(sess); err != nil {
		return core.Salary{}, core.Tithe{}, err
	}
	now := s.now().UTC()
	sal := core.Salary{
		ID:        s.newID(),
		UserID:    sess.UserID,
		Amount:    amount,
		Month:     month,
		Year:      year,
		CreatedAt: now,
	}
	if err := sal.Validate(); err != nil {
		return core.Salary{}, core.Tithe{}, err
	}
	tithe := core.DeriveTithe(sal, s.newID(), now)

	if reg, ok := s.store.(records.SalaryTitheRegistrar); ok {
		if err := reg.RegisterSalaryWithTithe(ctx, sal, tithe); err != nil {
			return core.Salary{}, core.Tithe{}, fmt.Errorf("register salary: %w", err)
		}
	} else {
		if err := s.store.CreateSalary(ctx, sal); err != nil {
			return core.Salary{}, core.Tithe{}, fmt.Errorf("register salary: %w", err)
		}
		if err := s.store.CreateTithe(ctx, tithe); err != nil {
			s.written(ctx, sess.UserID, "salary")
			slog.ErrorContext(ctx, "Tithe not persisted after salary",
				"salary_id", sal.ID, "user_id", sess.UserID, "error", err)
			s.publish(ctx, amqp.EventSalaryRegistered, sess.UserID, sal.ID)
			return sal, core.Tithe{}, &DerivationInconsistencyError{Salary: sal, Err: err}
		}
	}

	s.written(ctx, sess.UserID, "salary")
	s.metrics.RecordCreated("tithe")
	s.publish(ctx, amqp.EventSalaryRegistered, sess.UserID, sal.ID)
	s.publish(ctx, amqp.EventTitheCreated, sess.UserID, tithe.ID)
	return sal, tithe, nil
}

// MarkTithePaid records payment of a pending tithe at the current time.
func (s *FinanceService) MarkTithePaid(ctx context.Context, sess session.Session, titheID string) (core.Tithe, error) {
	if err := requireSession(sess); err != nil {
		return core.Tithe{}, err
	}
	at := s.now().UTC()
	if err := s.store.MarkTithePaid(ctx, sess.UserID, titheID, at); err != nil {
		return core.Tithe{}, fmt.Errorf("mark tithe paid: %w", err)
	}
	t, err := s.store.GetTithe(ctx, sess.UserID, titheID)
	if err != nil {
		return core.Tithe{}, fmt.Errorf("load tithe: %w", err)
	}
	s.metrics.TithePaid()
	s.publish(ctx, amqp.EventTithePaid, sess.UserID, t.ID)
	return t, nil
}

// SalaryTithe pairs a salary with its tithe, which may be missing.
type SalaryTithe struct {
	Salary core.Salary
	Tithe  *core.Tithe
}

type TitheOverview struct {
	Entries []SalaryTithe // newest month first
	Totals  core.TitheTotals
}

func (s *FinanceService) TitheOverview(ctx context.Context, sess session.Session) (TitheOverview, error) {
	if err := requireSession(sess); err != nil {
		return TitheOverview{}, err
	}
	salaries, err := s.store.ListSalaries(ctx, sess.UserID)
	if err != nil {
		return TitheOverview{}, fmt.Errorf("list salaries: %w", err)
	}
	tithes, err := s.store.ListTithes(ctx, sess.UserID)
	if err != nil {
		return TitheOverview{}, fmt.Errorf("list tithes: %w", err)
	}
	bySalary := make(map[string]core.Tithe, len(tithes))
	for _, t := range tithes {
		bySalary[t.SalaryID] = t
	}
	entries := make([]SalaryTithe, 0, len(salaries))
	for _, sal := range salaries {
		e := SalaryTithe{Salary: sal}
		if t, ok := bySalary[sal.ID]; ok {
			e.Tithe = &t
		}
		entries = append(entries, e)
	}
	return TitheOverview{Entries: entries, Totals: core.SumTithes(tithes)}, nil
}

// FindSalariesWithoutTithe lists salaries left without a tithe by an
// interrupted registration.
func (s *FinanceService) FindSalariesWithoutTithe(ctx context.Context, sess session.Session) ([]core.Salary, error) {
	overview, err := s.TitheOverview(ctx, sess)
	if err != nil {
		return nil, err
	}
	var missing []core.Salary
	for _, e := range overview.Entries {
		if e.Tithe == nil {
			missing = append(missing, e.Salary)
		}
	}
	return missing, nil
}

// RepairMissingTithes derives and stores the tithe of every salary that
// lacks one. It stops at the first store failure and returns what it created.
func (s *FinanceService) RepairMissingTithes(ctx context.Context, sess session.Session) ([]core.Tithe, error) {
	missing, err := s.FindSalariesWithoutTithe(ctx, sess)
	if err != nil {
		return nil, err
	}
	var created []core.Tithe
	for _, sal := range missing {
		t := core.DeriveTithe(sal, s.newID(), s.now().UTC())
		if err := s.store.CreateTithe(ctx, t); err != nil {
			if errors.Is(err, records.ErrTitheExists) {
				continue
			}
			return created, fmt.Errorf("repair tithe for salary %s: %w", sal.ID, err)
		}
		slog.InfoContext(ctx, "Repaired missing tithe",
			"salary_id", sal.ID, "tithe_id", t.ID, "amount_cents", t.Amount.Cents)
		s.metrics.RecordCreated("tithe")
		s.publish(ctx, amqp.EventTitheCreated, sess.UserID, t.ID)
		created = append(created, t)
	}
	return created, nil
}

// Summaries and reports

// MonthSummary aggregates the purchases dated in the month, the currently
// active bills and the salary registered for the month.
func (s *FinanceService) MonthSummary(ctx context.Context, sess session.Session, year, month int) (core.PeriodSummary, error) {
	if err := requireSession(sess); err != nil {
		return core.PeriodSummary{}, err
	}
	if err := validateMonth(year, month); err != nil {
		return core.PeriodSummary{}, err
	}

	key := summaryKey(sess.UserID, year, month)
	if s.summaries != nil {
		if sum, ok := s.summaries.Get(ctx, key); ok {
			s.metrics.CacheLookup(true)
			return sum, nil
		}
		s.metrics.CacheLookup(false)
	}

	from, to := core.MonthRange(year, month)
	purchases, err := s.store.ListPurchases(ctx, sess.UserID, from, to)
	if err != nil {
		return core.PeriodSummary{}, fmt.Errorf("list purchases: %w", err)
	}
	bills, err := s.store.ListBills(ctx, sess.UserID, true)
	if err != nil {
		return core.PeriodSummary{}, fmt.Errorf("list bills: %w", err)
	}
	salary, err := s.salaryFor(ctx, sess.UserID, year, month)
	if err != nil {
		return core.PeriodSummary{}, err
	}

	sum := core.Aggregate(purchases, bills, salary)
	if s.summaries != nil {
		s.summaries.Set(ctx, key, sum)
	}
	return sum, nil
}

// Dashboard is the month view: summary, share of salary spent and bill
// categories.
type Dashboard struct {
	Year         int
	Month        int
	Summary      core.PeriodSummary
	PercentSpent float64
	Categories   core.CategoryBreakdown
}

func (s *FinanceService) Dashboard(ctx context.Context, sess session.Session, year, month int) (Dashboard, error) {
	sum, err := s.MonthSummary(ctx, sess, year, month)
	if err != nil {
		return Dashboard{}, err
	}
	bills, err := s.store.ListBills(ctx, sess.UserID, true)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list bills: %w", err)
	}
	return Dashboard{
		Year:         year,
		Month:        month,
		Summary:      sum,
		PercentSpent: core.PercentSpent(sum),
		Categories:   core.AggregateCategories(bills),
	}, nil
}

// TrailingReport builds the report over the last months calendar months
// ending with now's month. Active bills count once in every month of the
// window, so the merged categories add up to the bills total.
func (s *FinanceService) TrailingReport(ctx context.Context, sess session.Session, months int, now time.Time) (core.ReportInput, error) {
	if err := requireSession(sess); err != nil {
		return core.ReportInput{}, err
	}
	if months < 1 || months > MaxReportMonths {
		return core.ReportInput{}, &core.ValidationError{Field: "months", Err: ErrInvalidWindow}
	}

	window := core.TrailingMonths(now, months)
	from, _ := core.MonthRange(window[0].Year, window[0].Month)
	_, to := core.MonthRange(window[len(window)-1].Year, window[len(window)-1].Month)

	purchases, err := s.store.ListPurchases(ctx, sess.UserID, from, to)
	if err != nil {
		return core.ReportInput{}, fmt.Errorf("list purchases: %w", err)
	}
	bills, err := s.store.ListBills(ctx, sess.UserID, true)
	if err != nil {
		return core.ReportInput{}, fmt.Errorf("list bills: %w", err)
	}
	salaries, err := s.store.ListSalaries(ctx, sess.UserID)
	if err != nil {
		return core.ReportInput{}, fmt.Errorf("list salaries: %w", err)
	}

	byMonth := make(map[core.YearMonth][]core.Purchase, months)
	for _, p := range purchases {
		ym := core.YearMonth{Year: p.Date.Year(), Month: p.Date.Month()}
		byMonth[ym] = append(byMonth[ym], p)
	}
	salaryOf := make(map[core.YearMonth]core.Salary, len(salaries))
	for _, sal := range salaries {
		salaryOf[core.YearMonth{Year: sal.Year, Month: sal.Month}] = sal
	}

	monthCategories := core.AggregateCategories(bills)
	var categories core.CategoryBreakdown
	periods := make([]core.LabeledSummary, 0, months)
	for _, ym := range window {
		var salary *core.Salary
		if sal, ok := salaryOf[ym]; ok {
			salary = &sal
		}
		periods = append(periods, core.LabeledSummary{
			Year:    ym.Year,
			Month:   ym.Month,
			Summary: core.Aggregate(byMonth[ym], bills, salary),
		})
		categories = categories.Merge(monthCategories)
	}

	return core.ReportInput{
		GeneratedAt: now,
		Months:      months,
		Periods:     periods,
		Categories:  categories,
		Totals:      core.SumPeriods(periods),
	}, nil
}

func (s *FinanceService) salaryFor(ctx context.Context, userID string, year, month int) (*core.Salary, error) {
	sal, err := s.store.SalaryForMonth(ctx, userID, year, month)
	if errors.Is(err, records.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load salary: %w", err)
	}
	return &sal, nil
}

func requireSession(sess session.Session) error {
	if !sess.Valid() {
		return session.ErrNoSession
	}
	return nil
}

func validateMonth(year, month int) error {
	if month < 1 || month > 12 {
		return &core.ValidationError{Field: "month", Err: core.ErrInvalidMonth}
	}
	if year < 1900 || year > 9999 {
		return &core.ValidationError{Field: "year", Err: core.ErrInvalidYear}
	}
	return nil
}

func summaryKey(userID string, year, month int) string {
	return fmt.Sprintf("%s:%04d-%02d", userID, year, month)
}

func (s *FinanceService) written(ctx context.Context, userID, kind string) {
	s.metrics.RecordCreated(kind)
	s.invalidate(ctx, userID)
}

func (s *FinanceService) invalidate(ctx context.Context, userID string) {
	if s.summaries != nil {
		s.summaries.DeletePrefix(ctx, userID+":")
	}
}

func (s *FinanceService) publish(ctx context.Context, typ amqp.EventType, userID, recordID string) {
	if s.events == nil {
		slog.DebugContext(ctx, "Event publisher not configured, skipping event", "type", typ)
		return
	}
	ev := amqp.NewFinanceEvent(typ, userID, recordID)
	ev.Timestamp = s.now().UTC()
	if err := s.events.Publish(ctx, *ev); err != nil {
		s.metrics.PublishFailed()
		slog.ErrorContext(ctx, "Failed to publish finance event",
			"type", typ, "record_id", recordID, "error", err)
	}
}
