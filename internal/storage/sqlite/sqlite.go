// Package sqlite implements the Record Store Gateway on top of SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"financas/internal/core"
	"financas/internal/records"

	_ "modernc.org/sqlite"
)

var (
	_ records.Gateway              = (*Store)(nil)
	_ records.SalaryTitheRegistrar = (*Store)(nil)
)

type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies migrations.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// dsn applies the connection pragmas to every connection the pool opens.
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_pragma=foreign_keys(1)"
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const tsLayout = time.RFC3339Nano

func formatTS(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTS(s string) time.Time {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Store) CreatePurchase(ctx context.Context, p core.Purchase) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO purchases (id, user_id, purchase_date, total_cents, duration_minutes, payment_method, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Date.String(), p.Total.Cents, p.DurationMinutes, string(p.PaymentMethod), formatTS(p.CreatedAt))
	if err != nil {
		return records.Wrap("create purchase", err)
	}
	slog.DebugContext(ctx, "Purchase saved to SQLite", "id", p.ID, "amount_cents", p.Total.Cents)
	return nil
}

const purchaseColumns = `id, user_id, purchase_date, total_cents, duration_minutes, payment_method, created_at`

func scanPurchase(sc scanner) (core.Purchase, error) {
	var (
		p         core.Purchase
		date, pm  string
		createdAt string
	)
	if err := sc.Scan(&p.ID, &p.UserID, &date, &p.Total.Cents, &p.DurationMinutes, &pm, &createdAt); err != nil {
		return core.Purchase{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Purchase{}, fmt.Errorf("date %q: %w", date, err)
	}
	p.Date = d
	p.PaymentMethod = core.PaymentMethod(pm)
	p.CreatedAt = parseTS(createdAt)
	return p, nil
}

func (s *Store) GetPurchase(ctx context.Context, userID, id string) (core.Purchase, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = ? AND user_id = ?`, id, userID)
	p, err := scanPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Purchase{}, records.ErrNotFound
	}
	return p, records.Wrap("get purchase", err)
}

func (s *Store) ListPurchases(ctx context.Context, userID string, from, to core.Date) ([]core.Purchase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+purchaseColumns+`
		 FROM purchases WHERE user_id = ? AND purchase_date BETWEEN ? AND ?
		 ORDER BY purchase_date, created_at`,
		userID, from.String(), to.String())
	if err != nil {
		return nil, records.Wrap("list purchases", err)
	}
	defer rows.Close()

	var out []core.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, records.Wrap("scan purchase", err)
		}
		out = append(out, p)
	}
	return out, records.Wrap("list purchases", rows.Err())
}

func (s *Store) CreateBill(ctx context.Context, b core.Bill) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bills (id, user_id, name, amount_cents, category, bill_type, due_day, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Name, b.Amount.Cents, string(b.Category), string(b.Type), b.DueDay, b.Active, formatTS(b.CreatedAt))
	return records.Wrap("create bill", err)
}

const billColumns = `id, user_id, name, amount_cents, category, bill_type, due_day, active, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanBill(sc scanner) (core.Bill, error) {
	var (
		b           core.Bill
		cat, bt, ts string
	)
	if err := sc.Scan(&b.ID, &b.UserID, &b.Name, &b.Amount.Cents, &cat, &bt, &b.DueDay, &b.Active, &ts); err != nil {
		return core.Bill{}, err
	}
	b.Category = core.BillCategory(cat)
	b.Type = core.BillType(bt)
	b.CreatedAt = parseTS(ts)
	return b, nil
}

func (s *Store) GetBill(ctx context.Context, userID, id string) (core.Bill, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = ? AND user_id = ?`, id, userID)
	b, err := scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Bill{}, records.ErrNotFound
	}
	return b, records.Wrap("get bill", err)
}

func (s *Store) UpdateBill(ctx context.Context, b core.Bill) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bills SET name = ?, amount_cents = ?, category = ?, bill_type = ?, due_day = ?, active = ?
		 WHERE id = ? AND user_id = ?`,
		b.Name, b.Amount.Cents, string(b.Category), string(b.Type), b.DueDay, b.Active, b.ID, b.UserID)
	if err != nil {
		return records.Wrap("update bill", err)
	}
	return requireRow("update bill", res)
}

func (s *Store) ListBills(ctx context.Context, userID string, activeOnly bool) ([]core.Bill, error) {
	q := `SELECT ` + billColumns + ` FROM bills WHERE user_id = ?`
	if activeOnly {
		q += ` AND active = 1`
	}
	q += ` ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, records.Wrap("list bills", err)
	}
	defer rows.Close()

	var out []core.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, records.Wrap("scan bill", err)
		}
		out = append(out, b)
	}
	return out, records.Wrap("list bills", rows.Err())
}

func insertSalary(ctx context.Context, ex execer, sal core.Salary) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO salaries (id, user_id, amount_cents, month, year, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sal.ID, sal.UserID, sal.Amount.Cents, sal.Month, sal.Year, formatTS(sal.CreatedAt))
	if isUniqueViolation(err) {
		return records.ErrSalaryExists
	}
	return err
}

func (s *Store) CreateSalary(ctx context.Context, sal core.Salary) error {
	return records.Wrap("create salary", insertSalary(ctx, s.db, sal))
}

const salaryColumns = `id, user_id, amount_cents, month, year, created_at`

func scanSalary(sc scanner) (core.Salary, error) {
	var (
		sal core.Salary
		ts  string
	)
	if err := sc.Scan(&sal.ID, &sal.UserID, &sal.Amount.Cents, &sal.Month, &sal.Year, &ts); err != nil {
		return core.Salary{}, err
	}
	sal.CreatedAt = parseTS(ts)
	return sal, nil
}

func (s *Store) GetSalary(ctx context.Context, userID, id string) (core.Salary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+salaryColumns+` FROM salaries WHERE id = ? AND user_id = ?`, id, userID)
	sal, err := scanSalary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Salary{}, records.ErrNotFound
	}
	return sal, records.Wrap("get salary", err)
}

func (s *Store) SalaryForMonth(ctx context.Context, userID string, year, month int) (core.Salary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+salaryColumns+` FROM salaries WHERE user_id = ? AND year = ? AND month = ?`, userID, year, month)
	sal, err := scanSalary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Salary{}, records.ErrNotFound
	}
	return sal, records.Wrap("salary for month", err)
}

func (s *Store) ListSalaries(ctx context.Context, userID string) ([]core.Salary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+salaryColumns+` FROM salaries WHERE user_id = ? ORDER BY year DESC, month DESC`, userID)
	if err != nil {
		return nil, records.Wrap("list salaries", err)
	}
	defer rows.Close()

	var out []core.Salary
	for rows.Next() {
		sal, err := scanSalary(rows)
		if err != nil {
			return nil, records.Wrap("scan salary", err)
		}
		out = append(out, sal)
	}
	return out, records.Wrap("list salaries", rows.Err())
}

func insertTithe(ctx context.Context, ex execer, t core.Tithe) error {
	var paidAt sql.NullString
	if t.PaidAt != nil {
		paidAt = sql.NullString{String: formatTS(*t.PaidAt), Valid: true}
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO tithes (id, user_id, salary_id, amount_cents, paid, paid_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.SalaryID, t.Amount.Cents, t.Paid, paidAt, formatTS(t.CreatedAt))
	if isUniqueViolation(err) {
		return records.ErrTitheExists
	}
	return err
}

func (s *Store) CreateTithe(ctx context.Context, t core.Tithe) error {
	return records.Wrap("create tithe", insertTithe(ctx, s.db, t))
}

// RegisterSalaryWithTithe writes the salary and its tithe in one transaction.
func (s *Store) RegisterSalaryWithTithe(ctx context.Context, sal core.Salary, t core.Tithe) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return records.Wrap("begin transaction", err)
	}
	defer tx.Rollback()

	if err := insertSalary(ctx, tx, sal); err != nil {
		return records.Wrap("create salary", err)
	}
	if err := insertTithe(ctx, tx, t); err != nil {
		return records.Wrap("create tithe", err)
	}
	if err := tx.Commit(); err != nil {
		return records.Wrap("commit salary", err)
	}

	slog.InfoContext(ctx, "Salary and tithe saved to SQLite",
		"salary_id", sal.ID, "tithe_id", t.ID, "amount_cents", sal.Amount.Cents)
	return nil
}

const titheColumns = `id, user_id, salary_id, amount_cents, paid, paid_at, created_at`

func scanTithe(sc scanner) (core.Tithe, error) {
	var (
		t      core.Tithe
		paidAt sql.NullString
		ts     string
	)
	if err := sc.Scan(&t.ID, &t.UserID, &t.SalaryID, &t.Amount.Cents, &t.Paid, &paidAt, &ts); err != nil {
		return core.Tithe{}, err
	}
	if paidAt.Valid {
		at := parseTS(paidAt.String)
		t.PaidAt = &at
	}
	t.CreatedAt = parseTS(ts)
	return t, nil
}

func (s *Store) GetTithe(ctx context.Context, userID, id string) (core.Tithe, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+titheColumns+` FROM tithes WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTithe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Tithe{}, records.ErrNotFound
	}
	return t, records.Wrap("get tithe", err)
}

func (s *Store) TitheForSalary(ctx context.Context, userID, salaryID string) (core.Tithe, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+titheColumns+` FROM tithes WHERE salary_id = ? AND user_id = ?`, salaryID, userID)
	t, err := scanTithe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Tithe{}, records.ErrNotFound
	}
	return t, records.Wrap("tithe for salary", err)
}

func (s *Store) ListTithes(ctx context.Context, userID string) ([]core.Tithe, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+titheColumns+` FROM tithes WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, records.Wrap("list tithes", err)
	}
	defer rows.Close()

	var out []core.Tithe
	for rows.Next() {
		t, err := scanTithe(rows)
		if err != nil {
			return nil, records.Wrap("scan tithe", err)
		}
		out = append(out, t)
	}
	return out, records.Wrap("list tithes", rows.Err())
}

// MarkTithePaid only touches pending rows so a paid tithe keeps its paid_at.
func (s *Store) MarkTithePaid(ctx context.Context, userID, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tithes SET paid = 1, paid_at = ? WHERE id = ? AND user_id = ? AND paid = 0`,
		formatTS(at), id, userID)
	if err != nil {
		return records.Wrap("mark tithe paid", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return records.Wrap("mark tithe paid", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.GetTithe(ctx, userID, id); err != nil {
		return err
	}
	return core.ErrTitheAlreadyPaid
}

func requireRow(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return records.Wrap(op, err)
	}
	if n == 0 {
		return records.ErrNotFound
	}
	return nil
}
