// Package postgres implements the Record Store Gateway on a Postgres
// database through a pgx connection pool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	mpgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"financas/internal/core"
	"financas/internal/records"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	_ records.Gateway              = (*Store)(nil)
	_ records.SalaryTitheRegistrar = (*Store)(nil)
)

type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn, checks the connection and applies migrations.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{pool: pool}, nil
}

// RunMigrations applies the embedded schema through a database/sql view of the pool.
func RunMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	driver, err := mpgx.WithInstance(db, &mpgx.Config{})
	if err != nil {
		return fmt.Errorf("create pgx driver: %w", err)
	}
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", d, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// Close hands the driver's connection back to the pool.
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) CreatePurchase(ctx context.Context, p core.Purchase) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO purchases(id, user_id, purchase_date, total_cents, duration_minutes, payment_method, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7)
	`, p.ID, p.UserID, p.Date.Time, p.Total.Cents, p.DurationMinutes, string(p.PaymentMethod), p.CreatedAt)
	return records.Wrap("create purchase", err)
}

const purchaseColumns = `id, user_id, purchase_date, total_cents, duration_minutes, payment_method, created_at`

func scanPurchase(row pgx.Row) (core.Purchase, error) {
	var (
		p    core.Purchase
		date time.Time
		pm   string
	)
	if err := row.Scan(&p.ID, &p.UserID, &date, &p.Total.Cents, &p.DurationMinutes, &pm, &p.CreatedAt); err != nil {
		return core.Purchase{}, err
	}
	p.Date = core.DateOf(date)
	p.PaymentMethod = core.PaymentMethod(pm)
	return p, nil
}

func (s *Store) GetPurchase(ctx context.Context, userID, id string) (core.Purchase, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id=$1 AND user_id=$2`, id, userID)
	p, err := scanPurchase(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Purchase{}, records.ErrNotFound
	}
	return p, records.Wrap("get purchase", err)
}

func (s *Store) ListPurchases(ctx context.Context, userID string, from, to core.Date) ([]core.Purchase, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+purchaseColumns+`
		FROM purchases
		WHERE user_id=$1 AND purchase_date BETWEEN $2 AND $3
		ORDER BY purchase_date, created_at
	`, userID, from.Time, to.Time)
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
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bills(id, user_id, name, amount_cents, category, bill_type, due_day, active, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, b.ID, b.UserID, b.Name, b.Amount.Cents, string(b.Category), string(b.Type), b.DueDay, b.Active, b.CreatedAt)
	return records.Wrap("create bill", err)
}

const billColumns = `id, user_id, name, amount_cents, category, bill_type, due_day, active, created_at`

func scanBill(row pgx.Row) (core.Bill, error) {
	var (
		b       core.Bill
		cat, bt string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.Name, &b.Amount.Cents, &cat, &bt, &b.DueDay, &b.Active, &b.CreatedAt); err != nil {
		return core.Bill{}, err
	}
	b.Category = core.BillCategory(cat)
	b.Type = core.BillType(bt)
	return b, nil
}

func (s *Store) GetBill(ctx context.Context, userID, id string) (core.Bill, error) {
	b, err := scanBill(s.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id=$1 AND user_id=$2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Bill{}, records.ErrNotFound
	}
	return b, records.Wrap("get bill", err)
}

func (s *Store) UpdateBill(ctx context.Context, b core.Bill) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE bills SET name=$1, amount_cents=$2, category=$3, bill_type=$4, due_day=$5, active=$6
		WHERE id=$7 AND user_id=$8
	`, b.Name, b.Amount.Cents, string(b.Category), string(b.Type), b.DueDay, b.Active, b.ID, b.UserID)
	if err != nil {
		return records.Wrap("update bill", err)
	}
	if tag.RowsAffected() == 0 {
		return records.ErrNotFound
	}
	return nil
}

func (s *Store) ListBills(ctx context.Context, userID string, activeOnly bool) ([]core.Bill, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+billColumns+` FROM bills
		WHERE user_id=$1 AND (active OR NOT $2)
		ORDER BY created_at, id
	`, userID, activeOnly)
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
	_, err := ex.Exec(ctx, `
		INSERT INTO salaries(id, user_id, amount_cents, month, year, created_at)
		VALUES($1,$2,$3,$4,$5,$6)
	`, sal.ID, sal.UserID, sal.Amount.Cents, sal.Month, sal.Year, sal.CreatedAt)
	if isUniqueViolation(err) {
		return records.ErrSalaryExists
	}
	return err
}

func (s *Store) CreateSalary(ctx context.Context, sal core.Salary) error {
	return records.Wrap("create salary", insertSalary(ctx, s.pool, sal))
}

const salaryColumns = `id, user_id, amount_cents, month, year, created_at`

func scanSalary(row pgx.Row) (core.Salary, error) {
	var sal core.Salary
	err := row.Scan(&sal.ID, &sal.UserID, &sal.Amount.Cents, &sal.Month, &sal.Year, &sal.CreatedAt)
	return sal, err
}

func (s *Store) GetSalary(ctx context.Context, userID, id string) (core.Salary, error) {
	sal, err := scanSalary(s.pool.QueryRow(ctx, `SELECT `+salaryColumns+` FROM salaries WHERE id=$1 AND user_id=$2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Salary{}, records.ErrNotFound
	}
	return sal, records.Wrap("get salary", err)
}

func (s *Store) SalaryForMonth(ctx context.Context, userID string, year, month int) (core.Salary, error) {
	sal, err := scanSalary(s.pool.QueryRow(ctx,
		`SELECT `+salaryColumns+` FROM salaries WHERE user_id=$1 AND year=$2 AND month=$3`, userID, year, month))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Salary{}, records.ErrNotFound
	}
	return sal, records.Wrap("salary for month", err)
}

func (s *Store) ListSalaries(ctx context.Context, userID string) ([]core.Salary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+salaryColumns+` FROM salaries WHERE user_id=$1 ORDER BY year DESC, month DESC`, userID)
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
	_, err := ex.Exec(ctx, `
		INSERT INTO tithes(id, user_id, salary_id, amount_cents, paid, paid_at, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7)
	`, t.ID, t.UserID, t.SalaryID, t.Amount.Cents, t.Paid, t.PaidAt, t.CreatedAt)
	if isUniqueViolation(err) {
		return records.ErrTitheExists
	}
	return err
}

func (s *Store) CreateTithe(ctx context.Context, t core.Tithe) error {
	return records.Wrap("create tithe", insertTithe(ctx, s.pool, t))
}

// RegisterSalaryWithTithe writes the salary and its tithe in one transaction.
func (s *Store) RegisterSalaryWithTithe(ctx context.Context, sal core.Salary, t core.Tithe) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return records.Wrap("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertSalary(ctx, tx, sal); err != nil {
		return records.Wrap("create salary", err)
	}
	if err := insertTithe(ctx, tx, t); err != nil {
		return records.Wrap("create tithe", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return records.Wrap("commit salary", err)
	}

	slog.InfoContext(ctx, "Salary and tithe saved to Postgres",
		"salary_id", sal.ID, "tithe_id", t.ID, "amount_cents", sal.Amount.Cents)
	return nil
}

const titheColumns = `id, user_id, salary_id, amount_cents, paid, paid_at, created_at`

func scanTithe(row pgx.Row) (core.Tithe, error) {
	var t core.Tithe
	err := row.Scan(&t.ID, &t.UserID, &t.SalaryID, &t.Amount.Cents, &t.Paid, &t.PaidAt, &t.CreatedAt)
	return t, err
}

func (s *Store) GetTithe(ctx context.Context, userID, id string) (core.Tithe, error) {
	t, err := scanTithe(s.pool.QueryRow(ctx, `SELECT `+titheColumns+` FROM tithes WHERE id=$1 AND user_id=$2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Tithe{}, records.ErrNotFound
	}
	return t, records.Wrap("get tithe", err)
}

func (s *Store) TitheForSalary(ctx context.Context, userID, salaryID string) (core.Tithe, error) {
	t, err := scanTithe(s.pool.QueryRow(ctx,
		`SELECT `+titheColumns+` FROM tithes WHERE salary_id=$1 AND user_id=$2`, salaryID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Tithe{}, records.ErrNotFound
	}
	return t, records.Wrap("tithe for salary", err)
}

func (s *Store) ListTithes(ctx context.Context, userID string) ([]core.Tithe, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+titheColumns+` FROM tithes WHERE user_id=$1 ORDER BY created_at DESC`, userID)
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

func (s *Store) MarkTithePaid(ctx context.Context, userID, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tithes SET paid=TRUE, paid_at=$1
		WHERE id=$2 AND user_id=$3 AND NOT paid
	`, at, id, userID)
	if err != nil {
		return records.Wrap("mark tithe paid", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := s.GetTithe(ctx, userID, id); err != nil {
		return err
	}
	return core.ErrTitheAlreadyPaid
}
