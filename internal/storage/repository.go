package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"

	_ "modernc.org/sqlite"
)

// timeLayout is how all instants are stored: RFC 3339 in UTC with
// fixed-width nanoseconds. The width matters: RFC3339Nano drops trailing
// zeros, so "...59Z" would sort after "...59.999999999Z" and break the
// string comparisons the period and due-date queries rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository is the ledger store. It implements services.LedgerStore.
type SQLiteRepository struct {
	db *sql.DB
}

var _ services.LedgerStore = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
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

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

const transactionColumns = `id, user_id, account_id, type, amount_cents, category, description,
	date, is_recurring, recurring_interval, next_recurring_date, last_processed`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t                  core.Transaction
		category           string
		date               string
		interval           sql.NullString
		nextDate, lastProc sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &t.Type, &t.Amount.Cents,
		&category, &t.Description, &date, &t.IsRecurring, &interval, &nextDate, &lastProc)
	if err != nil {
		return t, err
	}
	t.Category = core.Category(category)
	if t.Date, err = parseTime(date); err != nil {
		return t, fmt.Errorf("parse transaction date: %w", err)
	}
	if interval.Valid {
		t.RecurringInterval = core.RecurringInterval(interval.String)
	}
	if nextDate.Valid {
		if t.NextRecurringDate, err = parseTime(nextDate.String); err != nil {
			return t, fmt.Errorf("parse next recurring date: %w", err)
		}
	}
	if lastProc.Valid {
		if t.LastProcessed, err = parseTime(lastProc.String); err != nil {
			return t, fmt.Errorf("parse last processed: %w", err)
		}
	}
	return t, nil
}

// DueRecurringTransactions implements services.LedgerStore.
func (r *SQLiteRepository) DueRecurringTransactions(ctx context.Context, before time.Time) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE is_recurring = 1
		  AND next_recurring_date IS NOT NULL
		  AND next_recurring_date <= ?
		ORDER BY account_id, next_recurring_date`, fmtTime(before))
	if err != nil {
		return nil, fmt.Errorf("query due recurring transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due recurring transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SettleRecurring implements services.LedgerStore. The next-date advance,
// occurrence insert and balance delta run in one SQL transaction; the
// conditional WHERE on the template's current next date makes retries
// settle each occurrence at most once.
func (r *SQLiteRepository) SettleRecurring(ctx context.Context, template core.Transaction, occurrence core.Transaction, nextDate time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin settle transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET next_recurring_date = ?, last_processed = ?
		WHERE id = ? AND is_recurring = 1 AND next_recurring_date = ?`,
		fmtTime(nextDate), fmtTime(time.Now()),
		template.ID, fmtTime(template.NextRecurringDate))
	if err != nil {
		return false, fmt.Errorf("advance recurrence date: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance recurrence date: %w", err)
	}
	if affected == 0 {
		// Another pass already moved the date past this occurrence.
		return false, nil
	}

	if err := insertTransactionTx(ctx, tx, occurrence); err != nil {
		return false, err
	}
	if err := updateAccountBalanceTx(ctx, tx, occurrence.AccountID, occurrence.SignedCents()); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit settle transaction: %w", err)
	}

	slog.InfoContext(ctx, "Recurring occurrence settled",
		"template_id", template.ID,
		"occurrence_id", occurrence.ID,
		"amount_cents", occurrence.Amount.Cents,
		"next_date", fmtTime(nextDate))
	return true, nil
}

func insertTransactionTx(ctx context.Context, tx *sql.Tx, t core.Transaction) error {
	var interval, nextDate, lastProc any
	if t.RecurringInterval != "" {
		interval = string(t.RecurringInterval)
	}
	if !t.NextRecurringDate.IsZero() {
		nextDate = fmtTime(t.NextRecurringDate)
	}
	if !t.LastProcessed.IsZero() {
		lastProc = fmtTime(t.LastProcessed)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, account_id, type, amount_cents, category,
			description, date, is_recurring, recurring_interval, next_recurring_date, last_processed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.AccountID, string(t.Type), t.Amount.Cents, string(t.Category),
		t.Description, fmtTime(t.Date), t.IsRecurring, interval, nextDate, lastProc)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", t.ID, err)
	}
	return nil
}

func updateAccountBalanceTx(ctx context.Context, tx *sql.Tx, accountID string, deltaCents int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + ? WHERE id = ?`,
		deltaCents, accountID)
	if err != nil {
		return fmt.Errorf("update balance for account %s: %w", accountID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update balance for account %s: %w", accountID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update balance: account %s not found", accountID)
	}
	return nil
}

// InsertTransaction implements services.LedgerStore. The insert and the
// balance delta commit together.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTransactionTx(ctx, tx, t); err != nil {
		return err
	}
	if err := updateAccountBalanceTx(ctx, tx, t.AccountID, t.SignedCents()); err != nil {
		return err
	}
	return tx.Commit()
}

// TransactionsInPeriod implements services.LedgerStore.
func (r *SQLiteRepository) TransactionsInPeriod(ctx context.Context, scope core.Scope, start, end time.Time) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = ? AND date >= ? AND date <= ?`
	args := []any{scope.UserID, fmtTime(start), fmtTime(end)}
	if scope.AccountID != "" {
		query += ` AND account_id = ?`
		args = append(args, scope.AccountID)
	}
	query += ` ORDER BY date`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions in period: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// BudgetsWithDefaultAccount implements services.LedgerStore.
func (r *SQLiteRepository) BudgetsWithDefaultAccount(ctx context.Context) ([]services.BudgetScope, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.user_id, b.amount_cents,
		       a.id, a.name, a.balance_cents,
		       u.email, u.name
		FROM budgets b
		JOIN users u ON u.id = b.user_id
		JOIN accounts a ON a.user_id = u.id AND a.is_default = 1
		ORDER BY b.id`)
	if err != nil {
		return nil, fmt.Errorf("query budgets with default account: %w", err)
	}
	defer rows.Close()

	var out []services.BudgetScope
	for rows.Next() {
		var s services.BudgetScope
		err := rows.Scan(&s.Budget.ID, &s.Budget.UserID, &s.Budget.Amount.Cents,
			&s.Account.ID, &s.Account.Name, &s.Account.Balance.Cents,
			&s.User.Email, &s.User.Name)
		if err != nil {
			return nil, fmt.Errorf("scan budget scope: %w", err)
		}
		s.User.ID = s.Budget.UserID
		s.Account.UserID = s.Budget.UserID
		s.Account.IsDefault = true
		out = append(out, s)
	}
	return out, rows.Err()
}

// BudgetForUser implements services.LedgerStore.
func (r *SQLiteRepository) BudgetForUser(ctx context.Context, userID string) (*core.Budget, error) {
	var b core.Budget
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, amount_cents FROM budgets WHERE user_id = ?`, userID).
		Scan(&b.ID, &b.UserID, &b.Amount.Cents)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query budget for user %s: %w", userID, err)
	}
	return &b, nil
}

// WasAlertSent implements services.LedgerStore.
func (r *SQLiteRepository) WasAlertSent(ctx context.Context, budgetID string, period core.PeriodKey) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM budget_alerts WHERE budget_id = ? AND period = ?`,
		budgetID, string(period)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query alert state: %w", err)
	}
	return n > 0, nil
}

// RecordAlertSent implements services.LedgerStore. The primary key on
// (budget_id, period) makes the insert a race arbiter: only the process
// whose insert landed gets true, a repeat is ignored and gets false.
func (r *SQLiteRepository) RecordAlertSent(ctx context.Context, budgetID string, period core.PeriodKey) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO budget_alerts (budget_id, period, sent_at) VALUES (?, ?, ?)`,
		budgetID, string(period), fmtTime(time.Now()))
	if err != nil {
		return false, fmt.Errorf("record alert sent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record alert sent: %w", err)
	}
	return affected > 0, nil
}

// SaveUser inserts or updates a user row.
func (r *SQLiteRepository) SaveUser(ctx context.Context, u core.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET email = excluded.email, name = excluded.name`,
		u.ID, u.Email, u.Name)
	if err != nil {
		return fmt.Errorf("save user %s: %w", u.ID, err)
	}
	return nil
}

// SaveAccount inserts or updates an account row.
func (r *SQLiteRepository) SaveAccount(ctx context.Context, a core.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, name, balance_cents, is_default)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			balance_cents = excluded.balance_cents,
			is_default = excluded.is_default`,
		a.ID, a.UserID, a.Name, a.Balance.Cents, a.IsDefault)
	if err != nil {
		return fmt.Errorf("save account %s: %w", a.ID, err)
	}
	return nil
}

// UpsertBudget writes the user's single budget row: one budget per user,
// keyed on user_id.
func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (id, user_id, amount_cents) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET amount_cents = excluded.amount_cents`,
		b.ID, b.UserID, b.Amount.Cents)
	if err != nil {
		return fmt.Errorf("upsert budget for user %s: %w", b.UserID, err)
	}
	return nil
}

// AccountByID returns one account row.
func (r *SQLiteRepository) AccountByID(ctx context.Context, accountID string) (*core.Account, error) {
	var a core.Account
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, balance_cents, is_default
		FROM accounts WHERE id = ?`, accountID).
		Scan(&a.ID, &a.UserID, &a.Name, &a.Balance.Cents, &a.IsDefault)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query account %s: %w", accountID, err)
	}
	return &a, nil
}
