package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// BudgetScope bundles a budget with the user owning it and that user's
// default account, the scope budget alerts are evaluated against.
type BudgetScope struct {
	Budget  core.Budget
	Account core.Account
	User    core.User
}

// BudgetAlert is the payload handed to the notification channel when a
// budget crosses the alert threshold.
type BudgetAlert struct {
	BudgetID      string
	UserID        string
	Email         string
	UserName      string
	AccountName   string
	PercentUsed   decimal.Decimal
	BudgetAmount  core.Money
	TotalExpenses core.Money
	Period        core.PeriodKey
}

// LedgerStore is the persistence collaborator of the engine. Implementations
// must make SettleRecurring atomic: occurrence insert, next-date advance and
// balance delta either all apply or none do.
type LedgerStore interface {
	// DueRecurringTransactions returns all recurring templates whose next
	// occurrence date is at or before the given instant.
	DueRecurringTransactions(ctx context.Context, before time.Time) ([]core.Transaction, error)

	// SettleRecurring materializes one due occurrence of template. It
	// inserts occurrence, advances the template's next occurrence date to
	// nextDate and applies occurrence's signed effect to the account
	// balance, all in one transaction. The next-date update is conditional
	// on the template still holding the due date it was read with; when
	// another pass has already advanced it, SettleRecurring rolls back and
	// returns false with no error.
	SettleRecurring(ctx context.Context, template core.Transaction, occurrence core.Transaction, nextDate time.Time) (bool, error)

	// BudgetsWithDefaultAccount returns every budget joined with its owner
	// and the owner's default account. Users without a default account are
	// omitted.
	BudgetsWithDefaultAccount(ctx context.Context) ([]BudgetScope, error)

	// BudgetForUser returns the user's budget, or nil when none exists.
	BudgetForUser(ctx context.Context, userID string) (*core.Budget, error)

	// TransactionsInPeriod lists settled transactions matching the scope
	// with dates in [start, end].
	TransactionsInPeriod(ctx context.Context, scope core.Scope, start, end time.Time) ([]core.Transaction, error)

	// InsertTransaction persists a settled transaction and applies its
	// signed effect to the owning account balance.
	InsertTransaction(ctx context.Context, t core.Transaction) error

	WasAlertSent(ctx context.Context, budgetID string, period core.PeriodKey) (bool, error)

	// RecordAlertSent durably marks the period as alerted. It returns true
	// only for the caller that actually created the record; a concurrent
	// pass that lost the race gets false and must not notify.
	RecordAlertSent(ctx context.Context, budgetID string, period core.PeriodKey) (bool, error)
}

// AlertNotifier delivers a budget alert to the outside world. Failures are
// non-fatal to the dispatcher pass; they are logged and reported, never
// retried inline.
type AlertNotifier interface {
	NotifyBudgetAlert(ctx context.Context, alert BudgetAlert) error
}
