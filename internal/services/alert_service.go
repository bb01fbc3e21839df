package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// alertThresholdPercent is the budget usage at which an alert fires.
const alertThresholdPercent = 80

// AlertDecision is the outcome of evaluating one budget against the current
// period's spend.
type AlertDecision struct {
	ShouldAlert   bool
	PercentUsed   decimal.Decimal
	TotalExpenses core.Money
	BudgetAmount  core.Money
	Period        core.PeriodKey
}

// AlertService decides whether a budget has crossed the alert threshold for
// the current period. It never sends anything itself; the dispatcher records
// the alerted period and hands the payload to the notifier.
type AlertService struct {
	store LedgerStore
}

func NewAlertService(store LedgerStore) *AlertService {
	return &AlertService{store: store}
}

// Evaluate computes current-period expense usage for the budget's user on
// their default account and returns ShouldAlert when usage reaches the
// threshold and no alert has been recorded for this period yet.
//
// A zero or negative budget amount yields no decision rather than an error:
// there is nothing meaningful to divide by.
func (s *AlertService) Evaluate(ctx context.Context, scope BudgetScope, now time.Time) (AlertDecision, error) {
	period := core.PeriodKeyFor(now)
	decision := AlertDecision{Period: period, BudgetAmount: scope.Budget.Amount}

	if scope.Budget.Amount.Cents <= 0 {
		return decision, nil
	}

	sent, err := s.store.WasAlertSent(ctx, scope.Budget.ID, period)
	if err != nil {
		return decision, fmt.Errorf("check alert state for budget %s: %w", scope.Budget.ID, err)
	}
	if sent {
		return decision, nil
	}

	expenses, err := s.currentPeriodExpenses(ctx, scope.User.ID, scope.Account.ID, now)
	if err != nil {
		return decision, err
	}
	decision.TotalExpenses = expenses

	// Threshold check by integer cross-multiplication so that exactly 80%
	// fires and 79.99% does not; the reported percentage is decimal.
	decision.PercentUsed = decimal.NewFromInt(expenses.Cents).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(scope.Budget.Amount.Cents), 2)
	decision.ShouldAlert = expenses.Cents*100 >= scope.Budget.Amount.Cents*alertThresholdPercent

	if decision.ShouldAlert {
		slog.InfoContext(ctx, "Budget crossed alert threshold",
			"budget_id", scope.Budget.ID,
			"user_id", scope.User.ID,
			"account", scope.Account.Name,
			"percent_used", decision.PercentUsed.String(),
			"period", string(period))
	}
	return decision, nil
}

// CurrentBudgetUsage returns the user's budget together with the expenses
// accumulated so far this period on the given account. The budget is nil
// when the user has none.
func (s *AlertService) CurrentBudgetUsage(ctx context.Context, userID, accountID string, now time.Time) (*core.Budget, core.Money, error) {
	budget, err := s.store.BudgetForUser(ctx, userID)
	if err != nil {
		return nil, core.Money{}, fmt.Errorf("budget for user %s: %w", userID, err)
	}
	expenses, err := s.currentPeriodExpenses(ctx, userID, accountID, now)
	if err != nil {
		return nil, core.Money{}, err
	}
	return budget, expenses, nil
}

func (s *AlertService) currentPeriodExpenses(ctx context.Context, userID, accountID string, now time.Time) (core.Money, error) {
	start, end := core.PeriodBounds(now)
	scope := core.Scope{UserID: userID, AccountID: accountID}
	txns, err := s.store.TransactionsInPeriod(ctx, scope, start, end)
	if err != nil {
		return core.Money{}, fmt.Errorf("transactions in period for user %s: %w", userID, err)
	}
	return core.SumByType(txns, core.Expense, start, end, scope), nil
}
