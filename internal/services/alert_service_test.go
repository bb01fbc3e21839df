package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

func budgetScope(budgetCents int64) services.BudgetScope {
	return services.BudgetScope{
		Budget:  core.Budget{ID: "b1", UserID: "u1", Amount: core.Money{Cents: budgetCents}},
		Account: core.Account{ID: "a1", UserID: "u1", Name: "Main", IsDefault: true},
		User:    core.User{ID: "u1", Email: "u1@example.com", Name: "Ada"},
	}
}

func expensesOf(cents ...int64) []core.Transaction {
	txns := make([]core.Transaction, 0, len(cents))
	for i, c := range cents {
		txns = append(txns, core.Transaction{
			ID:        string(rune('t' + i)),
			UserID:    "u1",
			AccountID: "a1",
			Type:      core.Expense,
			Amount:    core.Money{Cents: c},
			Category:  core.CategoryFood,
			Date:      utcDate(2024, 3, 10),
		})
	}
	return txns
}

func storeWithExpenses(cents ...int64) *mockLedgerStore {
	txns := expensesOf(cents...)
	return &mockLedgerStore{
		TransactionsInPeriodFn: func(ctx context.Context, scope core.Scope, start, end time.Time) ([]core.Transaction, error) {
			return txns, nil
		},
	}
}

func TestEvaluate_CrossesThreshold(t *testing.T) {
	svc := services.NewAlertService(storeWithExpenses(85000))
	now := utcDate(2024, 3, 20)

	decision, err := svc.Evaluate(context.Background(), budgetScope(100000), now)
	require.NoError(t, err)
	assert.True(t, decision.ShouldAlert)
	assert.Equal(t, "85.00", decision.PercentUsed.StringFixed(2))
	assert.Equal(t, int64(85000), decision.TotalExpenses.Cents)
	assert.Equal(t, int64(100000), decision.BudgetAmount.Cents)
	assert.Equal(t, core.PeriodKey("2024-03"), decision.Period)
}

// The threshold is inclusive and exact: 80.00% fires, 79.99% does not.
func TestEvaluate_ThresholdBoundary(t *testing.T) {
	now := utcDate(2024, 3, 20)

	tests := []struct {
		name          string
		expensesCents int64
		budgetCents   int64
		shouldAlert   bool
	}{
		{"exactly 80 percent", 80000, 100000, true},
		{"just under 80 percent", 79999, 100000, false},
		{"just over 80 percent", 80001, 100000, true},
		{"spend exceeds budget", 150000, 100000, true},
		{"odd budget exactly at threshold", 8, 10, true},
		{"odd budget under threshold", 7, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := services.NewAlertService(storeWithExpenses(tt.expensesCents))
			decision, err := svc.Evaluate(context.Background(), budgetScope(tt.budgetCents), now)
			require.NoError(t, err)
			assert.Equal(t, tt.shouldAlert, decision.ShouldAlert)
		})
	}
}

func TestEvaluate_ZeroBudget(t *testing.T) {
	store := storeWithExpenses(50000)
	called := false
	store.TransactionsInPeriodFn = func(ctx context.Context, scope core.Scope, start, end time.Time) ([]core.Transaction, error) {
		called = true
		return nil, nil
	}
	svc := services.NewAlertService(store)

	decision, err := svc.Evaluate(context.Background(), budgetScope(0), utcDate(2024, 3, 20))
	require.NoError(t, err)
	assert.False(t, decision.ShouldAlert)
	assert.False(t, called, "zero budget must short-circuit before querying transactions")
}

func TestEvaluate_AlertAlreadySentThisPeriod(t *testing.T) {
	store := storeWithExpenses(95000)
	store.WasAlertSentFn = func(ctx context.Context, budgetID string, period core.PeriodKey) (bool, error) {
		return true, nil
	}
	svc := services.NewAlertService(store)

	decision, err := svc.Evaluate(context.Background(), budgetScope(100000), utcDate(2024, 3, 20))
	require.NoError(t, err)
	assert.False(t, decision.ShouldAlert)
}

func TestEvaluate_NoSpend(t *testing.T) {
	svc := services.NewAlertService(&mockLedgerStore{})

	decision, err := svc.Evaluate(context.Background(), budgetScope(100000), utcDate(2024, 3, 20))
	require.NoError(t, err)
	assert.False(t, decision.ShouldAlert)
	assert.True(t, decision.PercentUsed.IsZero())
}

func TestEvaluate_StoreError(t *testing.T) {
	storeErr := errors.New("db locked")
	store := &mockLedgerStore{
		TransactionsInPeriodFn: func(ctx context.Context, scope core.Scope, start, end time.Time) ([]core.Transaction, error) {
			return nil, storeErr
		},
	}
	svc := services.NewAlertService(store)

	_, err := svc.Evaluate(context.Background(), budgetScope(100000), utcDate(2024, 3, 20))
	assert.ErrorIs(t, err, storeErr)
}

func TestCurrentBudgetUsage(t *testing.T) {
	store := storeWithExpenses(12500, 2500)
	store.BudgetForUserFn = func(ctx context.Context, userID string) (*core.Budget, error) {
		return &core.Budget{ID: "b1", UserID: userID, Amount: core.Money{Cents: 100000}}, nil
	}
	svc := services.NewAlertService(store)

	budget, expenses, err := svc.CurrentBudgetUsage(context.Background(), "u1", "a1", utcDate(2024, 3, 20))
	require.NoError(t, err)
	require.NotNil(t, budget)
	assert.Equal(t, int64(100000), budget.Amount.Cents)
	assert.Equal(t, int64(15000), expenses.Cents)
}

func TestCurrentBudgetUsage_NoBudget(t *testing.T) {
	svc := services.NewAlertService(&mockLedgerStore{})

	budget, expenses, err := svc.CurrentBudgetUsage(context.Background(), "u1", "a1", utcDate(2024, 3, 20))
	require.NoError(t, err)
	assert.Nil(t, budget)
	assert.Zero(t, expenses.Cents)
}
