package services_test

import (
	"context"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

// mockLedgerStore implements services.LedgerStore with per-method function
// fields; unset methods return zero values.
type mockLedgerStore struct {
	DueRecurringTransactionsFn  func(ctx context.Context, before time.Time) ([]core.Transaction, error)
	SettleRecurringFn           func(ctx context.Context, template, occurrence core.Transaction, nextDate time.Time) (bool, error)
	BudgetsWithDefaultAccountFn func(ctx context.Context) ([]services.BudgetScope, error)
	BudgetForUserFn             func(ctx context.Context, userID string) (*core.Budget, error)
	TransactionsInPeriodFn      func(ctx context.Context, scope core.Scope, start, end time.Time) ([]core.Transaction, error)
	InsertTransactionFn         func(ctx context.Context, t core.Transaction) error
	WasAlertSentFn              func(ctx context.Context, budgetID string, period core.PeriodKey) (bool, error)
	RecordAlertSentFn           func(ctx context.Context, budgetID string, period core.PeriodKey) (bool, error)
}

func (m *mockLedgerStore) DueRecurringTransactions(ctx context.Context, before time.Time) ([]core.Transaction, error) {
	if m.DueRecurringTransactionsFn != nil {
		return m.DueRecurringTransactionsFn(ctx, before)
	}
	return nil, nil
}

func (m *mockLedgerStore) SettleRecurring(ctx context.Context, template, occurrence core.Transaction, nextDate time.Time) (bool, error) {
	if m.SettleRecurringFn != nil {
		return m.SettleRecurringFn(ctx, template, occurrence, nextDate)
	}
	return true, nil
}

func (m *mockLedgerStore) BudgetsWithDefaultAccount(ctx context.Context) ([]services.BudgetScope, error) {
	if m.BudgetsWithDefaultAccountFn != nil {
		return m.BudgetsWithDefaultAccountFn(ctx)
	}
	return nil, nil
}

func (m *mockLedgerStore) BudgetForUser(ctx context.Context, userID string) (*core.Budget, error) {
	if m.BudgetForUserFn != nil {
		return m.BudgetForUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockLedgerStore) TransactionsInPeriod(ctx context.Context, scope core.Scope, start, end time.Time) ([]core.Transaction, error) {
	if m.TransactionsInPeriodFn != nil {
		return m.TransactionsInPeriodFn(ctx, scope, start, end)
	}
	return nil, nil
}

func (m *mockLedgerStore) InsertTransaction(ctx context.Context, t core.Transaction) error {
	if m.InsertTransactionFn != nil {
		return m.InsertTransactionFn(ctx, t)
	}
	return nil
}

func (m *mockLedgerStore) WasAlertSent(ctx context.Context, budgetID string, period core.PeriodKey) (bool, error) {
	if m.WasAlertSentFn != nil {
		return m.WasAlertSentFn(ctx, budgetID, period)
	}
	return false, nil
}

func (m *mockLedgerStore) RecordAlertSent(ctx context.Context, budgetID string, period core.PeriodKey) (bool, error) {
	if m.RecordAlertSentFn != nil {
		return m.RecordAlertSentFn(ctx, budgetID, period)
	}
	return true, nil
}

// mockNotifier records alerts it receives; NotifyFn overrides the outcome.
type mockNotifier struct {
	mu       sync.Mutex
	NotifyFn func(ctx context.Context, alert services.BudgetAlert) error
	alerts   []services.BudgetAlert
}

func (m *mockNotifier) NotifyBudgetAlert(ctx context.Context, alert services.BudgetAlert) error {
	m.mu.Lock()
	m.alerts = append(m.alerts, alert)
	m.mu.Unlock()
	if m.NotifyFn != nil {
		return m.NotifyFn(ctx, alert)
	}
	return nil
}

func (m *mockNotifier) sent() []services.BudgetAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]services.BudgetAlert, len(m.alerts))
	copy(out, m.alerts)
	return out
}
