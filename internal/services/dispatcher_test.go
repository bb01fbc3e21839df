package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

func newDispatcher(store *mockLedgerStore, notifier services.AlertNotifier) *services.Dispatcher {
	return services.NewDispatcher(store,
		services.NewSettlementService(store),
		services.NewAlertService(store),
		notifier, 4, time.Second)
}

func dueTemplates(accountIDs ...string) []core.Transaction {
	txns := make([]core.Transaction, 0, len(accountIDs))
	for i, acc := range accountIDs {
		txns = append(txns, core.Transaction{
			ID:                "tpl-" + acc + "-" + string(rune('0'+i)),
			UserID:            "u1",
			AccountID:         acc,
			Type:              core.Expense,
			Amount:            core.Money{Cents: 1000},
			Category:          core.CategoryBills,
			Description:       "Subscription",
			Date:              utcDate(2024, 1, 1),
			IsRecurring:       true,
			RecurringInterval: core.Monthly,
			NextRecurringDate: utcDate(2024, 3, 1),
		})
	}
	return txns
}

func TestRunOnce_SettlesAllDue(t *testing.T) {
	due := dueTemplates("a1", "a2", "a3")
	var mu sync.Mutex
	settledIDs := make(map[string]bool)
	store := &mockLedgerStore{
		DueRecurringTransactionsFn: func(ctx context.Context, before time.Time) ([]core.Transaction, error) {
			return due, nil
		},
		SettleRecurringFn: func(ctx context.Context, template, occurrence core.Transaction, nextDate time.Time) (bool, error) {
			mu.Lock()
			settledIDs[template.ID] = true
			mu.Unlock()
			return true, nil
		},
	}
	d := newDispatcher(store, &mockNotifier{})

	report, err := d.RunOnce(context.Background(), utcDate(2024, 3, 20))
	require.NoError(t, err)
	assert.Equal(t, 3, report.DueFound)
	assert.Equal(t, 3, report.Settled)
	assert.Len(t, settledIDs, 3)
	assert.NoError(t, report.Err())
}

// Templates on the same account settle strictly in sequence, in the order
// the store returned them.
func TestRunOnce_SameAccountSerialized(t *testing.T) {
	due := dueTemplates("a1", "a1", "a1")
	var mu sync.Mutex
	var order []string
	inFlight := 0
	store := &mockLedgerStore{
		DueRecurringTransactionsFn: func(ctx context.Context, before time.Time) ([]core.Transaction, error) {
			return due, nil
		},
		SettleRecurringFn: func(ctx context.Context, template, occurrence core.Transaction, nextDate time.Time) (bool, error) {
			mu.Lock()
			inFlight++
			if inFlight > 1 {
				mu.Unlock()
				t.Error("concurrent settlement on the same account")
				return false, nil
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			order = append(order, template.ID)
			inFlight--
			mu.Unlock()
			return true, nil
		},
	}
	d := newDispatcher(store, &mockNotifier{})

	report, err := d.RunOnce(context.Background(), utcDate(2024, 3, 20))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Settled)
	assert.Equal(t, []string{due[0].ID, due[1].ID, due[2].ID}, order)
}

// One failing template must not stop the others on different accounts.
func TestRunOnce_SettlementErrorIsolated(t *testing.T) {
	due := dueTemplates("a1", "a2")
	boom := errors.New("constraint violation")
	store := &mockLedgerStore{
		DueRecurringTransactionsFn: func(ctx context.Context, before time.Time) ([]core.Transaction, error) {
			return due, nil
		},
		SettleRecurringFn: func(ctx context.Context, template, occurrence core.Transaction, nextDate time.Time) (bool, error) {
			if template.AccountID == "a1" {
				return false, boom
			}
			return true, nil
		},
	}
	d := newDispatcher(store, &mockNotifier{})

	report, err := d.RunOnce(context.Background(), utcDate(2024, 3, 20))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Settled)
	require.Len(t, report.Errors, 1)
	assert.ErrorIs(t, report.Err(), boom)
}

func TestRunOnce_StoreUnavailableIsFatal(t *testing.T) {
	boom := errors.New("connection refused")
	store := &mockLedgerStore{
		DueRecurringTransactionsFn: func(ctx context.Context, before time.Time) ([]core.Transaction, error) {
			return nil, boom
		},
	}
	d := newDispatcher(store, &mockNotifier{})

	_, err := d.RunOnce(context.Background(), utcDate(2024, 3, 20))
	assert.ErrorIs(t, err, boom)
}

func TestRunOnce_BudgetListErrorReportedNotFatal(t *testing.T) {
	boom := errors.New("db locked")
	store := &mockLedgerStore{
		BudgetsWithDefaultAccountFn: func(ctx context.Context) ([]services.BudgetScope, error) {
			return nil, boom
		},
	}
	d := newDispatcher(store, &mockNotifier{})

	report, err := d.RunOnce(context.Background(), utcDate(2024, 3, 20))
	require.NoError(t, err)
	assert.ErrorIs(t, report.Err(), boom)
}

func TestRunOnce_FiresAlertAndRecordsPeriod(t *testing.T) {
	scope := budgetScope(100000)
	var mu sync.Mutex
	var recorded []core.PeriodKey
	store := storeWithExpenses(90000)
	store.BudgetsWithDefaultAccountFn = func(ctx context.Context) ([]services.BudgetScope, error) {
		return []services.BudgetScope{scope}, nil
	}
	store.RecordAlertSentFn = func(ctx context.Context, budgetID string, period core.PeriodKey) (bool, error) {
		mu.Lock()
		recorded = append(recorded, period)
		mu.Unlock()
		return true, nil
	}
	notifier := &mockNotifier{}
	d := newDispatcher(store, notifier)

	report, err := d.RunOnce(context.Background(), utcDate(2024, 3, 20))
	require.NoError(t, err)
	assert.Equal(t, 1, report.BudgetsChecked)
	assert.Equal(t, 1, report.AlertsSent)
	assert.NoError(t, report.Err())

	require.Len(t, recorded, 1)
	assert.Equal(t, core.PeriodKey("2024-03"), recorded[0])

	sent := notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "b1", sent[0].BudgetID)
	assert.Equal(t, "u1@example.com", sent[0].Email)
	assert.Equal(t, "Main", sent[0].AccountName)
	assert.Equal(t, "90.00", sent[0].PercentUsed.StringFixed(2))
	assert.Equal(t, int64(90000), sent[0].TotalExpenses.Cents)
}

func TestRunOnce_UnderThresholdNoAlert(t *testing.T) {
	scope := budgetScope(100000)
	store := storeWithExpenses(50000)
	store.BudgetsWithDefaultAccountFn = func(ctx context.Context) ([]services.BudgetScope, error) {
		return []services.BudgetScope{scope}, nil
	}
	notifier := &mockNotifier{}
	d := newDispatcher(store, notifier)

	report, err := d.RunOnce(context.Background(), utcDate(2024, 3, 20))
	require.NoError(t, err)
	assert.Equal(t, 1, report.BudgetsChecked)
	assert.Equal(t, 0, report.AlertsSent)
	assert.Empty(t, notifier.sent())
}

// The alerted period is recorded before the notifier runs, so a failed send
// still counts as fired and is never retried within the period.
func TestRunOnce_NotifyFailureAfterRecord(t *testing.T) {
	scope := budgetScope(100000)
	recorded := false
	store := storeWithExpenses(90000)
	store.BudgetsWithDefaultAccountFn = func(ctx context.Context) ([]services.BudgetScope, error) {
		return []services.BudgetScope{scope}, nil
	}
	store.RecordAlertSentFn = func(ctx context.Context, budgetID string, period core.PeriodKey) (bool, error) {
		recorded = true
		return true, nil
	}
	sendErr := errors.New("broker unavailable")
	notifier := &mockNotifier{
		NotifyFn: func(ctx context.Context, alert services.BudgetAlert) error {
			assert.True(t, recorded, "period must be recorded before notification")
			return sendErr
		},
	}
	d := newDispatcher(store, notifier)

	report, err := d.RunOnce(context.Background(), utcDate(2024, 3, 20))
	require.NoError(t, err)
	assert.Equal(t, 1, report.AlertsSent)
	assert.ErrorIs(t, report.Err(), sendErr)
}

// When another process records the period between this pass's staleness
// check and its own record attempt, the losing pass must not notify.
func TestRunOnce_LostRecordRaceDoesNotNotify(t *testing.T) {
	scope := budgetScope(100000)
	store := storeWithExpenses(90000)
	store.BudgetsWithDefaultAccountFn = func(ctx context.Context) ([]services.BudgetScope, error) {
		return []services.BudgetScope{scope}, nil
	}
	// WasAlertSent still reports false, but the insert is beaten to it.
	store.RecordAlertSentFn = func(ctx context.Context, budgetID string, period core.PeriodKey) (bool, error) {
		return false, nil
	}
	notifier := &mockNotifier{}
	d := newDispatcher(store, notifier)

	report, err := d.RunOnce(context.Background(), utcDate(2024, 3, 20))
	require.NoError(t, err)
	assert.Equal(t, 0, report.AlertsSent)
	assert.Empty(t, notifier.sent())
	assert.NoError(t, report.Err())
}

// A second pass in the same period sees the recorded alert and stays quiet.
func TestRunOnce_AlertFiresOncePerPeriod(t *testing.T) {
	scope := budgetScope(100000)
	var mu sync.Mutex
	alerted := make(map[core.PeriodKey]bool)
	store := storeWithExpenses(90000)
	store.BudgetsWithDefaultAccountFn = func(ctx context.Context) ([]services.BudgetScope, error) {
		return []services.BudgetScope{scope}, nil
	}
	store.WasAlertSentFn = func(ctx context.Context, budgetID string, period core.PeriodKey) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		return alerted[period], nil
	}
	store.RecordAlertSentFn = func(ctx context.Context, budgetID string, period core.PeriodKey) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		if alerted[period] {
			return false, nil
		}
		alerted[period] = true
		return true, nil
	}
	notifier := &mockNotifier{}
	d := newDispatcher(store, notifier)

	now := utcDate(2024, 3, 20)
	report, err := d.RunOnce(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.AlertsSent)

	report, err = d.RunOnce(context.Background(), now.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, 0, report.AlertsSent)
	assert.Len(t, notifier.sent(), 1)

	// A new month is a fresh period.
	report, err = d.RunOnce(context.Background(), utcDate(2024, 4, 20))
	require.NoError(t, err)
	assert.Equal(t, 1, report.AlertsSent)
}
