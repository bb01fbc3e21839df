package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
)

// Report is the outcome of one dispatcher pass. Per-entity failures are
// collected here instead of aborting the pass.
type Report struct {
	DueFound       int
	Settled        int
	BudgetsChecked int
	AlertsSent     int
	Errors         []error
}

// Err flattens the collected per-entity errors, nil when the pass was clean.
func (r Report) Err() error {
	return errors.Join(r.Errors...)
}

// Dispatcher runs one stateless batch pass per trigger: advance every due
// recurring transaction, then evaluate every budget and hand threshold
// crossings to the notifier. It keeps no state between passes; all state
// lives in the store, so a cancelled pass resumes safely on the next one.
type Dispatcher struct {
	store      LedgerStore
	settlement *SettlementService
	alerts     *AlertService
	notifier   AlertNotifier

	maxConcurrent int
	entityTimeout time.Duration
}

func NewDispatcher(store LedgerStore, settlement *SettlementService, alerts *AlertService, notifier AlertNotifier, maxConcurrent int, entityTimeout time.Duration) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if entityTimeout <= 0 {
		entityTimeout = 15 * time.Second
	}
	return &Dispatcher{
		store:         store,
		settlement:    settlement,
		alerts:        alerts,
		notifier:      notifier,
		maxConcurrent: maxConcurrent,
		entityTimeout: entityTimeout,
	}
}

// RunOnce processes all due recurring transactions and all budgets as of
// now. Settlement for all accounts completes before any budget is
// evaluated, so alert evaluation observes the occurrences settled in the
// same pass. The returned error is non-nil only when the pass could not
// run at all (store unavailable); per-entity failures land in the Report.
func (d *Dispatcher) RunOnce(ctx context.Context, now time.Time) (Report, error) {
	var report Report
	var mu sync.Mutex

	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		report.Errors = append(report.Errors, err)
	}

	due, err := d.store.DueRecurringTransactions(ctx, now)
	if err != nil {
		return report, fmt.Errorf("list due recurring transactions: %w", err)
	}
	report.DueFound = len(due)

	// Advancing a recurring transaction mutates its account balance, so
	// templates are partitioned per account: accounts run concurrently,
	// templates on the same account strictly in sequence.
	byAccount := make(map[string][]core.Transaction)
	for _, t := range due {
		byAccount[t.AccountID] = append(byAccount[t.AccountID], t)
	}
	accountIDs := make([]string, 0, len(byAccount))
	for id := range byAccount {
		accountIDs = append(accountIDs, id)
	}
	sort.Strings(accountIDs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.maxConcurrent)
	for _, accountID := range accountIDs {
		templates := byAccount[accountID]
		g.Go(func() error {
			for _, template := range templates {
				if gctx.Err() != nil {
					return nil
				}
				opCtx, cancel := context.WithTimeout(gctx, d.entityTimeout)
				settled, err := d.settlement.AdvanceDue(opCtx, template, now)
				cancel()
				if err != nil {
					slog.ErrorContext(gctx, "Failed to advance recurring transaction",
						"template_id", template.ID,
						"account_id", template.AccountID,
						"error", err)
					record(fmt.Errorf("advance %s: %w", template.ID, err))
					continue
				}
				if settled {
					mu.Lock()
					report.Settled++
					mu.Unlock()
				}
			}
			return nil
		})
	}
	// Goroutines never return errors; Wait only reports ctx cancellation.
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	scopes, err := d.store.BudgetsWithDefaultAccount(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("list budgets: %w", err))
		return report, nil
	}
	report.BudgetsChecked = len(scopes)

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(d.maxConcurrent)
	for _, scope := range scopes {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			opCtx, cancel := context.WithTimeout(gctx, d.entityTimeout)
			defer cancel()
			fired, err := d.evaluateAndNotify(opCtx, scope, now)
			if fired {
				mu.Lock()
				report.AlertsSent++
				mu.Unlock()
			}
			if err != nil {
				record(fmt.Errorf("budget %s: %w", scope.Budget.ID, err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	slog.InfoContext(ctx, "Dispatcher pass complete",
		"due_found", report.DueFound,
		"settled", report.Settled,
		"budgets_checked", report.BudgetsChecked,
		"alerts_sent", report.AlertsSent,
		"errors", len(report.Errors))
	return report, nil
}

// evaluateAndNotify runs one budget through the evaluator. When the
// threshold is crossed the period is recorded as alerted before the
// notifier is invoked: the record guarantees at most one delivery attempt
// per period even if the send itself fails.
func (d *Dispatcher) evaluateAndNotify(ctx context.Context, scope BudgetScope, now time.Time) (bool, error) {
	decision, err := d.alerts.Evaluate(ctx, scope, now)
	if err != nil {
		return false, err
	}
	if !decision.ShouldAlert {
		return false, nil
	}

	recorded, err := d.store.RecordAlertSent(ctx, scope.Budget.ID, decision.Period)
	if err != nil {
		return false, fmt.Errorf("record alert sent: %w", err)
	}
	if !recorded {
		// A concurrent pass recorded this period first; it owns the
		// notification.
		slog.InfoContext(ctx, "Budget alert already recorded by another pass",
			"budget_id", scope.Budget.ID,
			"period", string(decision.Period))
		return false, nil
	}

	alert := BudgetAlert{
		BudgetID:      scope.Budget.ID,
		UserID:        scope.User.ID,
		Email:         scope.User.Email,
		UserName:      scope.User.Name,
		AccountName:   scope.Account.Name,
		PercentUsed:   decision.PercentUsed,
		BudgetAmount:  decision.BudgetAmount,
		TotalExpenses: decision.TotalExpenses,
		Period:        decision.Period,
	}
	if err := d.notifier.NotifyBudgetAlert(ctx, alert); err != nil {
		// The period is already recorded; a lost notification is surfaced
		// in the pass report, not retried inline.
		slog.ErrorContext(ctx, "Failed to dispatch budget alert notification",
			"budget_id", scope.Budget.ID,
			"user_id", scope.User.ID,
			"error", err)
		return true, fmt.Errorf("notify budget alert: %w", err)
	}
	return true, nil
}
