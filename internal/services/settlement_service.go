package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

// RecurrenceState describes where a recurring template stands relative to
// the clock.
type RecurrenceState string

const (
	// StatePending means the next occurrence date is still in the future.
	StatePending RecurrenceState = "PENDING"
	// StateDue means the next occurrence date is at or before now.
	StateDue RecurrenceState = "DUE"
	// StateSettled means the due occurrence has been materialized and the
	// template advanced past it.
	StateSettled RecurrenceState = "SETTLED"
)

// SettlementService advances due recurring transactions: for each due
// template it materializes a concrete ledger entry dated at the due
// occurrence and moves the template's next occurrence date forward.
type SettlementService struct {
	store LedgerStore
}

func NewSettlementService(store LedgerStore) *SettlementService {
	return &SettlementService{store: store}
}

// StateOf classifies a recurring template against now. Non-recurring
// transactions are never due.
func StateOf(t core.Transaction, now time.Time) RecurrenceState {
	if !t.IsRecurring || t.NextRecurringDate.IsZero() {
		return StateSettled
	}
	if t.NextRecurringDate.After(now) {
		return StatePending
	}
	return StateDue
}

// AdvanceDue settles one due occurrence of the template. It returns true
// when a new ledger entry was created, false when the template was not due
// or another pass settled it first.
//
// Dueness is derived from the persisted next occurrence date, and the store
// only advances that date in the same transaction that records the new
// entry. Calling AdvanceDue twice with the same clock therefore settles
// exactly once: the second call sees the advanced date and does nothing.
func (s *SettlementService) AdvanceDue(ctx context.Context, template core.Transaction, now time.Time) (bool, error) {
	if !template.IsRecurring {
		return false, fmt.Errorf("transaction %s: %w", template.ID, core.ErrInvalidInterval)
	}
	if StateOf(template, now) != StateDue {
		return false, nil
	}

	dueDate := template.NextRecurringDate
	nextDate, err := core.Advance(dueDate, template.RecurringInterval)
	if err != nil {
		return false, fmt.Errorf("advance next date for %s: %w", template.ID, err)
	}

	occurrence := core.Transaction{
		ID:          uuid.NewString(),
		UserID:      template.UserID,
		AccountID:   template.AccountID,
		Type:        template.Type,
		Amount:      template.Amount,
		Category:    template.Category,
		Description: template.Description + " (Recurring)",
		Date:        dueDate,
	}
	if err := occurrence.Validate(); err != nil {
		return false, fmt.Errorf("occurrence for %s: %w", template.ID, err)
	}

	settled, err := s.store.SettleRecurring(ctx, template, occurrence, nextDate)
	if err != nil {
		return false, fmt.Errorf("settle recurring %s: %w", template.ID, err)
	}
	if !settled {
		slog.InfoContext(ctx, "Recurring transaction already settled by another pass",
			"template_id", template.ID,
			"due_date", dueDate.Format("2006-01-02"))
		return false, nil
	}

	slog.InfoContext(ctx, "Settled recurring transaction",
		"template_id", template.ID,
		"occurrence_id", occurrence.ID,
		"type", occurrence.Type,
		"amount_cents", occurrence.Amount.Cents,
		"occurrence_date", dueDate.Format("2006-01-02"),
		"next_date", nextDate.Format("2006-01-02"))
	return true, nil
}
