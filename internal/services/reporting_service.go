package services

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// ReportingService answers read-only summary queries used by dashboards.
type ReportingService struct {
	store LedgerStore
}

func NewReportingService(store LedgerStore) *ReportingService {
	return &ReportingService{store: store}
}

// MonthlyStats summarizes a user's activity for the month containing ref:
// income and expense totals plus a per-category expense breakdown.
func (s *ReportingService) MonthlyStats(ctx context.Context, userID string, ref time.Time) (core.MonthlyStats, error) {
	start, end := core.PeriodBounds(ref)
	scope := core.Scope{UserID: userID}
	txns, err := s.store.TransactionsInPeriod(ctx, scope, start, end)
	if err != nil {
		return core.MonthlyStats{}, fmt.Errorf("transactions for user %s: %w", userID, err)
	}
	return core.ComputeMonthlyStats(txns, ref, scope), nil
}
