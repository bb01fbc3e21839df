package core

import "time"

// CategoryAmount is an expense amount aggregated under one category.
type CategoryAmount struct {
	Category Category
	Amount   Money
}

// MonthlyStats is a compact per-user summary for a specific year+month.
type MonthlyStats struct {
	Year             int
	Month            int // 1-12
	TotalIncome      Money
	TotalExpenses    Money
	ByCategory       []CategoryAmount
	TransactionCount int
}

// ComputeMonthlyStats folds a user's transactions for the month containing
// ref into income/expense totals and a per-category expense breakdown.
func ComputeMonthlyStats(txns []Transaction, ref time.Time, scope Scope) MonthlyStats {
	start, end := PeriodBounds(ref)
	stats := MonthlyStats{
		Year:  start.Year(),
		Month: int(start.Month()),
	}

	stats.TotalIncome = SumByType(txns, Income, start, end, scope)
	stats.TotalExpenses = SumByType(txns, Expense, start, end, scope)

	for _, t := range txns {
		if scope.matches(t) && inPeriod(t, start, end) {
			stats.TransactionCount++
		}
	}

	byCat := GroupByCategory(txns, Expense, start, end, scope)
	for cat, amount := range byCat {
		stats.ByCategory = append(stats.ByCategory, CategoryAmount{Category: cat, Amount: amount})
	}
	return stats
}
