package core

import "time"

// Scope filters aggregation to one user and, when AccountID is non-empty,
// one of that user's accounts.
type Scope struct {
	UserID    string
	AccountID string
}

func (s Scope) matches(t Transaction) bool {
	if s.UserID != "" && t.UserID != s.UserID {
		return false
	}
	if s.AccountID != "" && t.AccountID != s.AccountID {
		return false
	}
	return true
}

func inPeriod(t Transaction, start, end time.Time) bool {
	return !t.Date.Before(start) && !t.Date.After(end)
}

// SumByType sums the magnitudes of all transactions of the given type whose
// date lies in [start, end] and which match the scope. Minor-unit integer
// arithmetic throughout; an empty input yields zero.
func SumByType(txns []Transaction, kind TransactionType, start, end time.Time, scope Scope) Money {
	var cents int64
	for _, t := range txns {
		if t.Type != kind || !scope.matches(t) || !inPeriod(t, start, end) {
			continue
		}
		cents += t.Amount.Cents
	}
	return Money{Cents: cents}
}

// GroupByCategory sums transaction magnitudes per category under the same
// type/period/scope filter as SumByType. Map iteration order is unspecified.
func GroupByCategory(txns []Transaction, kind TransactionType, start, end time.Time, scope Scope) map[Category]Money {
	out := make(map[Category]Money)
	for _, t := range txns {
		if t.Type != kind || !scope.matches(t) || !inPeriod(t, start, end) {
			continue
		}
		out[t.Category] = Money{Cents: out[t.Category].Cents + t.Amount.Cents}
	}
	return out
}
