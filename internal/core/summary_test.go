package core

import "testing"

func TestComputeMonthlyStats(t *testing.T) {
	txns := sampleTxns()
	stats := ComputeMonthlyStats(txns, date(2024, 3, 20), Scope{UserID: "u1", AccountID: "a1"})

	if stats.Year != 2024 || stats.Month != 3 {
		t.Errorf("period = %d-%d, want 2024-3", stats.Year, stats.Month)
	}
	if stats.TotalIncome.Cents != 300000 {
		t.Errorf("TotalIncome = %d cents, want 300000", stats.TotalIncome.Cents)
	}
	if stats.TotalExpenses.Cents != 44000 {
		t.Errorf("TotalExpenses = %d cents, want 44000", stats.TotalExpenses.Cents)
	}
	if stats.TransactionCount != 4 {
		t.Errorf("TransactionCount = %d, want 4", stats.TransactionCount)
	}

	byCat := make(map[Category]int64, len(stats.ByCategory))
	for _, ca := range stats.ByCategory {
		byCat[ca.Category] = ca.Amount.Cents
	}
	if byCat[CategoryFood] != 4000 {
		t.Errorf("ByCategory[food] = %d cents, want 4000", byCat[CategoryFood])
	}
	if byCat[CategoryHousing] != 40000 {
		t.Errorf("ByCategory[housing] = %d cents, want 40000", byCat[CategoryHousing])
	}
	if _, ok := byCat[CategorySalary]; ok {
		t.Error("ByCategory should only contain expense categories")
	}
}

func TestComputeMonthlyStats_Empty(t *testing.T) {
	stats := ComputeMonthlyStats(nil, date(2024, 3, 1), Scope{UserID: "u1"})
	if stats.TotalIncome.Cents != 0 || stats.TotalExpenses.Cents != 0 {
		t.Errorf("totals = %d/%d cents, want 0/0", stats.TotalIncome.Cents, stats.TotalExpenses.Cents)
	}
	if stats.TransactionCount != 0 {
		t.Errorf("TransactionCount = %d, want 0", stats.TransactionCount)
	}
	if len(stats.ByCategory) != 0 {
		t.Errorf("ByCategory has %d entries, want 0", len(stats.ByCategory))
	}
}
