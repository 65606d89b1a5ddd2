package core

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func TestRiskBucketFor(t *testing.T) {
	tests := []struct {
		rate float64
		want RiskBucket
	}{
		{-50, Aggressive},
		{0, Aggressive},
		{9.999, Aggressive},
		{10, Balanced},
		{24.99, Balanced},
		{25, Conservative},
		{100, Conservative},
	}
	for _, tt := range tests {
		if got := RiskBucketFor(tt.rate); got != tt.want {
			t.Errorf("RiskBucketFor(%v) = %s, want %s", tt.rate, got, tt.want)
		}
	}
}

func TestSavingsRateZeroIncome(t *testing.T) {
	l := NewLedger().WithExpenses([]ExpenseEntry{entry("Rent", "500")})
	m := ComputeMetrics(l)
	if m.SavingsRatePct != 0 || m.SavingsPercent != 0 {
		t.Fatalf("expected zero savings with zero income, got %v / %d", m.SavingsRatePct, m.SavingsPercent)
	}
	if !m.Balance.Equal(decimal.NewFromInt(-500)) {
		t.Fatalf("expected balance -500, got %s", m.Balance)
	}
	if m.TargetProgressPct != 100 {
		t.Fatalf("expected progress 100 when target is zero, got %d", m.TargetProgressPct)
	}
}

func TestSavingsPercent(t *testing.T) {
	tests := []struct {
		income, balance string
		want            int
	}{
		{"100", "25", 25},
		{"3", "1", 33},
		{"100", "19.99", 19},
		{"0", "10", 0},
	}
	for _, tt := range tests {
		if got := SavingsPercent(MustAmount(tt.income), MustAmount(tt.balance)); got != tt.want {
			t.Errorf("SavingsPercent(%s, %s) = %d, want %d", tt.income, tt.balance, got, tt.want)
		}
	}
	if got := SavingsPercent(decimal.NewFromInt(100), decimal.NewFromInt(-30)); got != -30 {
		t.Errorf("expected -30 for overspending, got %d", got)
	}
}

func TestBudgetStatusFor(t *testing.T) {
	st := BudgetStatusFor(MustAmount("1000"), MustAmount("800"))
	if st.State != OnTrack || !st.Remaining.IsZero() {
		t.Fatalf("expected on track with zero remaining, got %+v", st)
	}
	if st.SpentPct != 100 {
		t.Fatalf("expected 100%% spent, got %v", st.SpentPct)
	}

	st = BudgetStatusFor(MustAmount("1000"), MustAmount("800.01"))
	if st.State != OverBudget {
		t.Fatalf("expected over budget, got %s", st.State)
	}

	st = BudgetStatusFor(decimal.Zero, decimal.Zero)
	if st.State != OnTrack || st.SpentPct != 0 {
		t.Fatalf("expected on track for empty ledger, got %+v", st)
	}
}

func TestBreakdownStableDescending(t *testing.T) {
	got := Breakdown([]ExpenseEntry{entry("Misc", "1000"), entry("Rent", "15000"), entry("Food", "5000"), entry("Fun", "5000")})
	order := make([]string, len(got))
	for i, s := range got {
		order[i] = s.Category
	}
	want := []string{"Rent", "Food", "Fun", "Misc"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("expected %v, got %v", want, order)
	}

	got = Breakdown([]ExpenseEntry{entry("Rent", "15000"), entry("Food", "5000"), entry("Misc", "5000")})
	if got[0].Category != "Rent" || got[1].Category != "Food" || got[2].Category != "Misc" {
		t.Fatalf("ties must keep insertion order, got %+v", got)
	}
	if got[0].SharePct != 60 {
		t.Fatalf("expected Rent share 60, got %v", got[0].SharePct)
	}
}

func TestBreakdownKeepsDuplicateCategories(t *testing.T) {
	got := Breakdown([]ExpenseEntry{entry("Food", "100"), entry("Food", "200")})
	if len(got) != 2 {
		t.Fatalf("duplicate categories must stay separate rows, got %d", len(got))
	}
	if !got[0].Amount.Equal(MustAmount("200")) {
		t.Fatalf("expected larger Food row first, got %s", got[0].Amount)
	}
}

func TestComputeMetrics(t *testing.T) {
	l, err := NewLedger().WithExpenses([]ExpenseEntry{
		entry("Rent", "15000"), entry("Food", "5000"), entry("Misc", "5000"),
	}).WithIncome(MustAmount("50000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := ComputeMetrics(l)

	if !m.TotalExpenses.Equal(MustAmount("25000")) || !m.Balance.Equal(MustAmount("25000")) {
		t.Fatalf("unexpected totals: %s / %s", m.TotalExpenses, m.Balance)
	}
	if m.SavingsRatePct != 50 || m.SavingsPercent != 50 || !m.MeetsSavingsGoal {
		t.Fatalf("unexpected savings: %v %d %v", m.SavingsRatePct, m.SavingsPercent, m.MeetsSavingsGoal)
	}
	if m.RiskBucket != Conservative {
		t.Fatalf("expected Conservative, got %s", m.RiskBucket)
	}
	if !m.TargetIncome.Equal(MustAmount("60000")) || m.TargetProgressPct != 83 {
		t.Fatalf("unexpected target: %s %d", m.TargetIncome, m.TargetProgressPct)
	}
	if !m.Budget.Goal.Equal(MustAmount("40000")) || m.Budget.State != OnTrack {
		t.Fatalf("unexpected budget: %+v", m.Budget)
	}
}

func TestComputeMetricsIsIdempotent(t *testing.T) {
	l, _ := NewLedger().WithExpenses([]ExpenseEntry{entry("Rent", "700"), entry("Food", "250.5")}).WithIncome(MustAmount("1000"))
	a := ComputeMetrics(l)
	b := ComputeMetrics(l)
	if a.SavingsRatePct != b.SavingsRatePct || a.RiskBucket != b.RiskBucket || !a.Balance.Equal(b.Balance) {
		t.Fatalf("metrics differ between calls: %+v vs %+v", a, b)
	}
	if len(a.Breakdown) != len(b.Breakdown) {
		t.Fatalf("breakdown length differs")
	}
	for i := range a.Breakdown {
		if a.Breakdown[i].Category != b.Breakdown[i].Category || !a.Breakdown[i].Amount.Equal(b.Breakdown[i].Amount) {
			t.Fatalf("breakdown row %d differs", i)
		}
	}
	if a.RiskBucket != Aggressive {
		t.Fatalf("expected Aggressive for 4.95%% savings, got %s", a.RiskBucket)
	}
}
