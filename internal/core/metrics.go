package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

const (
	// RecommendedSavingsPct is the savings goal marked on the dashboard bar.
	RecommendedSavingsPct = 20

	aggressiveBelowPct  = 10
	conservativeFromPct = 25
	budgetGoalRatio     = "0.8"
	targetIncomeRatio   = "1.2"
)

var hundred = decimal.NewFromInt(100)

// RiskBucket is a coarse display label derived from the savings rate.
// A low savings rate maps to Aggressive; that mapping is intentional.
type RiskBucket string

const (
	Conservative RiskBucket = "Conservative"
	Balanced     RiskBucket = "Balanced"
	Aggressive   RiskBucket = "Aggressive"
)

// Description is the one-line blurb shown under the bucket label.
func (b RiskBucket) Description() string {
	switch b {
	case Aggressive:
		return "High risk tolerance, seeking high growth."
	case Balanced:
		return "Moderate risk with steady returns."
	default:
		return "Low risk tolerance, prioritizing capital preservation."
	}
}

// GaugePosition is the marker position on the Conservative..Aggressive scale,
// as a CSS percentage.
func (b RiskBucket) GaugePosition() int {
	switch b {
	case Aggressive:
		return 85
	case Balanced:
		return 50
	default:
		return 15
	}
}

// RiskBucketFor maps a savings rate to a bucket:
// [-inf,10) Aggressive, [10,25) Balanced, [25,+inf) Conservative.
func RiskBucketFor(savingsRatePct float64) RiskBucket {
	switch {
	case savingsRatePct < aggressiveBelowPct:
		return Aggressive
	case savingsRatePct < conservativeFromPct:
		return Balanced
	default:
		return Conservative
	}
}

// BudgetState says whether spending stays within the budget goal.
type BudgetState string

const (
	OnTrack    BudgetState = "On Track"
	OverBudget BudgetState = "Over Budget"
)

// BudgetStatus compares spending with a goal of 80% of income.
type BudgetStatus struct {
	Goal      decimal.Decimal
	Spent     decimal.Decimal
	Remaining decimal.Decimal
	State     BudgetState
	// SpentPct is spent/goal*100, 0 when the goal is 0. Not capped.
	SpentPct float64
}

// BudgetStatusFor computes the budget card values.
func BudgetStatusFor(income, totalExpenses decimal.Decimal) BudgetStatus {
	goal := income.Mul(decimal.RequireFromString(budgetGoalRatio))
	remaining := goal.Sub(totalExpenses)
	st := BudgetStatus{Goal: goal, Spent: totalExpenses, Remaining: remaining, State: OnTrack}
	if remaining.IsNegative() {
		st.State = OverBudget
	}
	if goal.IsPositive() {
		st.SpentPct = totalExpenses.Div(goal).Mul(hundred).InexactFloat64()
	}
	return st
}

// SavingsRatePct is balance/income*100, or 0 when income is 0.
func SavingsRatePct(income, balance decimal.Decimal) float64 {
	if !income.IsPositive() {
		return 0
	}
	return balance.Div(income).Mul(hundred).InexactFloat64()
}

// SavingsPercent is the whole-number rate shown on the dashboard, truncated
// toward zero. It is 0 when income is 0 and unclamped otherwise.
func SavingsPercent(income, balance decimal.Decimal) int {
	if !income.IsPositive() {
		return 0
	}
	return int(balance.Div(income).Mul(hundred).Truncate(0).IntPart())
}

// CategoryShare is one row of the expense breakdown.
type CategoryShare struct {
	Category string
	Amount   decimal.Decimal
	SharePct float64
}

// Breakdown orders entries by amount, largest first. Equal amounts keep
// their ledger order. Entries are not grouped by category.
func Breakdown(entries []ExpenseEntry) []CategoryShare {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	out := make([]CategoryShare, len(entries))
	for i, e := range entries {
		out[i] = CategoryShare{Category: e.Category, Amount: e.Amount}
		if total.IsPositive() {
			out[i].SharePct = e.Amount.Div(total).Mul(hundred).InexactFloat64()
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Amount.GreaterThan(out[j].Amount)
	})
	return out
}

// DerivedMetrics is everything the dashboard and insights pages display.
// It is recomputed from the Ledger on every render and never stored.
type DerivedMetrics struct {
	Income            decimal.Decimal
	TotalExpenses     decimal.Decimal
	Balance           decimal.Decimal
	SavingsRatePct    float64
	SavingsPercent    int
	MeetsSavingsGoal  bool
	RiskBucket        RiskBucket
	Budget            BudgetStatus
	TargetIncome      decimal.Decimal
	TargetProgressPct int
	Breakdown         []CategoryShare
}

// ComputeMetrics derives the display values from a ledger. It is pure.
func ComputeMetrics(l Ledger) DerivedMetrics {
	total := l.TotalExpenses()
	balance := l.Income.Sub(total)
	rate := SavingsRatePct(l.Income, balance)
	pct := SavingsPercent(l.Income, balance)
	target := l.Income.Mul(decimal.RequireFromString(targetIncomeRatio))

	progress := 100
	if target.IsPositive() {
		progress = int(l.Income.Div(target).Mul(hundred).Truncate(0).IntPart())
	}

	return DerivedMetrics{
		Income:            l.Income,
		TotalExpenses:     total,
		Balance:           balance,
		SavingsRatePct:    rate,
		SavingsPercent:    pct,
		MeetsSavingsGoal:  pct >= RecommendedSavingsPct,
		RiskBucket:        RiskBucketFor(rate),
		Budget:            BudgetStatusFor(l.Income, total),
		TargetIncome:      target,
		TargetProgressPct: progress,
		Breakdown:         Breakdown(l.Expenses),
	}
}
