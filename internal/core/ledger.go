package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ExpenseEntry is one expense row. Categories are not unique: two rows with
// the same category stay two rows in the ledger and in every breakdown.
type ExpenseEntry struct {
	Category string
	Amount   decimal.Decimal
}

// Valid reports whether the entry may be committed to a Ledger.
func (e ExpenseEntry) Valid() bool {
	return strings.TrimSpace(e.Category) != "" && e.Amount.IsPositive()
}

// FilterEntries returns the committable entries in their original order with
// categories trimmed. The input slice is not modified.
func FilterEntries(entries []ExpenseEntry) []ExpenseEntry {
	out := make([]ExpenseEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Valid() {
			continue
		}
		out = append(out, ExpenseEntry{Category: strings.TrimSpace(e.Category), Amount: e.Amount})
	}
	return out
}

// Ledger is the committed income and expense list of a session.
// Mutators return a new Ledger; the receiver is never changed.
type Ledger struct {
	Income   decimal.Decimal
	Expenses []ExpenseEntry
}

// NewLedger returns the empty ledger every session starts with.
func NewLedger() Ledger {
	return Ledger{Income: decimal.Zero, Expenses: []ExpenseEntry{}}
}

// WithIncome replaces income. Negative values are rejected.
func (l Ledger) WithIncome(v decimal.Decimal) (Ledger, error) {
	if v.IsNegative() {
		return l, Invalid("income", ErrNegativeAmount)
	}
	return Ledger{Income: v, Expenses: l.expensesCopy()}, nil
}

// WithExpenses replaces the expense list with the valid subset of entries.
func (l Ledger) WithExpenses(entries []ExpenseEntry) Ledger {
	return Ledger{Income: l.Income, Expenses: FilterEntries(entries)}
}

// TotalExpenses sums every committed entry.
func (l Ledger) TotalExpenses() decimal.Decimal {
	total := decimal.Zero
	for _, e := range l.Expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// Balance is income minus total expenses; it may be negative.
func (l Ledger) Balance() decimal.Decimal {
	return l.Income.Sub(l.TotalExpenses())
}

// HasIncome reports whether an income was recorded. Most pages need one.
func (l Ledger) HasIncome() bool {
	return l.Income.IsPositive()
}

func (l Ledger) expensesCopy() []ExpenseEntry {
	out := make([]ExpenseEntry, len(l.Expenses))
	copy(out, l.Expenses)
	return out
}

// Draft is the edit buffer behind the manual entry form. Rows may be blank or
// zero while the user is typing; only Commit filters them.
type Draft struct {
	Income decimal.Decimal
	Rows   []ExpenseEntry
}

// NewDraft returns a draft with a single blank row.
func NewDraft() Draft {
	return Draft{Income: decimal.Zero, Rows: []ExpenseEntry{{Amount: decimal.Zero}}}
}

// DraftFromLedger seeds a draft with the committed values so the form shows
// what is currently saved.
func DraftFromLedger(l Ledger) Draft {
	d := Draft{Income: l.Income, Rows: l.expensesCopy()}
	if len(d.Rows) == 0 {
		d.Rows = []ExpenseEntry{{Amount: decimal.Zero}}
	}
	return d
}

// AddRow appends a blank row.
func (d Draft) AddRow() Draft {
	rows := append(d.rowsCopy(), ExpenseEntry{Amount: decimal.Zero})
	return Draft{Income: d.Income, Rows: rows}
}

// RemoveRow drops the row at index.
func (d Draft) RemoveRow(index int) (Draft, error) {
	if index < 0 || index >= len(d.Rows) {
		return d, Invalid("row", ErrRowOutOfRange)
	}
	rows := make([]ExpenseEntry, 0, len(d.Rows)-1)
	rows = append(rows, d.Rows[:index]...)
	rows = append(rows, d.Rows[index+1:]...)
	return Draft{Income: d.Income, Rows: rows}, nil
}

// UpdateRow overwrites the row at index. Blank categories and zero amounts
// are allowed here, negative amounts are not.
func (d Draft) UpdateRow(index int, category string, amount decimal.Decimal) (Draft, error) {
	if index < 0 || index >= len(d.Rows) {
		return d, Invalid("row", ErrRowOutOfRange)
	}
	if amount.IsNegative() {
		return d, Invalid("amount", ErrNegativeAmount)
	}
	rows := d.rowsCopy()
	rows[index] = ExpenseEntry{Category: category, Amount: amount}
	return Draft{Income: d.Income, Rows: rows}, nil
}

// WithIncome sets the draft income.
func (d Draft) WithIncome(v decimal.Decimal) (Draft, error) {
	if v.IsNegative() {
		return d, Invalid("income", ErrNegativeAmount)
	}
	return Draft{Income: v, Rows: d.rowsCopy()}, nil
}

// WithRows replaces all rows at once, as a form submission does.
func (d Draft) WithRows(rows []ExpenseEntry) (Draft, error) {
	for _, r := range rows {
		if r.Amount.IsNegative() {
			return d, Invalid("amount", ErrNegativeAmount)
		}
	}
	out := make([]ExpenseEntry, len(rows))
	copy(out, rows)
	return Draft{Income: d.Income, Rows: out}, nil
}

// Commit returns the ledger that results from saving the draft. Either the
// income and the filtered rows are both applied or nothing is: a draft
// without a single valid row is rejected and l is returned unchanged.
func (d Draft) Commit(l Ledger) (Ledger, error) {
	valid := FilterEntries(d.Rows)
	if len(valid) == 0 {
		return l, Invalid("expenses", ErrNoValidExpenses)
	}
	next, err := l.WithIncome(d.Income)
	if err != nil {
		return l, err
	}
	next.Expenses = valid
	return next, nil
}

// ValidRows counts the rows Commit would keep.
func (d Draft) ValidRows() int {
	return len(FilterEntries(d.Rows))
}

func (d Draft) rowsCopy() []ExpenseEntry {
	out := make([]ExpenseEntry, len(d.Rows))
	copy(out, d.Rows)
	return out
}
