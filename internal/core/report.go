package core

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidWindow = errors.New("invalid report window")

// Window selects the records a report covers. Month 0 means the whole year.
type Window struct {
	Year  int
	Month int
}

func (w Window) Validate() error {
	if w.Year < 1 || w.Year > 9999 || w.Month < 0 || w.Month > 12 {
		return ErrInvalidWindow
	}
	return nil
}

func (w Window) WholeYear() bool { return w.Month == 0 }

func (w Window) Contains(d Date) bool {
	if d.Year() != w.Year {
		return false
	}
	return w.Month == 0 || d.Month() == w.Month
}

// Axis returns the bucket labels: days of the month or months of the year.
func (w Window) Axis() []int {
	n := 12
	if !w.WholeYear() {
		// Day zero of the next month is the last day of this one.
		n = time.Date(w.Year, time.Month(w.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	}
	axis := make([]int, n)
	for i := range axis {
		axis[i] = i + 1
	}
	return axis
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// Bucket is one bar of the time breakdown; Label is a day or a month number.
type Bucket struct {
	Label      int
	Total      decimal.Decimal
	ByCategory []CategoryAmount
}

// Report summarises a window of the ledger.
type Report struct {
	Window     Window
	Count      int
	Income     decimal.Decimal
	Expense    decimal.Decimal
	Balance    decimal.Decimal
	ByCategory []CategoryAmount // Expenses only, largest first
	Buckets    []Bucket         // Expenses only, one per axis label
}

// BuildReport aggregates txs over w. It is a pure function of its inputs.
func BuildReport(txs []Transaction, w Window) Report {
	r := Report{
		Window:  w,
		Income:  decimal.Zero,
		Expense: decimal.Zero,
	}

	byCat := map[string]decimal.Decimal{}
	byBucket := map[int]map[string]decimal.Decimal{}
	for _, tx := range txs {
		if !w.Contains(tx.Date) {
			continue
		}
		r.Count++
		if tx.Type == Income {
			r.Income = r.Income.Add(tx.Amount)
			continue
		}
		r.Expense = r.Expense.Add(tx.Amount)
		byCat[tx.Category] = byCat[tx.Category].Add(tx.Amount)

		label := tx.Date.Month()
		if !w.WholeYear() {
			label = tx.Date.Day()
		}
		if byBucket[label] == nil {
			byBucket[label] = map[string]decimal.Decimal{}
		}
		byBucket[label][tx.Category] = byBucket[label][tx.Category].Add(tx.Amount)
	}
	r.Balance = r.Income.Sub(r.Expense)

	r.ByCategory = sortedAmounts(byCat)
	order := make(map[string]int, len(r.ByCategory))
	for i, ca := range r.ByCategory {
		order[ca.Name] = i
	}

	for _, label := range w.Axis() {
		b := Bucket{Label: label, Total: decimal.Zero}
		for name, amt := range byBucket[label] {
			b.Total = b.Total.Add(amt)
			b.ByCategory = append(b.ByCategory, CategoryAmount{Name: name, Amount: amt})
		}
		// Stack segments in the same order as the category breakdown.
		sort.Slice(b.ByCategory, func(i, j int) bool {
			return order[b.ByCategory[i].Name] < order[b.ByCategory[j].Name]
		})
		r.Buckets = append(r.Buckets, b)
	}
	return r
}

// MaxBucket returns the largest bucket total, zero when there are no expenses.
func (r Report) MaxBucket() decimal.Decimal {
	maxTotal := decimal.Zero
	for _, b := range r.Buckets {
		if b.Total.GreaterThan(maxTotal) {
			maxTotal = b.Total
		}
	}
	return maxTotal
}

// AvailableYears lists the distinct years present in txs, newest first. When
// there are no records the current year is offered alone.
func AvailableYears(txs []Transaction, now time.Time) []int {
	seen := map[int]bool{}
	var years []int
	for _, tx := range txs {
		y := tx.Date.Year()
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	if len(years) == 0 {
		return []int{now.Year()}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

func sortedAmounts(m map[string]decimal.Decimal) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(m))
	for name, amt := range m {
		out = append(out, CategoryAmount{Name: name, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}
