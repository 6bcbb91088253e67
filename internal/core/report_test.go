package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(date Date, typ TxType, category, amount string) Transaction {
	return Transaction{Date: date, Item: "x", Category: category, Type: typ, Amount: decimal.RequireFromString(amount)}
}

func TestBuildReportMonthWindow(t *testing.T) {
	txs := []Transaction{
		tx(NewDate(2025, 3, 1), Income, "Salary", "100"),
		tx(NewDate(2025, 3, 5), Expense, "Food", "30"),
		tx(NewDate(2025, 2, 10), Expense, "Food", "50"),
	}

	r := BuildReport(txs, Window{Year: 2025, Month: 3})

	assert.Equal(t, 2, r.Count)
	assert.True(t, r.Income.Equal(decimal.NewFromInt(100)))
	assert.True(t, r.Expense.Equal(decimal.NewFromInt(30)))
	assert.True(t, r.Balance.Equal(decimal.NewFromInt(70)))

	require.Len(t, r.ByCategory, 1)
	assert.Equal(t, "Food", r.ByCategory[0].Name)
	assert.True(t, r.ByCategory[0].Amount.Equal(decimal.NewFromInt(30)))

	require.Len(t, r.Buckets, 31)
	assert.Equal(t, 5, r.Buckets[4].Label)
	assert.True(t, r.Buckets[4].Total.Equal(decimal.NewFromInt(30)))
	assert.True(t, r.Buckets[0].Total.IsZero(), "income is not part of the expense breakdown")
}

func TestBuildReportYearWindow(t *testing.T) {
	txs := []Transaction{
		tx(NewDate(2024, 2, 10), Expense, "Food", "50"),
		tx(NewDate(2024, 2, 11), Expense, "Transport", "20"),
		tx(NewDate(2024, 11, 1), Expense, "Transport", "60"),
		tx(NewDate(2023, 11, 1), Expense, "Transport", "999"),
	}

	r := BuildReport(txs, Window{Year: 2024})

	require.Len(t, r.Buckets, 12)
	feb := r.Buckets[1]
	assert.True(t, feb.Total.Equal(decimal.NewFromInt(70)))
	require.Len(t, feb.ByCategory, 2)
	// Transport is the larger category overall so it stacks first.
	assert.Equal(t, "Transport", feb.ByCategory[0].Name)
	assert.Equal(t, "Transport", r.ByCategory[0].Name)
	assert.True(t, r.MaxBucket().Equal(decimal.NewFromInt(70)))
	assert.True(t, r.Balance.Equal(decimal.NewFromInt(-130)))
}

func TestWindowAxis(t *testing.T) {
	assert.Len(t, Window{Year: 2024, Month: 2}.Axis(), 29)
	assert.Len(t, Window{Year: 2025, Month: 2}.Axis(), 28)
	assert.Len(t, Window{Year: 2025, Month: 4}.Axis(), 30)
	assert.Len(t, Window{Year: 2025}.Axis(), 12)

	assert.Error(t, Window{Year: 2025, Month: 13}.Validate())
	assert.NoError(t, Window{Year: 2025}.Validate())
}

func TestAvailableYears(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, []int{2026}, AvailableYears(nil, now))

	txs := []Transaction{
		tx(NewDate(2023, 1, 1), Expense, "a", "1"),
		tx(NewDate(2025, 1, 1), Expense, "a", "1"),
		tx(NewDate(2023, 5, 1), Income, "a", "1"),
	}
	assert.Equal(t, []int{2025, 2023}, AvailableYears(txs, now))
}
