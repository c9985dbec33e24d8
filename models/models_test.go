package models

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountType_Valid(t *testing.T) {
	for _, typ := range AccountTypes() {
		assert.True(t, typ.Valid(), typ)
	}
	assert.False(t, AccountType("crypto").Valid())
	assert.False(t, AccountType("").Valid())
}

func TestTransaction_SignedAmount(t *testing.T) {
	income := Transaction{Amount: decimal.NewFromInt(100), Type: TransactionIncome}
	expense := Transaction{Amount: decimal.RequireFromString("50.25"), Type: TransactionExpense}

	assert.True(t, income.SignedAmount().Equal(decimal.NewFromInt(100)))
	assert.True(t, expense.SignedAmount().Equal(decimal.RequireFromString("-50.25")))
	assert.False(t, TransactionType("transfer").Valid())
}

func TestBudget_Contains(t *testing.T) {
	b := Budget{
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local),
		EndDate:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.Local),
	}

	assert.True(t, b.Contains(time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)))
	assert.True(t, b.Contains(time.Date(2024, 1, 31, 23, 0, 0, 0, time.Local)))
	assert.True(t, b.Contains(time.Date(2024, 1, 31, 23, 59, 59, 999_000_000, time.Local)))
	assert.False(t, b.Contains(time.Date(2023, 12, 31, 23, 59, 59, 0, time.Local)))
	assert.False(t, b.Contains(time.Date(2024, 2, 1, 0, 0, 0, 0, time.Local)))
}

func TestNextDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 夏令时切换当天只有 23 小时
	d := time.Date(2024, 3, 10, 15, 30, 0, 0, ny)
	next := NextDay(d)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, ny), next)
	assert.Equal(t, 23*time.Hour, next.Sub(StartOfDay(d)))
}

func TestCategory_Tags(t *testing.T) {
	c := Category{Name: "Food", Children: []Category{{Name: "Snacks"}, {Name: "Dining Out"}}}
	assert.Equal(t, []string{"Snacks", "Dining Out"}, c.Tags())
	assert.True(t, c.HasTag("Snacks"))
	assert.False(t, c.HasTag("Fuel"))
	assert.Empty(t, Category{}.Tags())
}

func TestReportFilterSet_ValueScan(t *testing.T) {
	in := ReportFilterSet{StartDate: "2024-01-01", AccountIDs: []uint{3}, Format: "pdf"}
	v, err := in.Value()
	require.NoError(t, err)

	var out ReportFilterSet
	require.NoError(t, out.Scan(v))
	assert.Equal(t, in, out)

	require.NoError(t, out.Scan(nil))
	assert.Equal(t, ReportFilterSet{}, out)
	assert.Error(t, out.Scan(42))
}
