package service

import (
	"errors"
	"testing"
	"time"

	"wallet/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		spent, amount, want string
	}{
		{"0", "500", "0"},
		{"200", "500", "40"},
		{"1", "3", "33.33"},
		{"2", "3", "66.67"},
		{"750", "500", "150"},
		{"10", "0", "0"},
		{"10", "-5", "0"},
	}
	for _, tt := range tests {
		assertDecimal(t, tt.want, Percentage(dec(tt.spent), dec(tt.amount)), tt.spent+"/"+tt.amount)
	}
}

func TestEvaluate(t *testing.T) {
	b := models.Budget{Amount: dec("500"), NotificationThreshold: 80}

	st := Evaluate(b, SpentResult{Value: dec("400")})
	assertDecimal(t, "100", st.Remaining)
	assertDecimal(t, "80", st.Percentage)
	assert.True(t, st.ShouldNotify)
	assert.False(t, st.Exceeded)

	st = Evaluate(b, SpentResult{Value: dec("520")})
	assertDecimal(t, "-20", st.Remaining)
	assert.True(t, st.Exceeded)

	st = Evaluate(b, SpentResult{Degraded: true, Err: errors.New("boom")})
	assert.True(t, st.Degraded)
	assert.NotEmpty(t, st.Error)
	assertDecimal(t, "0", st.Spent)
}

func TestBudget_FoodScenario(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "Checking", "USD", "1000")
	food := f.category(t, "Food")
	salary := f.category(t, "Salary")

	b, err := f.budgets.Create(ctx, f.user.ID, BudgetInput{
		CategoryID: food.ID,
		Amount:     dec("500"),
		StartDate:  day("2024-01-01"),
		EndDate:    day("2024-01-31"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultNotificationThreshold, b.NotificationThreshold)

	f.record(t, acc.ID, food.ID, models.TransactionExpense, "120", "2024-01-05")
	f.record(t, acc.ID, food.ID, models.TransactionExpense, "80", "2024-01-31")
	// 不计入：收入、其他分类、周期外
	f.record(t, acc.ID, food.ID, models.TransactionIncome, "1000", "2024-01-10")
	f.record(t, acc.ID, salary.ID, models.TransactionExpense, "70", "2024-01-10")
	f.record(t, acc.ID, food.ID, models.TransactionExpense, "60", "2024-02-01")

	st, err := f.budgets.Status(ctx, f.user.ID, b.ID)
	require.NoError(t, err)
	assertDecimal(t, "200", st.Spent)
	assertDecimal(t, "300", st.Remaining)
	assertDecimal(t, "40", st.Percentage)
	assert.Equal(t, "40.00", st.Percentage.StringFixed(2))
	assert.False(t, st.ShouldNotify)
	assert.False(t, st.Exceeded)
	assert.False(t, st.Degraded)
}

func TestBudget_TagScope(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "Checking", "USD", "0")
	food := f.category(t, "Food")

	b, err := f.budgets.Create(ctx, f.user.ID, BudgetInput{
		CategoryID: food.ID, Tag: "Snacks", Amount: dec("100"),
		StartDate: day("2024-01-01"), EndDate: day("2024-01-31"),
	})
	require.NoError(t, err)

	_, err = f.ledger.Create(ctx, f.user.ID, TransactionInput{
		AccountID: acc.ID, CategoryID: food.ID, Tag: "Snacks", Amount: dec("15"),
		Type: models.TransactionExpense, Date: day("2024-01-03"),
	})
	require.NoError(t, err)
	_, err = f.ledger.Create(ctx, f.user.ID, TransactionInput{
		AccountID: acc.ID, CategoryID: food.ID, Tag: "Dining Out", Amount: dec("40"),
		Type: models.TransactionExpense, Date: day("2024-01-03"),
	})
	require.NoError(t, err)
	f.record(t, acc.ID, food.ID, models.TransactionExpense, "5", "2024-01-04")

	st, err := f.budgets.Status(ctx, f.user.ID, b.ID)
	require.NoError(t, err)
	assertDecimal(t, "15", st.Spent)
}

func TestBudget_Active(t *testing.T) {
	f := newFixture(t)
	food := f.category(t, "Food")

	jan, err := f.budgets.Create(ctx, f.user.ID, BudgetInput{
		CategoryID: food.ID, Amount: dec("100"),
		StartDate: day("2024-01-01"), EndDate: day("2024-01-31"),
	})
	require.NoError(t, err)
	_, err = f.budgets.Create(ctx, f.user.ID, BudgetInput{
		CategoryID: food.ID, Amount: dec("100"),
		StartDate: day("2024-02-01"), EndDate: day("2024-02-29"),
	})
	require.NoError(t, err)

	active, err := f.budgets.Active(ctx, f.user.ID, day("2024-01-31").Add(15*3600e9))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, jan.ID, active[0].Budget.ID)

	active, err = f.budgets.Active(ctx, f.user.ID, day("2023-12-31"))
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestBudget_CreateValidation(t *testing.T) {
	f := newFixture(t)
	food := f.category(t, "Food")

	_, err := f.budgets.Create(ctx, f.user.ID, BudgetInput{
		CategoryID: food.ID, Amount: dec("0"),
		StartDate: day("2024-02-01"), EndDate: day("2024-01-01"),
		NotificationThreshold: 120,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "amount")
	assert.Contains(t, verr.Fields, "end_date")
	assert.Contains(t, verr.Fields, "notification_threshold")

	_, err = f.budgets.Create(ctx, f.user.ID, BudgetInput{
		CategoryID: food.ID, Tag: "Fuel", Amount: dec("10"),
		StartDate: day("2024-01-01"), EndDate: day("2024-01-31"),
	})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "tag")
}

func TestBudget_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	food := f.category(t, "Food")
	transport := f.category(t, "Transport")

	b, err := f.budgets.Create(ctx, f.user.ID, BudgetInput{
		CategoryID: food.ID, Tag: "Snacks", Amount: dec("100"),
		StartDate: day("2024-01-01"), EndDate: day("2024-01-31"),
	})
	require.NoError(t, err)

	amount := dec("250")
	updated, err := f.budgets.Update(ctx, f.user.ID, b.ID, BudgetPatch{CategoryID: &transport.ID, Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, transport.ID, updated.CategoryID)
	assert.Empty(t, updated.Tag)
	assertDecimal(t, "250", updated.Amount)

	require.NoError(t, f.budgets.Delete(ctx, f.user.ID, b.ID))
	assert.ErrorIs(t, f.budgets.Delete(ctx, f.user.ID, b.ID), ErrNotFound)
}

func TestBudgetEvaluator_SpentFailure(t *testing.T) {
	b := models.Budget{ID: 7, UserID: 1, CategoryID: 2, Amount: dec("500"), NotificationThreshold: 80,
		StartDate: day("2024-01-01"), EndDate: day("2024-01-31")}

	t.Run("降级", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery("SELECT COALESCE").WillReturnError(errors.New("connection reset"))

		st, err := NewBudgetEvaluator(db, true).Status(ctx, b)
		require.NoError(t, err)
		assert.True(t, st.Degraded)
		assertDecimal(t, "0", st.Spent)
		assertDecimal(t, "500", st.Remaining)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("严格", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery("SELECT COALESCE").WillReturnError(errors.New("connection reset"))

		_, err := NewBudgetEvaluator(db, false).Status(ctx, b)
		assert.ErrorIs(t, err, ErrComputation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("正常", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery("SELECT COALESCE").
			WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow("450.00"))

		st, err := NewBudgetEvaluator(db, false).Status(ctx, b)
		require.NoError(t, err)
		assertDecimal(t, "450", st.Spent)
		assert.True(t, st.ShouldNotify)
	})
}

func TestEndDateIncludesWholeLastDay(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "A", "USD", "0")
	food := f.category(t, "Food")
	start, end := day("2024-01-01"), day("2024-01-31")

	late := end.Add(24*time.Hour - 500*time.Millisecond)
	_, err := f.ledger.Create(ctx, f.user.ID, TransactionInput{
		AccountID: acc.ID, CategoryID: food.ID, Amount: dec("12.34"),
		Type: models.TransactionExpense, Date: late,
	})
	require.NoError(t, err)
	f.record(t, acc.ID, food.ID, models.TransactionExpense, "1", "2024-02-01")

	_, total, err := f.ledger.List(ctx, f.user.ID, TransactionFilter{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	b, err := f.budgets.Create(ctx, f.user.ID, BudgetInput{CategoryID: food.ID, Amount: dec("100"), StartDate: start, EndDate: end})
	require.NoError(t, err)
	st, err := f.budgets.Status(ctx, f.user.ID, b.ID)
	require.NoError(t, err)
	assertDecimal(t, "12.34", st.Spent)

	stats, err := NewStatsService(f.db, f.budgets).Statistics(ctx, f.user.ID, start, end)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
	assertDecimal(t, "12.34", stats.TotalExpense)
}
