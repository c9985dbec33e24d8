package service

import (
	"context"
	"testing"
	"time"

	"wallet/config"
	"wallet/database"
	"wallet/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var ctx = context.Background()

// newTestDB 内存 SQLite，每个测试独立
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// setupMockDB sqlmock + gorm mysql 方言，用于模拟数据库故障
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db, mock
}

var testPresets = []config.CategoryPreset{
	{Name: "Food", Color: "#F56565", Icon: "utensils", Tags: []string{"Snacks", "Dining Out"}},
	{Name: "Salary", Color: "#4CAF50", Icon: "money-bill-wave", Tags: []string{"Base Pay", "Bonuses"}},
	{Name: "Transport", Color: "#ED8936", Icon: "car", Tags: []string{"Fuel"}},
}

type fixture struct {
	db         *gorm.DB
	user       *models.User
	accounts   *AccountService
	categories *CategoryService
	ledger     *LedgerService
	budgets    *BudgetService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	users := NewUserService(db, testPresets)
	user, err := users.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret123"})
	require.NoError(t, err)

	return &fixture{
		db:         db,
		user:       user,
		accounts:   NewAccountService(db),
		categories: NewCategoryService(db, testPresets),
		ledger:     NewLedgerService(db, nil),
		budgets:    NewBudgetService(db, NewBudgetEvaluator(db, true)),
	}
}

func (f *fixture) account(t *testing.T, name, currency, initial string) *models.Account {
	t.Helper()
	a, err := f.accounts.Create(ctx, f.user.ID, AccountInput{
		Name:           name,
		Type:           models.AccountTypeBank,
		Currency:       currency,
		InitialBalance: decimal.RequireFromString(initial),
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) category(t *testing.T, name string) *models.Category {
	t.Helper()
	c, err := f.categories.ResolveByName(ctx, f.user.ID, name)
	require.NoError(t, err)
	return c
}

func (f *fixture) record(t *testing.T, accountID, categoryID uint, typ models.TransactionType, amount, date string) *models.Transaction {
	t.Helper()
	tx, err := f.ledger.Create(ctx, f.user.ID, TransactionInput{
		AccountID:  accountID,
		CategoryID: categoryID,
		Amount:     decimal.RequireFromString(amount),
		Type:       typ,
		Date:       day(date),
	})
	require.NoError(t, err)
	return tx
}

func (f *fixture) balance(t *testing.T, accountID uint) decimal.Decimal {
	t.Helper()
	a, err := f.accounts.Get(ctx, f.user.ID, accountID)
	require.NoError(t, err)
	return a.Balance
}

func day(s string) time.Time {
	d, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		panic(err)
	}
	return d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	if !dec(want).Equal(got) {
		require.Failf(t, "decimal mismatch", "want %s, got %s %v", want, got.String(), msgAndArgs)
	}
}
