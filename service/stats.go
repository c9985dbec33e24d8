package service

import (
	"context"
	"sort"
	"time"

	"wallet/models"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// TagStat 标签收支
type TagStat struct {
	Tag     string          `json:"tag"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Count   int             `json:"count"`
}

// CategoryStat 分类收支，含各标签明细
type CategoryStat struct {
	CategoryID uint            `json:"category_id"`
	Name       string          `json:"name"`
	Color      string          `json:"color"`
	Icon       string          `json:"icon"`
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
	Count      int             `json:"count"`
	Tags       []TagStat       `json:"tags"`
}

// DailyStat 每日收支
type DailyStat struct {
	Date    string          `json:"date"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// AccountStat 账户收支
type AccountStat struct {
	AccountID uint            `json:"account_id"`
	Name      string          `json:"name"`
	Currency  string          `json:"currency"`
	Income    decimal.Decimal `json:"income"`
	Expense   decimal.Decimal `json:"expense"`
}

// Statistics 区间统计
type Statistics struct {
	StartDate    string          `json:"start_date"`
	EndDate      string          `json:"end_date"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	Net          decimal.Decimal `json:"net"`
	Count        int             `json:"count"`
	Categories   []CategoryStat  `json:"categories"`
	Daily        []DailyStat     `json:"daily"`
	Accounts     []AccountStat   `json:"accounts"`
}

// Dashboard 首页概览
type Dashboard struct {
	Month        string               `json:"month"`
	TotalBalance decimal.Decimal      `json:"total_balance"`
	Accounts     []models.Account     `json:"accounts"`
	MonthIncome  decimal.Decimal      `json:"month_income"`
	MonthExpense decimal.Decimal      `json:"month_expense"`
	MonthNet     decimal.Decimal      `json:"month_net"`
	Recent       []models.Transaction `json:"recent_transactions"`
	Budgets      []BudgetStatus       `json:"budgets"`
	BudgetTotal  decimal.Decimal      `json:"budget_total"`
	BudgetSpent  decimal.Decimal      `json:"budget_spent"`
}

// StatsService 统计与首页概览
type StatsService struct {
	db      *gorm.DB
	budgets *BudgetService
	now     func() time.Time
}

// NewStatsService 创建统计服务
func NewStatsService(db *gorm.DB, budgets *BudgetService) *StatsService {
	return &StatsService{db: db, budgets: budgets, now: time.Now}
}

// Statistics 统计 [start, end] 区间的收支，end 包含当天
func (s *StatsService) Statistics(ctx context.Context, userID uint, start, end time.Time) (*Statistics, error) {
	if start.After(end) {
		return nil, NewValidationError("end_date", "结束日期不能早于开始日期")
	}

	var txs []models.Transaction
	if err := s.db.WithContext(ctx).
		Preload("Category").Preload("Account").
		Where("user_id = ? AND date >= ? AND date < ?", userID, models.StartOfDay(start), models.NextDay(end)).
		Order("date ASC, id ASC").
		Find(&txs).Error; err != nil {
		return nil, persistErr("查询统计数据失败", err)
	}

	st := Aggregate(txs, start, end)
	return &st, nil
}

// Aggregate 按分类/标签、日期、账户汇总，日期序列覆盖整个区间
func Aggregate(txs []models.Transaction, start, end time.Time) Statistics {
	st := Statistics{
		StartDate:  start.Format("2006-01-02"),
		EndDate:    end.Format("2006-01-02"),
		Count:      len(txs),
		Categories: []CategoryStat{},
		Accounts:   []AccountStat{},
	}

	categories := make(map[uint]*CategoryStat)
	tags := make(map[uint]map[string]*TagStat)
	accounts := make(map[uint]*AccountStat)
	daily := make(map[string]*DailyStat)

	for d := models.StartOfDay(start); !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		daily[key] = &DailyStat{Date: key}
		st.Daily = append(st.Daily, DailyStat{Date: key})
	}

	for _, t := range txs {
		income := t.Type == models.TransactionIncome
		if income {
			st.TotalIncome = st.TotalIncome.Add(t.Amount)
		} else {
			st.TotalExpense = st.TotalExpense.Add(t.Amount)
		}

		cs, ok := categories[t.CategoryID]
		if !ok {
			cs = &CategoryStat{CategoryID: t.CategoryID}
			if t.Category != nil {
				cs.Name, cs.Color, cs.Icon = t.Category.Name, t.Category.Color, t.Category.Icon
			}
			categories[t.CategoryID] = cs
			tags[t.CategoryID] = make(map[string]*TagStat)
		}
		cs.Count++
		addSide(&cs.Income, &cs.Expense, income, t.Amount)

		if t.Tag != "" {
			ts, ok := tags[t.CategoryID][t.Tag]
			if !ok {
				ts = &TagStat{Tag: t.Tag}
				tags[t.CategoryID][t.Tag] = ts
			}
			ts.Count++
			addSide(&ts.Income, &ts.Expense, income, t.Amount)
		}

		as, ok := accounts[t.AccountID]
		if !ok {
			as = &AccountStat{AccountID: t.AccountID}
			if t.Account != nil {
				as.Name, as.Currency = t.Account.Name, t.Account.Currency
			}
			accounts[t.AccountID] = as
		}
		addSide(&as.Income, &as.Expense, income, t.Amount)

		if ds, ok := daily[t.Date.Format("2006-01-02")]; ok {
			addSide(&ds.Income, &ds.Expense, income, t.Amount)
		}
	}
	st.Net = st.TotalIncome.Sub(st.TotalExpense)

	for i := range st.Daily {
		ds := daily[st.Daily[i].Date]
		ds.Net = ds.Income.Sub(ds.Expense)
		st.Daily[i] = *ds
	}

	for id, cs := range categories {
		cs.Tags = []TagStat{}
		for _, ts := range tags[id] {
			cs.Tags = append(cs.Tags, *ts)
		}
		sort.Slice(cs.Tags, func(i, j int) bool { return cs.Tags[i].Tag < cs.Tags[j].Tag })
		st.Categories = append(st.Categories, *cs)
	}
	// 支出多的分类在前
	sort.Slice(st.Categories, func(i, j int) bool {
		a, b := st.Categories[i], st.Categories[j]
		if !a.Expense.Equal(b.Expense) {
			return a.Expense.GreaterThan(b.Expense)
		}
		return a.CategoryID < b.CategoryID
	})

	for _, as := range accounts {
		st.Accounts = append(st.Accounts, *as)
	}
	sort.Slice(st.Accounts, func(i, j int) bool { return st.Accounts[i].AccountID < st.Accounts[j].AccountID })
	return st
}

func addSide(income, expense *decimal.Decimal, isIncome bool, amount decimal.Decimal) {
	if isIncome {
		*income = income.Add(amount)
	} else {
		*expense = expense.Add(amount)
	}
}

type typeTotal struct {
	Type  models.TransactionType
	Total decimal.Decimal
}

// Dashboard 首页概览，互不依赖的查询并发执行
func (s *StatsService) Dashboard(ctx context.Context, userID uint) (*Dashboard, error) {
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	nextMonth := monthStart.AddDate(0, 1, 0)

	d := &Dashboard{Month: monthStart.Format("2006-01")}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.db.WithContext(gctx).Where("user_id = ?", userID).Order("id ASC").Find(&d.Accounts).Error; err != nil {
			return persistErr("查询账户失败", err)
		}
		for _, a := range d.Accounts {
			d.TotalBalance = d.TotalBalance.Add(a.Balance)
		}
		return nil
	})

	g.Go(func() error {
		var totals []typeTotal
		if err := s.db.WithContext(gctx).Model(&models.Transaction{}).
			Select("type, COALESCE(SUM(amount), 0) AS total").
			Where("user_id = ? AND date >= ? AND date < ?", userID, monthStart, nextMonth).
			Group("type").
			Scan(&totals).Error; err != nil {
			return persistErr("统计本月收支失败", err)
		}
		for _, t := range totals {
			if t.Type == models.TransactionIncome {
				d.MonthIncome = t.Total.Round(2)
			} else {
				d.MonthExpense = t.Total.Round(2)
			}
		}
		d.MonthNet = d.MonthIncome.Sub(d.MonthExpense)
		return nil
	})

	g.Go(func() error {
		if err := s.db.WithContext(gctx).
			Preload("Category").Preload("Account").
			Where("user_id = ?", userID).
			Order("date DESC, id DESC").
			Limit(5).
			Find(&d.Recent).Error; err != nil {
			return persistErr("查询最近交易失败", err)
		}
		return nil
	})

	g.Go(func() error {
		statuses, err := s.budgets.Active(gctx, userID, now)
		if err != nil {
			return err
		}
		d.Budgets = statuses
		for _, st := range statuses {
			d.BudgetTotal = d.BudgetTotal.Add(st.Budget.Amount)
			d.BudgetSpent = d.BudgetSpent.Add(st.Spent)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}
