package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"wallet/logger"
	"wallet/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var hundred = decimal.NewFromInt(100)

// SpentResult 已花费金额，查询失败时 Degraded 为 true 且 Value 为 0
type SpentResult struct {
	Value    decimal.Decimal
	Degraded bool
	Err      error
}

// BudgetStatus 预算执行情况
type BudgetStatus struct {
	Budget       models.Budget   `json:"budget"`
	Spent        decimal.Decimal `json:"spent"`
	Remaining    decimal.Decimal `json:"remaining"`
	Percentage   decimal.Decimal `json:"percentage"`
	Exceeded     bool            `json:"exceeded"`
	ShouldNotify bool            `json:"should_notify"`
	Degraded     bool            `json:"degraded"`
	Error        string          `json:"error,omitempty"`
}

// Percentage spent/amount*100 保留两位小数，amount <= 0 时为 0
func Percentage(spent, amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	return spent.Div(amount).Mul(hundred).Round(2)
}

// Evaluate 由预算和已花费金额计算执行情况
func Evaluate(b models.Budget, spent SpentResult) BudgetStatus {
	pct := Percentage(spent.Value, b.Amount)
	st := BudgetStatus{
		Budget:       b,
		Spent:        spent.Value,
		Remaining:    b.Amount.Sub(spent.Value),
		Percentage:   pct,
		Exceeded:     spent.Value.GreaterThan(b.Amount),
		ShouldNotify: pct.GreaterThanOrEqual(decimal.NewFromInt(int64(b.NotificationThreshold))),
		Degraded:     spent.Degraded,
	}
	if spent.Err != nil {
		st.Error = "已花费金额暂不可用"
	}
	return st
}

// BudgetEvaluator 计算预算已花费金额
type BudgetEvaluator struct {
	db      *gorm.DB
	degrade bool
	log     *slog.Logger
}

// NewBudgetEvaluator degradeOnError 为 false 时查询失败直接返回 ErrComputation
func NewBudgetEvaluator(db *gorm.DB, degradeOnError bool) *BudgetEvaluator {
	return &BudgetEvaluator{
		db:      db,
		degrade: degradeOnError,
		log:     logger.Component(logger.ComponentBudget),
	}
}

// Spent 统计预算周期内同分类（及标签）支出之和，结束日包含全天
func (e *BudgetEvaluator) Spent(ctx context.Context, b models.Budget) SpentResult {
	q := e.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND category_id = ? AND type = ?", b.UserID, b.CategoryID, models.TransactionExpense).
		Where("date >= ? AND date < ?", models.StartOfDay(b.StartDate), b.PeriodEnd())
	if b.Tag != "" {
		q = q.Where("tag = ?", b.Tag)
	}

	var total decimal.Decimal
	if err := q.Row().Scan(&total); err != nil {
		return SpentResult{Value: decimal.Zero, Degraded: true, Err: err}
	}
	return SpentResult{Value: total.Round(2)}
}

// Status 计算单个预算的执行情况
func (e *BudgetEvaluator) Status(ctx context.Context, b models.Budget) (BudgetStatus, error) {
	spent := e.Spent(ctx, b)
	if spent.Degraded {
		if !e.degrade {
			return BudgetStatus{}, fmt.Errorf("预算 %d: %w: %w", b.ID, ErrComputation, spent.Err)
		}
		e.log.Warn("预算已花费金额查询失败，按 0 处理", "budget_id", b.ID, logger.FieldError, spent.Err)
	}
	return Evaluate(b, spent), nil
}

// Statuses 批量计算，严格模式下遇到第一个错误即返回
func (e *BudgetEvaluator) Statuses(ctx context.Context, budgets []models.Budget) ([]BudgetStatus, error) {
	out := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		st, err := e.Status(ctx, b)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// ActiveBudgets 周期包含 date 的预算，顺序不固定
func (e *BudgetEvaluator) ActiveBudgets(ctx context.Context, userID uint, date time.Time) ([]models.Budget, error) {
	var list []models.Budget
	err := e.db.WithContext(ctx).
		Preload("Category").
		Where("user_id = ? AND start_date <= ? AND end_date >= ?", userID, date, models.StartOfDay(date)).
		Find(&list).Error
	if err != nil {
		return nil, persistErr("查询生效预算失败", err)
	}
	return list, nil
}

// matching 与交易分类匹配的生效预算，预算未指定标签时匹配该分类下所有交易
func (e *BudgetEvaluator) matching(ctx context.Context, t models.Transaction) ([]models.Budget, error) {
	var list []models.Budget
	err := e.db.WithContext(ctx).
		Preload("Category").
		Where("user_id = ? AND category_id = ?", t.UserID, t.CategoryID).
		Where("tag = '' OR tag = ?", t.Tag).
		Where("start_date <= ? AND end_date >= ?", t.Date, models.StartOfDay(t.Date)).
		Find(&list).Error
	return list, err
}

// BudgetInput 新建预算参数，NotificationThreshold 为 0 时使用默认值 80
type BudgetInput struct {
	CategoryID            uint
	Tag                   string
	Amount                decimal.Decimal
	StartDate             time.Time
	EndDate               time.Time
	NotificationThreshold int
}

// BudgetPatch nil 字段保持不变
type BudgetPatch struct {
	CategoryID            *uint
	Tag                   *string
	Amount                *decimal.Decimal
	StartDate             *time.Time
	EndDate               *time.Time
	NotificationThreshold *int
}

func (in BudgetInput) validate() error {
	verr := &ValidationError{}
	if !in.Amount.IsPositive() {
		verr.Add("amount", "预算金额必须大于0")
	}
	if in.CategoryID == 0 {
		verr.Add("category_id", "分类不能为空")
	}
	if in.StartDate.IsZero() {
		verr.Add("start_date", "开始日期不能为空")
	}
	if in.EndDate.IsZero() {
		verr.Add("end_date", "结束日期不能为空")
	}
	if !in.StartDate.IsZero() && !in.EndDate.IsZero() && in.StartDate.After(in.EndDate) {
		verr.Add("end_date", "结束日期不能早于开始日期")
	}
	if in.NotificationThreshold < 1 || in.NotificationThreshold > 100 {
		verr.Add("notification_threshold", "提醒阈值必须在1到100之间")
	}
	return verr.Err()
}

func (in BudgetInput) withDefaults() BudgetInput {
	if in.NotificationThreshold == 0 {
		in.NotificationThreshold = models.DefaultNotificationThreshold
	}
	in.Tag = strings.TrimSpace(in.Tag)
	return in
}

func (in BudgetInput) apply(b *models.Budget) {
	b.CategoryID = in.CategoryID
	b.Tag = in.Tag
	b.Amount = in.Amount.Round(2)
	b.StartDate = models.StartOfDay(in.StartDate)
	b.EndDate = models.StartOfDay(in.EndDate)
	b.NotificationThreshold = in.NotificationThreshold
}

func (p BudgetPatch) merge(b models.Budget) BudgetInput {
	in := BudgetInput{
		CategoryID:            b.CategoryID,
		Tag:                   b.Tag,
		Amount:                b.Amount,
		StartDate:             b.StartDate,
		EndDate:               b.EndDate,
		NotificationThreshold: b.NotificationThreshold,
	}
	if p.CategoryID != nil {
		in.CategoryID = *p.CategoryID
		if p.Tag == nil {
			in.Tag = ""
		}
	}
	if p.Tag != nil {
		in.Tag = *p.Tag
	}
	if p.Amount != nil {
		in.Amount = *p.Amount
	}
	if p.StartDate != nil {
		in.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		in.EndDate = *p.EndDate
	}
	if p.NotificationThreshold != nil {
		in.NotificationThreshold = *p.NotificationThreshold
	}
	return in
}

// BudgetService 预算管理
type BudgetService struct {
	db        *gorm.DB
	evaluator *BudgetEvaluator
}

// NewBudgetService 创建预算服务
func NewBudgetService(db *gorm.DB, evaluator *BudgetEvaluator) *BudgetService {
	return &BudgetService{db: db, evaluator: evaluator}
}

// Evaluator 返回预算计算器
func (s *BudgetService) Evaluator() *BudgetEvaluator {
	return s.evaluator
}

// Create 新建预算
func (s *BudgetService) Create(ctx context.Context, userID uint, in BudgetInput) (*models.Budget, error) {
	in = in.withDefaults()
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := checkCategoryTag(s.db.WithContext(ctx), userID, in.CategoryID, in.Tag); err != nil {
		return nil, err
	}

	b := models.Budget{UserID: userID}
	in.apply(&b)
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&b).Error; err != nil {
		return nil, persistErr("保存预算失败", err)
	}
	return s.Get(ctx, userID, b.ID)
}

// Get 获取预算
func (s *BudgetService) Get(ctx context.Context, userID, id uint) (*models.Budget, error) {
	var b models.Budget
	if err := s.db.WithContext(ctx).Preload("Category").
		Where("id = ? AND user_id = ?", id, userID).First(&b).Error; err != nil {
		return nil, notFoundOr(err, "查询预算失败")
	}
	return &b, nil
}

// List 用户全部预算，按开始日期倒序
func (s *BudgetService) List(ctx context.Context, userID uint) ([]models.Budget, error) {
	var list []models.Budget
	if err := s.db.WithContext(ctx).Preload("Category").
		Where("user_id = ?", userID).
		Order("start_date DESC, id DESC").
		Find(&list).Error; err != nil {
		return nil, persistErr("查询预算失败", err)
	}
	return list, nil
}

// Update 修改预算
func (s *BudgetService) Update(ctx context.Context, userID, id uint, patch BudgetPatch) (*models.Budget, error) {
	b, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	in := patch.merge(*b)
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := checkCategoryTag(s.db.WithContext(ctx), userID, in.CategoryID, in.Tag); err != nil {
		return nil, err
	}

	in.apply(b)
	if err := s.db.WithContext(ctx).Model(&models.Budget{ID: b.ID}).
		Select("category_id", "tag", "amount", "start_date", "end_date", "notification_threshold").
		Updates(b).Error; err != nil {
		return nil, persistErr("更新预算失败", err)
	}
	return s.Get(ctx, userID, id)
}

// Delete 删除预算
func (s *BudgetService) Delete(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Budget{})
	if res.Error != nil {
		return persistErr("删除预算失败", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Status 单个预算的执行情况
func (s *BudgetService) Status(ctx context.Context, userID, id uint) (BudgetStatus, error) {
	b, err := s.Get(ctx, userID, id)
	if err != nil {
		return BudgetStatus{}, err
	}
	return s.evaluator.Status(ctx, *b)
}

// Active date 当天生效的预算及执行情况
func (s *BudgetService) Active(ctx context.Context, userID uint, date time.Time) ([]BudgetStatus, error) {
	budgets, err := s.evaluator.ActiveBudgets(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	return s.evaluator.Statuses(ctx, budgets)
}

// checkCategoryTag 分类必须属于用户，标签必须是该分类的直接子分类
func checkCategoryTag(db *gorm.DB, userID, categoryID uint, tag string) error {
	var n int64
	if err := db.Model(&models.Category{}).Where("id = ? AND user_id = ?", categoryID, userID).Count(&n).Error; err != nil {
		return persistErr("查询分类失败", err)
	}
	if n == 0 {
		return NewValidationError("category_id", "分类不存在")
	}
	if tag == "" {
		return nil
	}
	if err := db.Model(&models.Category{}).
		Where("user_id = ? AND parent_id = ? AND name = ?", userID, categoryID, tag).
		Count(&n).Error; err != nil {
		return persistErr("查询标签失败", err)
	}
	if n == 0 {
		return NewValidationError("tag", "标签不属于该分类")
	}
	return nil
}
