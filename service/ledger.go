package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"wallet/logger"
	"wallet/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxDescriptionLength 交易描述最大字符数
const MaxDescriptionLength = 500

// TransactionInput 新建交易的参数
type TransactionInput struct {
	AccountID   uint
	CategoryID  uint
	Tag         string
	Amount      decimal.Decimal
	Type        models.TransactionType
	Date        time.Time
	Description string
	ExternalID  string
}

// TransactionPatch 更新交易，nil 字段保持不变
type TransactionPatch struct {
	AccountID   *uint
	CategoryID  *uint
	Tag         *string
	Amount      *decimal.Decimal
	Type        *models.TransactionType
	Date        *time.Time
	Description *string
}

// TransactionFilter 交易查询条件，EndDate 包含当天
type TransactionFilter struct {
	StartDate   *time.Time
	EndDate     *time.Time
	Type        models.TransactionType
	AccountIDs  []uint
	CategoryIDs []uint
	Tag         string
	MinAmount   *decimal.Decimal
	MaxAmount   *decimal.Decimal
	Search      string
	Page        int
	PageSize    int
}

func (f TransactionFilter) apply(q *gorm.DB) *gorm.DB {
	if f.StartDate != nil {
		q = q.Where("date >= ?", models.StartOfDay(*f.StartDate))
	}
	if f.EndDate != nil {
		q = q.Where("date < ?", models.NextDay(*f.EndDate))
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if len(f.AccountIDs) > 0 {
		q = q.Where("account_id IN ?", f.AccountIDs)
	}
	if len(f.CategoryIDs) > 0 {
		q = q.Where("category_id IN ?", f.CategoryIDs)
	}
	if f.Tag != "" {
		q = q.Where("tag = ?", f.Tag)
	}
	if f.MinAmount != nil {
		q = q.Where("amount >= ?", f.MinAmount.StringFixed(2))
	}
	if f.MaxAmount != nil {
		q = q.Where("amount <= ?", f.MaxAmount.StringFixed(2))
	}
	if f.Search != "" {
		q = q.Where("description LIKE ? ESCAPE '!'", "%"+escapeLike(f.Search)+"%")
	}
	return q
}

// escapeLike 转义 LIKE 通配符，转义符为 !
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "!", "!!")
	s = strings.ReplaceAll(s, "%", "!%")
	s = strings.ReplaceAll(s, "_", "!_")
	return s
}

// validate 检查不依赖数据库的字段
func (in TransactionInput) validate() error {
	verr := &ValidationError{}
	if !in.Amount.IsPositive() {
		verr.Add("amount", "金额必须大于0")
	}
	if !in.Type.Valid() {
		verr.Add("type", "类型必须为 income 或 expense")
	}
	if in.AccountID == 0 {
		verr.Add("account_id", "账户不能为空")
	}
	if in.CategoryID == 0 {
		verr.Add("category_id", "分类不能为空")
	}
	if in.Date.IsZero() {
		verr.Add("date", "日期不能为空")
	}
	if utf8.RuneCountInString(in.Description) > MaxDescriptionLength {
		verr.Add("description", fmt.Sprintf("描述不能超过%d个字符", MaxDescriptionLength))
	}
	return verr.Err()
}

func (in TransactionInput) model(userID uint) models.Transaction {
	return models.Transaction{
		UserID:      userID,
		AccountID:   in.AccountID,
		CategoryID:  in.CategoryID,
		Tag:         strings.TrimSpace(in.Tag),
		Amount:      in.Amount.Round(2),
		Type:        in.Type,
		Date:        in.Date,
		Description: strings.TrimSpace(in.Description),
		ExternalID:  in.ExternalID,
	}
}

func inputFrom(t models.Transaction) TransactionInput {
	return TransactionInput{
		AccountID:   t.AccountID,
		CategoryID:  t.CategoryID,
		Tag:         t.Tag,
		Amount:      t.Amount,
		Type:        t.Type,
		Date:        t.Date,
		Description: t.Description,
		ExternalID:  t.ExternalID,
	}
}

func (p TransactionPatch) merge(in TransactionInput) TransactionInput {
	if p.AccountID != nil {
		in.AccountID = *p.AccountID
	}
	if p.CategoryID != nil {
		in.CategoryID = *p.CategoryID
		// 换分类后旧标签不再有效，除非同时指定
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
	if p.Type != nil {
		in.Type = *p.Type
	}
	if p.Date != nil {
		in.Date = *p.Date
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	return in
}

// LedgerService 交易记录的增删改查，余额与交易在同一事务中更新
type LedgerService struct {
	db     *gorm.DB
	alerts *AlertDispatcher
	log    *slog.Logger
}

// NewLedgerService alerts 可为 nil
func NewLedgerService(db *gorm.DB, alerts *AlertDispatcher) *LedgerService {
	return &LedgerService{
		db:     db,
		alerts: alerts,
		log:    logger.Component(logger.ComponentLedger),
	}
}

// Create 新建交易并计入账户余额
func (s *LedgerService) Create(ctx context.Context, userID uint, in TransactionInput) (*models.Transaction, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	t := in.model(userID)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkReferences(tx, userID, t); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&t).Error; err != nil {
			return persistErr("保存交易失败", err)
		}
		return ApplyBalance(tx, t)
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("交易已创建", logger.FieldUserID, userID, "transaction_id", t.ID, "type", t.Type, "amount", t.Amount.String())
	s.alerts.TransactionWritten(ctx, nil, &t)
	return &t, nil
}

// Update 修改交易：先撤销旧记录对余额的影响，再计入新值
func (s *LedgerService) Update(ctx context.Context, userID, id uint, patch TransactionPatch) (*models.Transaction, error) {
	var before, after models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&before).Error; err != nil {
			return notFoundOr(err, "查询交易失败")
		}

		in := patch.merge(inputFrom(before))
		if err := in.validate(); err != nil {
			return err
		}
		after = in.model(userID)
		after.ID = before.ID
		after.CreatedAt = before.CreatedAt
		if err := checkReferences(tx, userID, after); err != nil {
			return err
		}

		if err := ReverseBalance(tx, before); err != nil {
			return err
		}
		if err := tx.Model(&models.Transaction{ID: before.ID}).
			Select("account_id", "category_id", "tag", "amount", "type", "date", "description").
			Updates(&after).Error; err != nil {
			return persistErr("更新交易失败", err)
		}
		return ApplyBalance(tx, after)
	})
	if err != nil {
		return nil, err
	}

	s.alerts.TransactionWritten(ctx, &before, &after)
	return s.Get(ctx, userID, id)
}

// Delete 删除交易并撤销其对余额的影响
func (s *LedgerService) Delete(ctx context.Context, userID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Transaction
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&t).Error; err != nil {
			return notFoundOr(err, "查询交易失败")
		}
		if err := tx.Delete(&t).Error; err != nil {
			return persistErr("删除交易失败", err)
		}
		return ReverseBalance(tx, t)
	})
}

// Get 获取单条交易，包含账户和分类
func (s *LedgerService) Get(ctx context.Context, userID, id uint) (*models.Transaction, error) {
	var t models.Transaction
	err := s.db.WithContext(ctx).
		Preload("Account").
		Preload("Category").
		Where("id = ? AND user_id = ?", id, userID).
		First(&t).Error
	if err != nil {
		return nil, notFoundOr(err, "查询交易失败")
	}
	return &t, nil
}

// List 分页查询交易，按日期倒序
func (s *LedgerService) List(ctx context.Context, userID uint, f TransactionFilter) ([]models.Transaction, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 10
	}

	q := f.apply(s.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID))

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, persistErr("统计交易失败", err)
	}

	var list []models.Transaction
	offset := (f.Page - 1) * f.PageSize
	if err := q.Preload("Category").Preload("Account").
		Order("date DESC, id DESC").
		Offset(offset).Limit(f.PageSize).
		Find(&list).Error; err != nil {
		return nil, 0, persistErr("查询交易失败", err)
	}
	return list, total, nil
}

// checkReferences 账户不存在返回 ErrNotFound，分类或标签无效返回校验错误
func checkReferences(tx *gorm.DB, userID uint, t models.Transaction) error {
	var account models.Account
	if err := tx.Select("id").Where("id = ? AND user_id = ?", t.AccountID, userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("账户 %d: %w", t.AccountID, ErrNotFound)
		}
		return persistErr("查询账户失败", err)
	}

	var category models.Category
	if err := tx.Select("id").Where("id = ? AND user_id = ?", t.CategoryID, userID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NewValidationError("category_id", "分类不存在")
		}
		return persistErr("查询分类失败", err)
	}

	if t.Tag != "" {
		var n int64
		if err := tx.Model(&models.Category{}).
			Where("user_id = ? AND parent_id = ? AND name = ?", userID, category.ID, t.Tag).
			Count(&n).Error; err != nil {
			return persistErr("查询标签失败", err)
		}
		if n == 0 {
			return NewValidationError("tag", "标签不属于该分类")
		}
	}
	return nil
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return persistErr(op, err)
}

func (s *LedgerService) externalIDExists(ctx context.Context, userID, accountID uint, externalID string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("user_id = ? AND account_id = ? AND external_id = ?", userID, accountID, externalID).
		Count(&n).Error; err != nil {
		return false, persistErr("查询导入记录失败", err)
	}
	return n > 0, nil
}
