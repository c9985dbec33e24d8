package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"wallet/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// AccountInput 新建账户参数
type AccountInput struct {
	Name           string
	Type           models.AccountType
	Currency       string
	InitialBalance decimal.Decimal
	Description    string
}

// AccountPatch nil 字段保持不变
type AccountPatch struct {
	Name           *string
	Type           *models.AccountType
	Currency       *string
	InitialBalance *decimal.Decimal
	Description    *string
}

// BalancePoint 某日日终余额
type BalancePoint struct {
	Date    string          `json:"date"`
	Balance decimal.Decimal `json:"balance"`
}

func (in *AccountInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = "USD"
	}

	verr := &ValidationError{}
	if in.Name == "" {
		verr.Add("name", "账户名称不能为空")
	} else if len([]rune(in.Name)) > 100 {
		verr.Add("name", "账户名称不能超过100个字符")
	}
	if !in.Type.Valid() {
		verr.Add("type", "不支持的账户类型")
	}
	if !currencyPattern.MatchString(in.Currency) {
		verr.Add("currency", "币种必须是3位字母代码")
	}
	return verr.Err()
}

// AccountService 账户管理
type AccountService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAccountService 创建账户服务
func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{db: db, now: time.Now}
}

// Create 新建账户，余额等于初始余额
func (s *AccountService) Create(ctx context.Context, userID uint, in AccountInput) (*models.Account, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	a := models.Account{
		UserID:         userID,
		Name:           in.Name,
		Type:           in.Type,
		Currency:       in.Currency,
		Balance:        in.InitialBalance.Round(2),
		InitialBalance: in.InitialBalance.Round(2),
		Description:    strings.TrimSpace(in.Description),
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&a).Error; err != nil {
		return nil, persistErr("创建账户失败", err)
	}
	return &a, nil
}

// List 用户全部账户
func (s *AccountService) List(ctx context.Context, userID uint) ([]models.Account, error) {
	var list []models.Account
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&list).Error; err != nil {
		return nil, persistErr("查询账户失败", err)
	}
	return list, nil
}

// Get 获取账户
func (s *AccountService) Get(ctx context.Context, userID, id uint) (*models.Account, error) {
	var a models.Account
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&a).Error; err != nil {
		return nil, notFoundOr(err, "查询账户失败")
	}
	return &a, nil
}

// Update 修改账户，初始余额变化时按差额调整当前余额
func (s *AccountService) Update(ctx context.Context, userID, id uint, patch AccountPatch) (*models.Account, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Account
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&a).Error; err != nil {
			return notFoundOr(err, "查询账户失败")
		}

		in := AccountInput{Name: a.Name, Type: a.Type, Currency: a.Currency, InitialBalance: a.InitialBalance, Description: a.Description}
		if patch.Name != nil {
			in.Name = *patch.Name
		}
		if patch.Type != nil {
			in.Type = *patch.Type
		}
		if patch.Currency != nil {
			in.Currency = *patch.Currency
		}
		if patch.InitialBalance != nil {
			in.InitialBalance = patch.InitialBalance.Round(2)
		}
		if patch.Description != nil {
			in.Description = strings.TrimSpace(*patch.Description)
		}
		if err := in.normalize(); err != nil {
			return err
		}

		oldInitial := a.InitialBalance
		if err := tx.Model(&models.Account{ID: a.ID}).Updates(map[string]interface{}{
			"name":            in.Name,
			"type":            in.Type,
			"currency":        in.Currency,
			"initial_balance": in.InitialBalance.StringFixed(2),
			"description":     in.Description,
		}).Error; err != nil {
			return persistErr("更新账户失败", err)
		}

		if diff := in.InitialBalance.Sub(oldInitial); !diff.IsZero() {
			return adjustBalance(tx, userID, a.ID, diff)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, id)
}

// Delete 删除账户及其交易
func (s *AccountService) Delete(ctx context.Context, userID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Account
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&a).Error; err != nil {
			return notFoundOr(err, "查询账户失败")
		}
		if err := tx.Where("user_id = ? AND account_id = ?", userID, id).Delete(&models.Transaction{}).Error; err != nil {
			return persistErr("删除账户交易失败", err)
		}
		if err := tx.Delete(&a).Error; err != nil {
			return persistErr("删除账户失败", err)
		}
		return nil
	})
}

// BalanceHistory 最近 days 天的日终余额，从当前余额倒推，按日期升序
func (s *AccountService) BalanceHistory(ctx context.Context, userID, id uint, days int) ([]BalancePoint, error) {
	if days <= 0 {
		days = 30
	}
	a, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	today := models.StartOfDay(s.now())
	from := today.AddDate(0, 0, -(days - 1))

	var txs []models.Transaction
	if err := s.db.WithContext(ctx).
		Select("id", "amount", "type", "date").
		Where("user_id = ? AND account_id = ? AND date >= ?", userID, id, from).
		Find(&txs).Error; err != nil {
		return nil, persistErr("查询账户流水失败", err)
	}

	// 按天汇总，今天之后的交易先从当前余额中扣除
	daily := make(map[string]decimal.Decimal)
	closing := a.Balance
	for _, t := range txs {
		if !t.Date.Before(models.NextDay(today)) {
			closing = closing.Sub(t.SignedAmount())
			continue
		}
		key := t.Date.In(today.Location()).Format("2006-01-02")
		daily[key] = daily[key].Add(t.SignedAmount())
	}

	points := make([]BalancePoint, days)
	for i := days - 1; i >= 0; i-- {
		day := from.AddDate(0, 0, i).Format("2006-01-02")
		points[i] = BalancePoint{Date: day, Balance: closing}
		closing = closing.Sub(daily[day])
	}
	return points, nil
}
