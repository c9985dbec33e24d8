package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AccountType 账户类型
type AccountType string

const (
	AccountTypeBank        AccountType = "bank"
	AccountTypeCash        AccountType = "cash"
	AccountTypeCredit      AccountType = "credit"
	AccountTypeInvestment  AccountType = "investment"
	AccountTypeMobileMoney AccountType = "mobile_money"
	AccountTypeOther       AccountType = "other"
)

// AccountTypes 全部账户类型
func AccountTypes() []AccountType {
	return []AccountType{
		AccountTypeBank,
		AccountTypeCash,
		AccountTypeCredit,
		AccountTypeInvestment,
		AccountTypeMobileMoney,
		AccountTypeOther,
	}
}

// Valid 是否为已知类型
func (t AccountType) Valid() bool {
	for _, v := range AccountTypes() {
		if t == v {
			return true
		}
	}
	return false
}

// Account 资金账户
// Balance 恒等于 InitialBalance 加上所有未删除交易的带符号金额
type Account struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	UserID         uint            `json:"user_id" gorm:"index;not null"`
	Name           string          `json:"name" gorm:"size:100;not null"`
	Type           AccountType     `json:"type" gorm:"size:20;not null"`
	Currency       string          `json:"currency" gorm:"size:3;not null"`
	Balance        decimal.Decimal `json:"balance" gorm:"type:decimal(14,2);not null"`
	InitialBalance decimal.Decimal `json:"initial_balance" gorm:"type:decimal(14,2);not null"`
	Description    string          `json:"description" gorm:"size:255"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `json:"-" gorm:"index"`
	User           User            `json:"-" gorm:"foreignKey:UserID"`
}

// TableName 设置表名
func (Account) TableName() string {
	return "accounts"
}
