package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType 收支类型
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Valid 是否为 income 或 expense
func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

// Sign 收入为 +1，支出为 -1
func (t TransactionType) Sign() int64 {
	if t == TransactionExpense {
		return -1
	}
	return 1
}

// Transaction 收支记录
type Transaction struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	UserID      uint            `json:"user_id" gorm:"index;not null"`
	AccountID   uint            `json:"account_id" gorm:"index;not null"`
	CategoryID  uint            `json:"category_id" gorm:"index;not null"`
	Tag         string          `json:"tag" gorm:"size:100"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(14,2);not null"`
	Type        TransactionType `json:"type" gorm:"size:10;index;not null"`
	Date        time.Time       `json:"date" gorm:"index;not null"`
	Description string          `json:"description" gorm:"size:500"`
	ExternalID  string          `json:"external_id,omitempty" gorm:"size:64;index"` // 导入来源的流水号，如 OFX FITID
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `json:"-" gorm:"index"`
	Account     *Account        `json:"account,omitempty" gorm:"foreignKey:AccountID"`
	Category    *Category       `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
}

// TableName 设置表名
func (Transaction) TableName() string {
	return "transactions"
}

// SignedAmount 对账户余额的影响
func (t Transaction) SignedAmount() decimal.Decimal {
	return t.Amount.Mul(decimal.NewFromInt(t.Type.Sign()))
}
