package service

import (
	"fmt"

	"wallet/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ApplyBalance 将交易计入账户余额，收入加、支出减
// 必须在写交易记录的同一个数据库事务中调用
func ApplyBalance(tx *gorm.DB, t models.Transaction) error {
	return adjustBalance(tx, t.UserID, t.AccountID, t.SignedAmount())
}

// ReverseBalance 撤销交易对账户余额的影响
func ReverseBalance(tx *gorm.DB, t models.Transaction) error {
	return adjustBalance(tx, t.UserID, t.AccountID, t.SignedAmount().Neg())
}

// adjustBalance 在数据库层原子地累加余额，账户不存在时不做任何修改
func adjustBalance(tx *gorm.DB, userID, accountID uint, delta decimal.Decimal) error {
	res := tx.Model(&models.Account{}).
		Where("id = ? AND user_id = ?", accountID, userID).
		Update("balance", gorm.Expr("ROUND(balance + CAST(? AS DECIMAL(14,2)), 2)", delta.StringFixed(2)))
	if res.Error != nil {
		return persistErr("更新账户余额失败", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("账户 %d: %w", accountID, ErrNotFound)
	}
	return nil
}
