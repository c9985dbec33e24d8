package service

import (
	"context"
	"log/slog"
	"time"

	"wallet/logger"
	"wallet/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BudgetAlert 支出使预算越过提醒阈值时发出的提醒
type BudgetAlert struct {
	UserID        uint            `json:"user_id"`
	Username      string          `json:"username"`
	Email         string          `json:"email"`
	BudgetID      uint            `json:"budget_id"`
	Category      string          `json:"category"`
	Tag           string          `json:"tag,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Spent         decimal.Decimal `json:"spent"`
	Remaining     decimal.Decimal `json:"remaining"`
	Percentage    decimal.Decimal `json:"percentage"`
	Threshold     int             `json:"threshold"`
	Exceeded      bool            `json:"exceeded"`
	TransactionID uint            `json:"transaction_id"`
	TriggeredAt   time.Time       `json:"triggered_at"`
}

// Notifier 预算提醒通道
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert BudgetAlert) error
}

// AlertDispatcher 交易写入后检查相关预算是否越过阈值
type AlertDispatcher struct {
	db        *gorm.DB
	evaluator *BudgetEvaluator
	notifiers []Notifier
	now       func() time.Time
	log       *slog.Logger
}

// NewAlertDispatcher 没有通道时返回 nil，调用方无需判断
func NewAlertDispatcher(db *gorm.DB, evaluator *BudgetEvaluator, notifiers ...Notifier) *AlertDispatcher {
	if len(notifiers) == 0 {
		return nil
	}
	return &AlertDispatcher{
		db:        db,
		evaluator: evaluator,
		notifiers: notifiers,
		now:       time.Now,
		log:       logger.Component(logger.ComponentNotify),
	}
}

// contribution 交易计入该预算的金额
func contribution(b models.Budget, t *models.Transaction) decimal.Decimal {
	if t == nil || t.Type != models.TransactionExpense {
		return decimal.Zero
	}
	if t.UserID != b.UserID || t.CategoryID != b.CategoryID {
		return decimal.Zero
	}
	if b.Tag != "" && t.Tag != b.Tag {
		return decimal.Zero
	}
	if !b.Contains(t.Date) {
		return decimal.Zero
	}
	return t.Amount
}

// crossed 写入前低于阈值，写入后达到阈值
func crossed(b models.Budget, before, after decimal.Decimal) bool {
	threshold := decimal.NewFromInt(int64(b.NotificationThreshold))
	return Percentage(before, b.Amount).LessThan(threshold) &&
		Percentage(after, b.Amount).GreaterThanOrEqual(threshold)
}

// TransactionWritten 交易创建或修改并提交后调用，before 为修改前的记录
// 通知失败只记录日志
func (d *AlertDispatcher) TransactionWritten(ctx context.Context, before, after *models.Transaction) {
	if d == nil || after == nil || after.Type != models.TransactionExpense {
		return
	}

	budgets, err := d.evaluator.matching(ctx, *after)
	if err != nil {
		d.log.Warn("查询匹配预算失败", logger.FieldError, err)
		return
	}

	for _, b := range budgets {
		spent := d.evaluator.Spent(ctx, b)
		if spent.Degraded {
			d.log.Warn("预算提醒跳过，已花费金额不可用", "budget_id", b.ID, logger.FieldError, spent.Err)
			continue
		}
		prev := spent.Value.Sub(contribution(b, after)).Add(contribution(b, before))
		if !crossed(b, prev, spent.Value) {
			continue
		}
		d.dispatch(ctx, d.buildAlert(ctx, b, spent.Value, after.ID))
	}
}

func (d *AlertDispatcher) buildAlert(ctx context.Context, b models.Budget, spent decimal.Decimal, txID uint) BudgetAlert {
	st := Evaluate(b, SpentResult{Value: spent})
	alert := BudgetAlert{
		UserID:        b.UserID,
		BudgetID:      b.ID,
		Tag:           b.Tag,
		Amount:        b.Amount,
		Spent:         st.Spent,
		Remaining:     st.Remaining,
		Percentage:    st.Percentage,
		Threshold:     b.NotificationThreshold,
		Exceeded:      st.Exceeded,
		TransactionID: txID,
		TriggeredAt:   d.now(),
	}
	if b.Category != nil {
		alert.Category = b.Category.Name
	}

	var user models.User
	if err := d.db.WithContext(ctx).Select("id", "username", "email").First(&user, b.UserID).Error; err == nil {
		alert.Username = user.Username
		alert.Email = user.Email
	}
	return alert
}

func (d *AlertDispatcher) dispatch(ctx context.Context, alert BudgetAlert) {
	for _, n := range d.notifiers {
		if err := n.Notify(ctx, alert); err != nil {
			d.log.Error("发送预算提醒失败", "notifier", n.Name(), "budget_id", alert.BudgetID, logger.FieldError, err)
			continue
		}
		d.log.Info("已发送预算提醒", "notifier", n.Name(), "budget_id", alert.BudgetID, logger.FieldUserID, alert.UserID)
	}
}
