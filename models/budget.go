package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultNotificationThreshold 默认提醒阈值（百分比）
const DefaultNotificationThreshold = 80

// Budget 分类预算，Tag 非空时只统计该标签
type Budget struct {
	ID                    uint            `json:"id" gorm:"primaryKey"`
	UserID                uint            `json:"user_id" gorm:"index;not null"`
	CategoryID            uint            `json:"category_id" gorm:"index;not null"`
	Tag                   string          `json:"tag" gorm:"size:100"`
	Amount                decimal.Decimal `json:"amount" gorm:"type:decimal(14,2);not null"`
	StartDate             time.Time       `json:"start_date" gorm:"index;not null"`
	EndDate               time.Time       `json:"end_date" gorm:"index;not null"`
	NotificationThreshold int             `json:"notification_threshold" gorm:"not null"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	DeletedAt             gorm.DeletedAt  `json:"-" gorm:"index"`
	Category              *Category       `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
}

// TableName 设置表名
func (Budget) TableName() string {
	return "budgets"
}

// PeriodEnd 结束日次日零点，不含
func (b Budget) PeriodEnd() time.Time {
	return NextDay(b.EndDate)
}

// Contains 日期是否在预算周期内（含首尾两天）
func (b Budget) Contains(d time.Time) bool {
	return !d.Before(StartOfDay(b.StartDate)) && d.Before(b.PeriodEnd())
}

// StartOfDay 当天 00:00:00
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NextDay 次日 00:00:00，作为日期区间的开区间上界
func NextDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}
