package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ReportFilterSet 报表模板中保存的筛选条件
type ReportFilterSet struct {
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	AccountIDs  []uint `json:"account_ids,omitempty"`
	CategoryIDs []uint `json:"category_ids,omitempty"`
	Type        string `json:"type,omitempty"`
	Format      string `json:"format,omitempty"`
}

// Value 以 JSON 文本存储
func (f ReportFilterSet) Value() (driver.Value, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 读取 JSON 文本
func (f *ReportFilterSet) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*f = ReportFilterSet{}
		return nil
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	default:
		return errors.New("不支持的筛选条件格式")
	}
}

// ReportTemplate 保存的报表筛选模板，每个用户最多一个默认模板
type ReportTemplate struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	UserID      uint            `json:"user_id" gorm:"index;not null"`
	Name        string          `json:"name" gorm:"size:100;not null"`
	Description string          `json:"description" gorm:"size:255"`
	Filters     ReportFilterSet `json:"filters" gorm:"type:text"`
	IsDefault   bool            `json:"is_default" gorm:"index"`
	LastUsedAt  *time.Time      `json:"last_used_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `json:"-" gorm:"index"`
}

// TableName 设置表名
func (ReportTemplate) TableName() string {
	return "report_templates"
}
