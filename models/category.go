package models

import (
	"time"

	"gorm.io/gorm"
)

// Category 用户分类，通过 ParentID 组成树
// 同一父节点下名称唯一，直接子分类的名称即为该分类的标签
type Category struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	UserID        uint           `json:"user_id" gorm:"index;not null"`
	ParentID      *uint          `json:"parent_id" gorm:"index"`
	Name          string         `json:"name" gorm:"size:100;not null"`
	Icon          string         `json:"icon" gorm:"size:50"`
	Color         string         `json:"color" gorm:"size:20"` // 颜色代码，如 #ef4444
	IsActive      bool           `json:"is_active"`
	BudgetTracked bool           `json:"budget_tracked"`
	Children      []Category     `json:"children,omitempty" gorm:"foreignKey:ParentID"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Category) TableName() string {
	return "categories"
}

// Tags 直接子分类名称
func (c Category) Tags() []string {
	tags := make([]string, 0, len(c.Children))
	for _, child := range c.Children {
		tags = append(tags, child.Name)
	}
	return tags
}

// HasTag 标签是否属于该分类
func (c Category) HasTag(tag string) bool {
	for _, child := range c.Children {
		if child.Name == tag {
			return true
		}
	}
	return false
}
