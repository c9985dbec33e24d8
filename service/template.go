package service

import (
	"context"
	"strings"
	"time"

	"wallet/models"

	"gorm.io/gorm"
)

// TemplateInput 报表模板参数
type TemplateInput struct {
	Name        string
	Description string
	Filters     models.ReportFilterSet
	IsDefault   bool
}

// TemplateService 保存的报表筛选模板，每个用户最多一个默认模板
type TemplateService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTemplateService 创建模板服务
func NewTemplateService(db *gorm.DB) *TemplateService {
	return &TemplateService{db: db, now: time.Now}
}

func (in *TemplateInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	verr := &ValidationError{}
	if in.Name == "" {
		verr.Add("name", "模板名称不能为空")
	} else if len([]rune(in.Name)) > 100 {
		verr.Add("name", "模板名称不能超过100个字符")
	}
	if f := ReportFormat(in.Filters.Format); f != "" && !f.Valid() {
		verr.Add("filters.format", "格式必须为 xlsx 或 pdf")
	}
	if t := models.TransactionType(in.Filters.Type); t != "" && !t.Valid() {
		verr.Add("filters.type", "类型必须为 income 或 expense")
	}
	return verr.Err()
}

// List 用户全部模板，默认模板在前
func (s *TemplateService) List(ctx context.Context, userID uint) ([]models.ReportTemplate, error) {
	var list []models.ReportTemplate
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("is_default DESC, id ASC").Find(&list).Error; err != nil {
		return nil, persistErr("查询报表模板失败", err)
	}
	return list, nil
}

// Get 获取模板
func (s *TemplateService) Get(ctx context.Context, userID, id uint) (*models.ReportTemplate, error) {
	var t models.ReportTemplate
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&t).Error; err != nil {
		return nil, notFoundOr(err, "查询报表模板失败")
	}
	return &t, nil
}

// Create 新建模板，IsDefault 时取消其他默认模板
func (s *TemplateService) Create(ctx context.Context, userID uint, in TemplateInput) (*models.ReportTemplate, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	t := models.ReportTemplate{
		UserID:      userID,
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Filters:     in.Filters,
		IsDefault:   in.IsDefault,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.IsDefault {
			if err := clearDefault(tx, userID); err != nil {
				return err
			}
		}
		return persistErr("保存报表模板失败", tx.Create(&t).Error)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Update 修改模板
func (s *TemplateService) Update(ctx context.Context, userID, id uint, in TemplateInput) (*models.ReportTemplate, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.ReportTemplate
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&t).Error; err != nil {
			return notFoundOr(err, "查询报表模板失败")
		}
		if in.IsDefault && !t.IsDefault {
			if err := clearDefault(tx, userID); err != nil {
				return err
			}
		}
		t.Name = in.Name
		t.Description = strings.TrimSpace(in.Description)
		t.Filters = in.Filters
		t.IsDefault = in.IsDefault
		return persistErr("更新报表模板失败", tx.Save(&t).Error)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, id)
}

// SetDefault 设为默认模板
func (s *TemplateService) SetDefault(ctx context.Context, userID, id uint) (*models.ReportTemplate, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.ReportTemplate
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&t).Error; err != nil {
			return notFoundOr(err, "查询报表模板失败")
		}
		if err := clearDefault(tx, userID); err != nil {
			return err
		}
		return persistErr("设置默认模板失败", tx.Model(&t).Update("is_default", true).Error)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, id)
}

// MarkUsed 记录使用时间
func (s *TemplateService) MarkUsed(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.ReportTemplate{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("last_used_at", s.now())
	if res.Error != nil {
		return persistErr("更新模板使用时间失败", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete 删除模板
func (s *TemplateService) Delete(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.ReportTemplate{})
	if res.Error != nil {
		return persistErr("删除报表模板失败", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func clearDefault(tx *gorm.DB, userID uint) error {
	return persistErr("取消默认模板失败", tx.Model(&models.ReportTemplate{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error)
}
