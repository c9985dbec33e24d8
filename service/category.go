package service

import (
	"context"
	"errors"
	"strings"

	"wallet/config"
	"wallet/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CategoryInput 新建分类参数，ParentID 为空表示顶级分类
type CategoryInput struct {
	Name          string
	ParentID      *uint
	Icon          string
	Color         string
	BudgetTracked bool
}

// CategoryPatch nil 字段保持不变，MoveToRoot 为 true 时移到顶级
type CategoryPatch struct {
	Name          *string
	ParentID      *uint
	MoveToRoot    bool
	Icon          *string
	Color         *string
	IsActive      *bool
	BudgetTracked *bool
}

// CategoryService 用户分类树
type CategoryService struct {
	db      *gorm.DB
	presets []config.CategoryPreset
}

// NewCategoryService presets 为新用户初始化的预设分类
func NewCategoryService(db *gorm.DB, presets []config.CategoryPreset) *CategoryService {
	return &CategoryService{db: db, presets: presets}
}

// Presets 预设分类
func (s *CategoryService) Presets() []config.CategoryPreset {
	return s.presets
}

// List 平铺列出用户全部分类
func (s *CategoryService) List(ctx context.Context, userID uint) ([]models.Category, error) {
	var list []models.Category
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&list).Error; err != nil {
		return nil, persistErr("查询分类失败", err)
	}
	return list, nil
}

// Tree 以树形返回用户分类
func (s *CategoryService) Tree(ctx context.Context, userID uint) ([]models.Category, error) {
	list, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return BuildTree(list), nil
}

// BuildTree 由平铺列表构建树，父节点不在列表中的视为顶级
func BuildTree(flat []models.Category) []models.Category {
	ids := make(map[uint]bool, len(flat))
	for _, c := range flat {
		ids[c.ID] = true
	}
	byParent := make(map[uint][]models.Category)
	var roots []models.Category
	for _, c := range flat {
		if c.ParentID == nil || !ids[*c.ParentID] {
			roots = append(roots, c)
			continue
		}
		byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
	}

	var build func(c models.Category) models.Category
	build = func(c models.Category) models.Category {
		kids := byParent[c.ID]
		c.Children = make([]models.Category, 0, len(kids))
		for _, k := range kids {
			c.Children = append(c.Children, build(k))
		}
		return c
	}

	out := make([]models.Category, 0, len(roots))
	for _, r := range roots {
		out = append(out, build(r))
	}
	return out
}

// Get 获取分类及其直接子分类（标签）
func (s *CategoryService) Get(ctx context.Context, userID, id uint) (*models.Category, error) {
	var c models.Category
	if err := s.db.WithContext(ctx).Preload("Children").
		Where("id = ? AND user_id = ?", id, userID).First(&c).Error; err != nil {
		return nil, notFoundOr(err, "查询分类失败")
	}
	return &c, nil
}

// Tags 分类的标签
func (s *CategoryService) Tags(ctx context.Context, userID, id uint) ([]string, error) {
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return c.Tags(), nil
}

// ResolveByName 按名称（不区分大小写）查找顶级分类
func (s *CategoryService) ResolveByName(ctx context.Context, userID uint, name string) (*models.Category, error) {
	var c models.Category
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND parent_id IS NULL AND LOWER(name) = ?", userID, strings.ToLower(strings.TrimSpace(name))).
		First(&c).Error
	if err != nil {
		return nil, notFoundOr(err, "查询分类失败")
	}
	return &c, nil
}

// Create 新建分类，同级名称不能重复
func (s *CategoryService) Create(ctx context.Context, userID uint, in CategoryInput) (*models.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateCategoryName(in.Name); err != nil {
		return nil, err
	}

	c := models.Category{
		UserID:        userID,
		ParentID:      in.ParentID,
		Name:          in.Name,
		Icon:          in.Icon,
		Color:         in.Color,
		IsActive:      true,
		BudgetTracked: in.BudgetTracked,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.ParentID != nil {
			if err := ensureParent(tx, userID, *in.ParentID); err != nil {
				return err
			}
		}
		if err := ensureUniqueSibling(tx, userID, in.ParentID, in.Name, 0); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&c).Error; err != nil {
			return persistErr("创建分类失败", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Update 修改分类，移动父节点时禁止形成环
func (s *CategoryService) Update(ctx context.Context, userID, id uint, patch CategoryPatch) (*models.Category, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Category
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&c).Error; err != nil {
			return notFoundOr(err, "查询分类失败")
		}

		parentID := c.ParentID
		if patch.MoveToRoot {
			parentID = nil
		} else if patch.ParentID != nil {
			parentID = patch.ParentID
			if err := ensureNoCycle(tx, userID, id, parentID); err != nil {
				return err
			}
		}

		name := c.Name
		if patch.Name != nil {
			name = strings.TrimSpace(*patch.Name)
			if err := validateCategoryName(name); err != nil {
				return err
			}
		}
		if err := ensureUniqueSibling(tx, userID, parentID, name, id); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"name":      name,
			"parent_id": parentID,
		}
		if patch.Icon != nil {
			updates["icon"] = *patch.Icon
		}
		if patch.Color != nil {
			updates["color"] = *patch.Color
		}
		if patch.IsActive != nil {
			updates["is_active"] = *patch.IsActive
		}
		if patch.BudgetTracked != nil {
			updates["budget_tracked"] = *patch.BudgetTracked
		}
		oldName, oldParent := c.Name, c.ParentID
		if err := tx.Model(&models.Category{ID: c.ID}).Updates(updates).Error; err != nil {
			return persistErr("更新分类失败", err)
		}

		// 原为标签：改名时同步引用，移出原分类时清空引用
		if oldParent == nil {
			return nil
		}
		if parentID == nil || *parentID != *oldParent {
			return retag(tx, userID, *oldParent, oldName, "")
		}
		if name != oldName {
			return retag(tx, userID, *oldParent, oldName, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, id)
}

// Delete 删除分类及其全部子孙，仍被交易或预算引用时拒绝
func (s *CategoryService) Delete(ctx context.Context, userID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Category
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&c).Error; err != nil {
			return notFoundOr(err, "查询分类失败")
		}

		ids, err := subtreeIDs(tx, userID, id)
		if err != nil {
			return err
		}

		var used int64
		if err := tx.Model(&models.Transaction{}).Where("user_id = ? AND category_id IN ?", userID, ids).Count(&used).Error; err != nil {
			return persistErr("查询分类引用失败", err)
		}
		if used == 0 {
			if err := tx.Model(&models.Budget{}).Where("user_id = ? AND category_id IN ?", userID, ids).Count(&used).Error; err != nil {
				return persistErr("查询分类引用失败", err)
			}
		}
		if used > 0 {
			return NewValidationError("id", "分类仍被交易或预算使用，无法删除")
		}

		if err := tx.Where("user_id = ? AND id IN ?", userID, ids).Delete(&models.Category{}).Error; err != nil {
			return persistErr("删除分类失败", err)
		}
		return nil
	})
}

// SeedPresets 为用户初始化预设分类
func (s *CategoryService) SeedPresets(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return SeedPresets(tx, userID, s.presets)
	})
}

// SeedPresets 每个预设创建一个顶级分类，标签作为其子分类
func SeedPresets(tx *gorm.DB, userID uint, presets []config.CategoryPreset) error {
	for _, p := range presets {
		parent := models.Category{
			UserID:        userID,
			Name:          p.Name,
			Icon:          p.Icon,
			Color:         p.Color,
			IsActive:      true,
			BudgetTracked: true,
		}
		if err := tx.Omit(clause.Associations).Create(&parent).Error; err != nil {
			return persistErr("初始化预设分类失败", err)
		}

		seen := make(map[string]bool, len(p.Tags))
		children := make([]models.Category, 0, len(p.Tags))
		for _, tag := range p.Tags {
			if seen[tag] {
				continue
			}
			seen[tag] = true
			children = append(children, models.Category{
				UserID:   userID,
				ParentID: &parent.ID,
				Name:     tag,
				Icon:     p.Icon,
				Color:    p.Color,
				IsActive: true,
			})
		}
		if len(children) == 0 {
			continue
		}
		if err := tx.Omit(clause.Associations).Create(&children).Error; err != nil {
			return persistErr("初始化预设标签失败", err)
		}
	}
	return nil
}

// retag 把分类下引用标签 from 的交易和预算改为 to
func retag(tx *gorm.DB, userID, categoryID uint, from, to string) error {
	if err := tx.Model(&models.Transaction{}).
		Where("user_id = ? AND category_id = ? AND tag = ?", userID, categoryID, from).
		Update("tag", to).Error; err != nil {
		return persistErr("同步交易标签失败", err)
	}
	if err := tx.Model(&models.Budget{}).
		Where("user_id = ? AND category_id = ? AND tag = ?", userID, categoryID, from).
		Update("tag", to).Error; err != nil {
		return persistErr("同步预算标签失败", err)
	}
	return nil
}

func validateCategoryName(name string) error {
	if name == "" {
		return NewValidationError("name", "名称不能为空")
	}
	if len([]rune(name)) > 100 {
		return NewValidationError("name", "名称不能超过100个字符")
	}
	return nil
}

func ensureParent(tx *gorm.DB, userID, parentID uint) error {
	var n int64
	if err := tx.Model(&models.Category{}).Where("id = ? AND user_id = ?", parentID, userID).Count(&n).Error; err != nil {
		return persistErr("查询父分类失败", err)
	}
	if n == 0 {
		return NewValidationError("parent_id", "父分类不存在")
	}
	return nil
}

func ensureUniqueSibling(tx *gorm.DB, userID uint, parentID *uint, name string, excludeID uint) error {
	q := tx.Model(&models.Category{}).Where("user_id = ? AND name = ?", userID, name)
	if parentID == nil {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", *parentID)
	}
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return persistErr("查询分类失败", err)
	}
	if n > 0 {
		return NewValidationError("name", "同级分类名称已存在")
	}
	return nil
}

// ensureNoCycle 从新父节点向上查找，遇到自身即成环
func ensureNoCycle(tx *gorm.DB, userID, id uint, parentID *uint) error {
	seen := make(map[uint]bool)
	for cur := parentID; cur != nil; {
		if *cur == id {
			return NewValidationError("parent_id", "不能移动到自身或其子分类下")
		}
		if seen[*cur] {
			return nil
		}
		seen[*cur] = true

		var p models.Category
		if err := tx.Select("id", "parent_id").Where("id = ? AND user_id = ?", *cur, userID).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NewValidationError("parent_id", "父分类不存在")
			}
			return persistErr("查询父分类失败", err)
		}
		cur = p.ParentID
	}
	return nil
}

func subtreeIDs(tx *gorm.DB, userID, rootID uint) ([]uint, error) {
	ids := []uint{rootID}
	frontier := []uint{rootID}
	for len(frontier) > 0 {
		var next []uint
		if err := tx.Model(&models.Category{}).
			Where("user_id = ? AND parent_id IN ?", userID, frontier).
			Pluck("id", &next).Error; err != nil {
			return nil, persistErr("查询子分类失败", err)
		}
		ids = append(ids, next...)
		frontier = next
	}
	return ids, nil
}
