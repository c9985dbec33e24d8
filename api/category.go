package api

import (
	"wallet/middleware"
	"wallet/service"

	"github.com/gin-gonic/gin"
)

// CategoryHandler 分类管理，子分类即父分类的标签
type CategoryHandler struct {
	categories *service.CategoryService
}

// NewCategoryHandler 创建分类处理器
func NewCategoryHandler(categories *service.CategoryService) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

// CategoryCreateRequest 创建分类请求
type CategoryCreateRequest struct {
	Name          string `json:"name" binding:"required,min=1,max=100"`
	ParentID      *uint  `json:"parent_id"`
	Icon          string `json:"icon" binding:"omitempty,max=50"`
	Color         string `json:"color" binding:"omitempty,max=20"` // 颜色代码，如 #F56565
	BudgetTracked bool   `json:"budget_tracked"`
}

// CategoryUpdateRequest 更新分类请求，move_to_root 为 true 时移为顶级分类
type CategoryUpdateRequest struct {
	Name          *string `json:"name" binding:"omitempty,min=1,max=100"`
	ParentID      *uint   `json:"parent_id"`
	MoveToRoot    bool    `json:"move_to_root"`
	Icon          *string `json:"icon" binding:"omitempty,max=50"`
	Color         *string `json:"color" binding:"omitempty,max=20"`
	IsActive      *bool   `json:"is_active"`
	BudgetTracked *bool   `json:"budget_tracked"`
}

// List 列出分类
// @Summary 获取分类列表
// @Description tree=1 时以树形返回
// @Tags 分类
// @Produce json
// @Security BearerAuth
// @Param tree query bool false "是否返回树形"
// @Success 200 {object} Response{data=[]models.Category} "获取成功"
// @Router /api/v1/categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	switch c.Query("tree") {
	case "1", "true":
		tree, err := h.categories.Tree(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err, "查询分类失败")
			return
		}
		Success(c, tree)
	default:
		list, err := h.categories.List(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err, "查询分类失败")
			return
		}
		Success(c, list)
	}
}

// Get 分类详情及标签
// @Summary 获取分类详情
// @Tags 分类
// @Produce json
// @Security BearerAuth
// @Param id path int true "分类ID"
// @Success 200 {object} Response{data=models.Category} "获取成功"
// @Router /api/v1/categories/{id} [get]
func (h *CategoryHandler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	cat, err := h.categories.Get(c.Request.Context(), middleware.GetCurrentUserID(c), id)
	if err != nil {
		respondError(c, err, "查询分类失败")
		return
	}
	Success(c, cat)
}

// Presets 预设分类
// @Summary 获取预设分类
// @Description 新用户注册时初始化的分类和标签
// @Tags 分类
// @Produce json
// @Success 200 {object} Response{data=[]config.CategoryPreset} "获取成功"
// @Router /api/v1/categories/presets [get]
func (h *CategoryHandler) Presets(c *gin.Context) {
	Success(c, h.categories.Presets())
}

// Create 创建分类
// @Summary 创建分类
// @Description parent_id 不为空时创建为该分类的标签，同级名称不能重复
// @Tags 分类
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CategoryCreateRequest true "分类信息"
// @Success 200 {object} Response{data=models.Category} "创建成功"
// @Failure 400 {object} ValidationResponse "参数错误或名称已存在"
// @Router /api/v1/categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	var req CategoryCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	cat, err := h.categories.Create(c.Request.Context(), middleware.GetCurrentUserID(c), service.CategoryInput{
		Name:          req.Name,
		ParentID:      req.ParentID,
		Icon:          req.Icon,
		Color:         req.Color,
		BudgetTracked: req.BudgetTracked,
	})
	if err != nil {
		respondError(c, err, "创建分类失败")
		return
	}
	SuccessWithMessage(c, "创建成功", cat)
}

// Update 更新分类
// @Summary 更新分类
// @Description 标签改名会同步到已有交易和预算，不能移动到自身或子分类下
// @Tags 分类
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "分类ID"
// @Param request body CategoryUpdateRequest true "分类信息"
// @Success 200 {object} Response{data=models.Category} "更新成功"
// @Router /api/v1/categories/{id} [put]
func (h *CategoryHandler) Update(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req CategoryUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	cat, err := h.categories.Update(c.Request.Context(), middleware.GetCurrentUserID(c), id, service.CategoryPatch{
		Name:          req.Name,
		ParentID:      req.ParentID,
		MoveToRoot:    req.MoveToRoot,
		Icon:          req.Icon,
		Color:         req.Color,
		IsActive:      req.IsActive,
		BudgetTracked: req.BudgetTracked,
	})
	if err != nil {
		respondError(c, err, "更新分类失败")
		return
	}
	SuccessWithMessage(c, "更新成功", cat)
}

// Delete 删除分类
// @Summary 删除分类
// @Description 连同子分类一起删除，仍被交易或预算使用时拒绝
// @Tags 分类
// @Produce json
// @Security BearerAuth
// @Param id path int true "分类ID"
// @Success 200 {object} Response "删除成功"
// @Failure 400 {object} ValidationResponse "分类仍在使用"
// @Router /api/v1/categories/{id} [delete]
func (h *CategoryHandler) Delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.categories.Delete(c.Request.Context(), middleware.GetCurrentUserID(c), id); err != nil {
		respondError(c, err, "删除分类失败")
		return
	}
	SuccessWithMessage(c, "删除成功", nil)
}
