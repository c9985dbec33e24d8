package api

import (
	"time"

	"wallet/middleware"
	"wallet/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// BudgetHandler 预算处理器
type BudgetHandler struct {
	budgets *service.BudgetService
}

// NewBudgetHandler 创建预算处理器
func NewBudgetHandler(budgets *service.BudgetService) *BudgetHandler {
	return &BudgetHandler{budgets: budgets}
}

// BudgetRequest 创建预算请求，tag 为空表示整个分类
type BudgetRequest struct {
	CategoryID            uint            `json:"category_id" binding:"required" example:"2"`
	Tag                   string          `json:"tag" example:"Dining Out"`
	Amount                decimal.Decimal `json:"amount" swaggertype:"string" example:"500.00"`
	StartDate             string          `json:"start_date" binding:"required" example:"2024-01-01"`
	EndDate               string          `json:"end_date" binding:"required" example:"2024-01-31"`
	NotificationThreshold int             `json:"notification_threshold" example:"80"`
}

// BudgetUpdateRequest 更新预算请求，未传字段保持不变
type BudgetUpdateRequest struct {
	CategoryID            *uint            `json:"category_id"`
	Tag                   *string          `json:"tag"`
	Amount                *decimal.Decimal `json:"amount" swaggertype:"string"`
	StartDate             *string          `json:"start_date"`
	EndDate               *string          `json:"end_date"`
	NotificationThreshold *int             `json:"notification_threshold"`
}

// List 预算列表
// @Summary 获取预算列表
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]models.Budget} "获取成功"
// @Router /api/v1/budgets [get]
func (h *BudgetHandler) List(c *gin.Context) {
	list, err := h.budgets.List(c.Request.Context(), middleware.GetCurrentUserID(c))
	if err != nil {
		respondError(c, err, "查询预算失败")
		return
	}
	Success(c, list)
}

// Get 预算详情
// @Summary 获取预算详情
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Success 200 {object} Response{data=models.Budget} "获取成功"
// @Router /api/v1/budgets/{id} [get]
func (h *BudgetHandler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	b, err := h.budgets.Get(c.Request.Context(), middleware.GetCurrentUserID(c), id)
	if err != nil {
		respondError(c, err, "查询预算失败")
		return
	}
	Success(c, b)
}

// Create 创建预算
// @Summary 创建预算
// @Description 提醒阈值默认 80，范围 1-100
// @Tags 预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BudgetRequest true "预算信息"
// @Success 200 {object} Response{data=models.Budget} "创建成功"
// @Failure 400 {object} ValidationResponse "请求参数错误"
// @Router /api/v1/budgets [post]
func (h *BudgetHandler) Create(c *gin.Context) {
	var req BudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		respondError(c, err, "参数错误")
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		respondError(c, err, "参数错误")
		return
	}

	b, err := h.budgets.Create(c.Request.Context(), middleware.GetCurrentUserID(c), service.BudgetInput{
		CategoryID:            req.CategoryID,
		Tag:                   req.Tag,
		Amount:                req.Amount,
		StartDate:             *start,
		EndDate:               *end,
		NotificationThreshold: req.NotificationThreshold,
	})
	if err != nil {
		respondError(c, err, "创建预算失败")
		return
	}
	SuccessWithMessage(c, "创建成功", b)
}

// Update 更新预算
// @Summary 更新预算
// @Tags 预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Param request body BudgetUpdateRequest true "预算信息"
// @Success 200 {object} Response{data=models.Budget} "更新成功"
// @Router /api/v1/budgets/{id} [put]
func (h *BudgetHandler) Update(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req BudgetUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	patch := service.BudgetPatch{
		CategoryID:            req.CategoryID,
		Tag:                   req.Tag,
		Amount:                req.Amount,
		NotificationThreshold: req.NotificationThreshold,
	}
	for _, d := range []struct {
		field string
		value *string
		dst   **time.Time
	}{{"start_date", req.StartDate, &patch.StartDate}, {"end_date", req.EndDate, &patch.EndDate}} {
		if d.value == nil {
			continue
		}
		t, err := parseDate(d.field, *d.value)
		if err != nil {
			respondError(c, err, "参数错误")
			return
		}
		*d.dst = t
	}

	b, err := h.budgets.Update(c.Request.Context(), middleware.GetCurrentUserID(c), id, patch)
	if err != nil {
		respondError(c, err, "更新预算失败")
		return
	}
	SuccessWithMessage(c, "更新成功", b)
}

// Delete 删除预算
// @Summary 删除预算
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Success 200 {object} Response "删除成功"
// @Router /api/v1/budgets/{id} [delete]
func (h *BudgetHandler) Delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.budgets.Delete(c.Request.Context(), middleware.GetCurrentUserID(c), id); err != nil {
		respondError(c, err, "删除预算失败")
		return
	}
	SuccessWithMessage(c, "删除成功", nil)
}

// Status 预算执行情况
// @Summary 预算执行情况
// @Description 已花费、剩余、百分比、是否超支、是否需要提醒；查询失败时 degraded 为 true
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Success 200 {object} Response{data=service.BudgetStatus} "获取成功"
// @Router /api/v1/budgets/{id}/status [get]
func (h *BudgetHandler) Status(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	st, err := h.budgets.Status(c.Request.Context(), middleware.GetCurrentUserID(c), id)
	if err != nil {
		respondError(c, err, "计算预算失败")
		return
	}
	Success(c, st)
}

// Active 生效中的预算
// @Summary 生效中的预算
// @Description 周期包含指定日期（默认今天）的预算及执行情况
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param date query string false "日期 (2024-01-15)"
// @Success 200 {object} Response{data=[]service.BudgetStatus} "获取成功"
// @Router /api/v1/budgets/active [get]
func (h *BudgetHandler) Active(c *gin.Context) {
	date := time.Now()
	if d, err := parseDate("date", c.Query("date")); err != nil {
		respondError(c, err, "参数错误")
		return
	} else if d != nil {
		date = *d
	}
	list, err := h.budgets.Active(c.Request.Context(), middleware.GetCurrentUserID(c), date)
	if err != nil {
		respondError(c, err, "计算预算失败")
		return
	}
	Success(c, list)
}
