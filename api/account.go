package api

import (
	"strconv"

	"wallet/middleware"
	"wallet/models"
	"wallet/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AccountHandler 账户处理器
type AccountHandler struct {
	accounts *service.AccountService
}

// NewAccountHandler 创建账户处理器
func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// AccountRequest 创建账户请求
type AccountRequest struct {
	Name           string             `json:"name" binding:"required,max=100" example:"招商银行"`
	Type           models.AccountType `json:"type" binding:"required" example:"bank"`
	Currency       string             `json:"currency" example:"USD"`
	InitialBalance decimal.Decimal    `json:"initial_balance" swaggertype:"string" example:"1000.00"`
	Description    string             `json:"description" example:"工资卡"`
}

// AccountUpdateRequest 更新账户请求，未传字段保持不变
type AccountUpdateRequest struct {
	Name           *string             `json:"name"`
	Type           *models.AccountType `json:"type"`
	Currency       *string             `json:"currency"`
	InitialBalance *decimal.Decimal    `json:"initial_balance" swaggertype:"string"`
	Description    *string             `json:"description"`
}

// List 账户列表
// @Summary 获取账户列表
// @Tags 账户
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]models.Account} "获取成功"
// @Router /api/v1/accounts [get]
func (h *AccountHandler) List(c *gin.Context) {
	list, err := h.accounts.List(c.Request.Context(), middleware.GetCurrentUserID(c))
	if err != nil {
		respondError(c, err, "查询账户失败")
		return
	}
	Success(c, list)
}

// Get 账户详情
// @Summary 获取账户详情
// @Tags 账户
// @Produce json
// @Security BearerAuth
// @Param id path int true "账户ID"
// @Success 200 {object} Response{data=models.Account} "获取成功"
// @Failure 404 {object} Response "账户不存在"
// @Router /api/v1/accounts/{id} [get]
func (h *AccountHandler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	a, err := h.accounts.Get(c.Request.Context(), middleware.GetCurrentUserID(c), id)
	if err != nil {
		respondError(c, err, "查询账户失败")
		return
	}
	Success(c, a)
}

// Create 创建账户
// @Summary 创建账户
// @Description 当前余额等于初始余额
// @Tags 账户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AccountRequest true "账户信息"
// @Success 200 {object} Response{data=models.Account} "创建成功"
// @Failure 400 {object} ValidationResponse "请求参数错误"
// @Router /api/v1/accounts [post]
func (h *AccountHandler) Create(c *gin.Context) {
	var req AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	a, err := h.accounts.Create(c.Request.Context(), middleware.GetCurrentUserID(c), service.AccountInput{
		Name:           req.Name,
		Type:           req.Type,
		Currency:       req.Currency,
		InitialBalance: req.InitialBalance,
		Description:    req.Description,
	})
	if err != nil {
		respondError(c, err, "创建账户失败")
		return
	}
	SuccessWithMessage(c, "创建成功", a)
}

// Update 更新账户
// @Summary 更新账户
// @Description 修改初始余额时当前余额按差额调整
// @Tags 账户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "账户ID"
// @Param request body AccountUpdateRequest true "账户信息"
// @Success 200 {object} Response{data=models.Account} "更新成功"
// @Router /api/v1/accounts/{id} [put]
func (h *AccountHandler) Update(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req AccountUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	a, err := h.accounts.Update(c.Request.Context(), middleware.GetCurrentUserID(c), id, service.AccountPatch{
		Name:           req.Name,
		Type:           req.Type,
		Currency:       req.Currency,
		InitialBalance: req.InitialBalance,
		Description:    req.Description,
	})
	if err != nil {
		respondError(c, err, "更新账户失败")
		return
	}
	SuccessWithMessage(c, "更新成功", a)
}

// Delete 删除账户
// @Summary 删除账户
// @Description 账户下的交易一并删除
// @Tags 账户
// @Produce json
// @Security BearerAuth
// @Param id path int true "账户ID"
// @Success 200 {object} Response "删除成功"
// @Router /api/v1/accounts/{id} [delete]
func (h *AccountHandler) Delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.accounts.Delete(c.Request.Context(), middleware.GetCurrentUserID(c), id); err != nil {
		respondError(c, err, "删除账户失败")
		return
	}
	SuccessWithMessage(c, "删除成功", nil)
}

// BalanceHistory 余额走势
// @Summary 账户余额走势
// @Tags 账户
// @Produce json
// @Security BearerAuth
// @Param id path int true "账户ID"
// @Param days query int false "天数" default(30)
// @Success 200 {object} Response{data=[]service.BalancePoint} "获取成功"
// @Router /api/v1/accounts/{id}/balance-history [get]
func (h *AccountHandler) BalanceHistory(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	if days > 366 {
		days = 366
	}
	points, err := h.accounts.BalanceHistory(c.Request.Context(), middleware.GetCurrentUserID(c), id, days)
	if err != nil {
		respondError(c, err, "查询余额走势失败")
		return
	}
	Success(c, points)
}
