package api

import (
	"io"
	"strconv"
	"strings"
	"time"

	"wallet/middleware"
	"wallet/models"
	"wallet/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// maxImportSize 导入文件上限 10MB
const maxImportSize = 10 << 20

// TransactionHandler 交易处理器
type TransactionHandler struct {
	ledger   *service.LedgerService
	importer *service.Importer
	stats    *service.StatsService
}

// NewTransactionHandler 创建交易处理器
func NewTransactionHandler(ledger *service.LedgerService, importer *service.Importer, stats *service.StatsService) *TransactionHandler {
	return &TransactionHandler{ledger: ledger, importer: importer, stats: stats}
}

// TransactionRequest 创建交易请求，date 格式 YYYY-MM-DD
type TransactionRequest struct {
	AccountID   uint                   `json:"account_id" binding:"required" example:"1"`
	CategoryID  uint                   `json:"category_id" binding:"required" example:"2"`
	Tag         string                 `json:"tag" example:"Dining Out"`
	Amount      decimal.Decimal        `json:"amount" swaggertype:"string" example:"99.99"`
	Type        models.TransactionType `json:"type" binding:"required" example:"expense"`
	Date        string                 `json:"date" binding:"required" example:"2024-01-15"`
	Description string                 `json:"description" example:"午餐"`
}

// TransactionUpdateRequest 更新交易请求，未传字段保持不变
type TransactionUpdateRequest struct {
	AccountID   *uint                   `json:"account_id"`
	CategoryID  *uint                   `json:"category_id"`
	Tag         *string                 `json:"tag"`
	Amount      *decimal.Decimal        `json:"amount" swaggertype:"string"`
	Type        *models.TransactionType `json:"type"`
	Date        *string                 `json:"date"`
	Description *string                 `json:"description"`
}

// List 交易列表
// @Summary 获取交易列表
// @Description 支持日期区间、类型、账户、分类、标签、金额区间、描述搜索和分页
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Param start_date query string false "开始日期 (2024-01-01)"
// @Param end_date query string false "结束日期 (2024-01-31)，包含当天"
// @Param type query string false "income 或 expense"
// @Param account_ids query string false "账户ID，逗号分隔"
// @Param category_ids query string false "分类ID，逗号分隔"
// @Param tag query string false "标签"
// @Param min_amount query string false "最小金额"
// @Param max_amount query string false "最大金额"
// @Param search query string false "描述关键字"
// @Success 200 {object} Response{data=PageResponse{list=[]models.Transaction}} "获取成功"
// @Router /api/v1/transactions [get]
func (h *TransactionHandler) List(c *gin.Context) {
	filter, err := transactionFilter(c)
	if err != nil {
		respondError(c, err, "参数错误")
		return
	}
	filter.Page, filter.PageSize = pageParams(c)

	list, total, err := h.ledger.List(c.Request.Context(), middleware.GetCurrentUserID(c), filter)
	if err != nil {
		respondError(c, err, "查询交易失败")
		return
	}
	Page(c, total, filter.Page, filter.PageSize, list)
}

func transactionFilter(c *gin.Context) (service.TransactionFilter, error) {
	var f service.TransactionFilter
	var err error
	if f.StartDate, err = parseDate("start_date", c.Query("start_date")); err != nil {
		return f, err
	}
	if f.EndDate, err = parseDate("end_date", c.Query("end_date")); err != nil {
		return f, err
	}
	if t := models.TransactionType(c.Query("type")); t != "" {
		if !t.Valid() {
			return f, service.NewValidationError("type", "类型必须为 income 或 expense")
		}
		f.Type = t
	}
	if f.AccountIDs, err = parseIDList("account_ids", c.QueryArray("account_ids")); err != nil {
		return f, err
	}
	if f.CategoryIDs, err = parseIDList("category_ids", c.QueryArray("category_ids")); err != nil {
		return f, err
	}
	f.Tag = strings.TrimSpace(c.Query("tag"))
	f.Search = strings.TrimSpace(c.Query("search"))
	for _, p := range []struct {
		key string
		dst **decimal.Decimal
	}{{"min_amount", &f.MinAmount}, {"max_amount", &f.MaxAmount}} {
		if v := c.Query(p.key); v != "" {
			d, err := service.ParseAmount(v)
			if err != nil {
				return f, service.NewValidationError(p.key, "金额格式错误")
			}
			*p.dst = &d
		}
	}
	return f, nil
}

// Get 交易详情
// @Summary 获取交易详情
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Param id path int true "交易ID"
// @Success 200 {object} Response{data=models.Transaction} "获取成功"
// @Failure 404 {object} Response "交易不存在"
// @Router /api/v1/transactions/{id} [get]
func (h *TransactionHandler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	t, err := h.ledger.Get(c.Request.Context(), middleware.GetCurrentUserID(c), id)
	if err != nil {
		respondError(c, err, "查询交易失败")
		return
	}
	Success(c, t)
}

// Create 记一笔
// @Summary 创建交易
// @Description 与账户余额更新在同一事务中完成，越过预算阈值时发送提醒
// @Tags 交易
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TransactionRequest true "交易信息"
// @Success 200 {object} Response{data=models.Transaction} "创建成功"
// @Failure 400 {object} ValidationResponse "请求参数错误"
// @Failure 404 {object} Response "账户不存在"
// @Router /api/v1/transactions [post]
func (h *TransactionHandler) Create(c *gin.Context) {
	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		respondError(c, err, "参数错误")
		return
	}

	t, err := h.ledger.Create(c.Request.Context(), middleware.GetCurrentUserID(c), service.TransactionInput{
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Tag:         req.Tag,
		Amount:      req.Amount,
		Type:        req.Type,
		Date:        *date,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err, "创建交易失败")
		return
	}
	SuccessWithMessage(c, "创建成功", t)
}

// Update 修改交易
// @Summary 更新交易
// @Description 先冲回旧记录对余额的影响，再按新记录入账
// @Tags 交易
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "交易ID"
// @Param request body TransactionUpdateRequest true "交易信息"
// @Success 200 {object} Response{data=models.Transaction} "更新成功"
// @Router /api/v1/transactions/{id} [put]
func (h *TransactionHandler) Update(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req TransactionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	patch := service.TransactionPatch{
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Tag:         req.Tag,
		Amount:      req.Amount,
		Type:        req.Type,
		Description: req.Description,
	}
	if req.Date != nil {
		date, err := parseDate("date", *req.Date)
		if err != nil {
			respondError(c, err, "参数错误")
			return
		}
		patch.Date = date
	}

	t, err := h.ledger.Update(c.Request.Context(), middleware.GetCurrentUserID(c), id, patch)
	if err != nil {
		respondError(c, err, "更新交易失败")
		return
	}
	SuccessWithMessage(c, "更新成功", t)
}

// Delete 删除交易
// @Summary 删除交易
// @Description 删除后账户余额恢复
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Param id path int true "交易ID"
// @Success 200 {object} Response "删除成功"
// @Router /api/v1/transactions/{id} [delete]
func (h *TransactionHandler) Delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.ledger.Delete(c.Request.Context(), middleware.GetCurrentUserID(c), id); err != nil {
		respondError(c, err, "删除交易失败")
		return
	}
	SuccessWithMessage(c, "删除成功", nil)
}

// ImportCSV 导入 CSV
// @Summary 导入 CSV 交易
// @Description 列为 amount,type,description,date,category,tag，可带表头；坏行跳过并返回行号
// @Tags 交易
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "CSV 文件"
// @Param account_id formData int true "账户ID"
// @Success 200 {object} Response{data=service.ImportResult} "导入完成"
// @Router /api/v1/transactions/import [post]
func (h *TransactionHandler) ImportCSV(c *gin.Context) {
	accountID, ok := formUint(c, "account_id")
	if !ok {
		return
	}
	file, ok := uploadedFile(c)
	if !ok {
		return
	}
	defer file.Close()

	result, err := h.importer.ImportCSV(c.Request.Context(), middleware.GetCurrentUserID(c), accountID, file)
	if err != nil {
		respondError(c, err, "导入失败")
		return
	}
	SuccessWithMessage(c, "导入完成", result)
}

// ImportOFX 导入 OFX/QFX 对账单
// @Summary 导入 OFX 对账单
// @Description 负数金额为支出，全部记入指定分类，已导入的流水号跳过
// @Tags 交易
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "OFX/QFX 文件"
// @Param account_id formData int true "账户ID"
// @Param category_id formData int true "分类ID"
// @Success 200 {object} Response{data=service.ImportResult} "导入完成"
// @Router /api/v1/transactions/import/ofx [post]
func (h *TransactionHandler) ImportOFX(c *gin.Context) {
	accountID, ok := formUint(c, "account_id")
	if !ok {
		return
	}
	categoryID, ok := formUint(c, "category_id")
	if !ok {
		return
	}
	file, ok := uploadedFile(c)
	if !ok {
		return
	}
	defer file.Close()

	result, err := h.importer.ImportOFX(c.Request.Context(), middleware.GetCurrentUserID(c), accountID, categoryID, file)
	if err != nil {
		respondError(c, err, "导入失败")
		return
	}
	SuccessWithMessage(c, "导入完成", result)
}

// Stats 收支统计
// @Summary 收支统计
// @Description 按分类/标签、日期和账户汇总，默认本月
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Param start_date query string false "开始日期"
// @Param end_date query string false "结束日期"
// @Success 200 {object} Response{data=service.Statistics} "获取成功"
// @Router /api/v1/transactions/stats [get]
func (h *TransactionHandler) Stats(c *gin.Context) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 1, -1)

	if d, err := parseDate("start_date", c.Query("start_date")); err != nil {
		respondError(c, err, "参数错误")
		return
	} else if d != nil {
		start = *d
	}
	if d, err := parseDate("end_date", c.Query("end_date")); err != nil {
		respondError(c, err, "参数错误")
		return
	} else if d != nil {
		end = *d
	}
	if end.Sub(start) > 366*24*time.Hour {
		BadRequest(c, "统计区间不能超过一年")
		return
	}

	st, err := h.stats.Statistics(c.Request.Context(), middleware.GetCurrentUserID(c), start, end)
	if err != nil {
		respondError(c, err, "统计失败")
		return
	}
	Success(c, st)
}

func formUint(c *gin.Context, key string) (uint, bool) {
	v, err := strconv.ParseUint(c.PostForm(key), 10, 64)
	if err != nil || v == 0 {
		BadRequest(c, "缺少或无效的 "+key)
		return 0, false
	}
	return uint(v), true
}

func uploadedFile(c *gin.Context) (io.ReadCloser, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "请上传文件")
		return nil, false
	}
	if fh.Size > maxImportSize {
		BadRequest(c, "文件不能超过10MB")
		return nil, false
	}
	f, err := fh.Open()
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "读取上传文件失败"))
		return nil, false
	}
	return f, true
}
