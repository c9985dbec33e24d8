package api

import (
	"fmt"
	"net/http"

	"wallet/middleware"
	"wallet/models"
	"wallet/service"

	"github.com/gin-gonic/gin"
)

// ReportHandler 报表与报表模板
type ReportHandler struct {
	reports   *service.ReportGenerator
	templates *service.TemplateService
}

// NewReportHandler 创建报表处理器
func NewReportHandler(reports *service.ReportGenerator, templates *service.TemplateService) *ReportHandler {
	return &ReportHandler{reports: reports, templates: templates}
}

// GenerateReportRequest 生成报表请求，指定 template_id 时使用模板中的筛选条件
type GenerateReportRequest struct {
	models.ReportFilterSet
	TemplateID uint `json:"template_id"`
}

// TemplateRequest 报表模板请求
type TemplateRequest struct {
	Name        string                 `json:"name" binding:"required,max=100" example:"月度餐饮"`
	Description string                 `json:"description" binding:"max=255"`
	Filters     models.ReportFilterSet `json:"filters"`
	IsDefault   bool                   `json:"is_default"`
}

// reportFilters 将保存的筛选条件转换为报表参数
func reportFilters(set models.ReportFilterSet) (service.ReportFilters, error) {
	f := service.ReportFilters{
		AccountIDs:  set.AccountIDs,
		CategoryIDs: set.CategoryIDs,
		Type:        models.TransactionType(set.Type),
		Format:      service.ReportFormat(set.Format),
	}
	if f.Type != "" && !f.Type.Valid() {
		return f, service.NewValidationError("type", "类型必须为 income 或 expense")
	}
	var err error
	if f.StartDate, err = parseDate("start_date", set.StartDate); err != nil {
		return f, err
	}
	if f.EndDate, err = parseDate("end_date", set.EndDate); err != nil {
		return f, err
	}
	return f, nil
}

// Generate 生成报表文件
// @Summary 生成报表
// @Description 导出单个账户的 xlsx 或 pdf 报表，无数据时返回 404
// @Tags 报表
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,application/pdf,json
// @Security BearerAuth
// @Param request body GenerateReportRequest true "筛选条件"
// @Success 200 {file} file "报表文件"
// @Failure 400 {object} ReportErrorResponse "请求参数错误"
// @Failure 404 {object} ReportErrorResponse "没有符合条件的数据"
// @Failure 500 {object} ReportErrorResponse "生成失败"
// @Router /api/v1/reports/generate [post]
func (h *ReportHandler) Generate(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ReportErrorResponse{Error: SafeErrorMessage(err, "参数错误")})
		return
	}

	set := req.ReportFilterSet
	if req.TemplateID != 0 {
		tpl, err := h.templates.Get(c.Request.Context(), userID, req.TemplateID)
		if err != nil {
			respondReportError(c, err)
			return
		}
		set = tpl.Filters
		if req.Format != "" {
			set.Format = req.Format
		}
	}

	filters, err := reportFilters(set)
	if err != nil {
		respondReportError(c, err)
		return
	}
	file, err := h.reports.Export(c.Request.Context(), userID, filters)
	if err != nil {
		respondReportError(c, err)
		return
	}
	if req.TemplateID != 0 {
		if err := h.templates.MarkUsed(c.Request.Context(), userID, req.TemplateID); err != nil {
			_ = c.Error(err)
		}
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", file.Filename))
	c.Header("Content-Length", fmt.Sprintf("%d", len(file.Data)))
	c.Data(http.StatusOK, file.MimeType, file.Data)
}

// Preview 报表预览
// @Summary 报表预览
// @Description 汇总全部匹配记录，只返回前若干条明细
// @Tags 报表
// @Produce json
// @Security BearerAuth
// @Param start_date query string false "开始日期"
// @Param end_date query string false "结束日期"
// @Param account_ids query string false "账户ID，逗号分隔"
// @Param category_ids query string false "分类ID，逗号分隔"
// @Param type query string false "income 或 expense"
// @Success 200 {object} Response{data=service.ReportPreview} "获取成功"
// @Failure 404 {object} Response "没有符合条件的数据"
// @Router /api/v1/reports/preview [get]
func (h *ReportHandler) Preview(c *gin.Context) {
	set := models.ReportFilterSet{
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		Type:      c.Query("type"),
	}
	var err error
	if set.AccountIDs, err = parseIDList("account_ids", c.QueryArray("account_ids")); err != nil {
		respondError(c, err, "参数错误")
		return
	}
	if set.CategoryIDs, err = parseIDList("category_ids", c.QueryArray("category_ids")); err != nil {
		respondError(c, err, "参数错误")
		return
	}
	filters, err := reportFilters(set)
	if err != nil {
		respondError(c, err, "参数错误")
		return
	}

	p, err := h.reports.Preview(c.Request.Context(), middleware.GetCurrentUserID(c), filters)
	if err != nil {
		respondError(c, err, "生成预览失败")
		return
	}
	Success(c, p)
}

// ListTemplates 报表模板列表
// @Summary 报表模板列表
// @Tags 报表
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]models.ReportTemplate} "获取成功"
// @Router /api/v1/reports/templates [get]
func (h *ReportHandler) ListTemplates(c *gin.Context) {
	list, err := h.templates.List(c.Request.Context(), middleware.GetCurrentUserID(c))
	if err != nil {
		respondError(c, err, "查询报表模板失败")
		return
	}
	Success(c, list)
}

// GetTemplate 报表模板详情
// @Summary 报表模板详情
// @Tags 报表
// @Produce json
// @Security BearerAuth
// @Param id path int true "模板ID"
// @Success 200 {object} Response{data=models.ReportTemplate} "获取成功"
// @Router /api/v1/reports/templates/{id} [get]
func (h *ReportHandler) GetTemplate(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	t, err := h.templates.Get(c.Request.Context(), middleware.GetCurrentUserID(c), id)
	if err != nil {
		respondError(c, err, "查询报表模板失败")
		return
	}
	Success(c, t)
}

// CreateTemplate 创建报表模板
// @Summary 创建报表模板
// @Tags 报表
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TemplateRequest true "模板信息"
// @Success 200 {object} Response{data=models.ReportTemplate} "创建成功"
// @Router /api/v1/reports/templates [post]
func (h *ReportHandler) CreateTemplate(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	t, err := h.templates.Create(c.Request.Context(), middleware.GetCurrentUserID(c), templateInput(req))
	if err != nil {
		respondError(c, err, "创建报表模板失败")
		return
	}
	SuccessWithMessage(c, "创建成功", t)
}

// UpdateTemplate 更新报表模板
// @Summary 更新报表模板
// @Tags 报表
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "模板ID"
// @Param request body TemplateRequest true "模板信息"
// @Success 200 {object} Response{data=models.ReportTemplate} "更新成功"
// @Router /api/v1/reports/templates/{id} [put]
func (h *ReportHandler) UpdateTemplate(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	t, err := h.templates.Update(c.Request.Context(), middleware.GetCurrentUserID(c), id, templateInput(req))
	if err != nil {
		respondError(c, err, "更新报表模板失败")
		return
	}
	SuccessWithMessage(c, "更新成功", t)
}

// SetDefaultTemplate 设为默认模板
// @Summary 设为默认报表模板
// @Tags 报表
// @Produce json
// @Security BearerAuth
// @Param id path int true "模板ID"
// @Success 200 {object} Response{data=models.ReportTemplate} "设置成功"
// @Router /api/v1/reports/templates/{id}/default [put]
func (h *ReportHandler) SetDefaultTemplate(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	t, err := h.templates.SetDefault(c.Request.Context(), middleware.GetCurrentUserID(c), id)
	if err != nil {
		respondError(c, err, "设置默认模板失败")
		return
	}
	SuccessWithMessage(c, "设置成功", t)
}

// DeleteTemplate 删除报表模板
// @Summary 删除报表模板
// @Tags 报表
// @Produce json
// @Security BearerAuth
// @Param id path int true "模板ID"
// @Success 200 {object} Response "删除成功"
// @Router /api/v1/reports/templates/{id} [delete]
func (h *ReportHandler) DeleteTemplate(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.templates.Delete(c.Request.Context(), middleware.GetCurrentUserID(c), id); err != nil {
		respondError(c, err, "删除报表模板失败")
		return
	}
	SuccessWithMessage(c, "删除成功", nil)
}

func templateInput(req TemplateRequest) service.TemplateInput {
	return service.TemplateInput{
		Name:        req.Name,
		Description: req.Description,
		Filters:     req.Filters,
		IsDefault:   req.IsDefault,
	}
}
