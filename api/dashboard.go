package api

import (
	"wallet/database"
	"wallet/middleware"
	"wallet/service"

	"github.com/gin-gonic/gin"
)

// DashboardHandler 首页概览
type DashboardHandler struct {
	stats *service.StatsService
}

// NewDashboardHandler 创建首页处理器
func NewDashboardHandler(stats *service.StatsService) *DashboardHandler {
	return &DashboardHandler{stats: stats}
}

// Get 首页概览
// @Summary 首页概览
// @Description 账户余额合计、本月收支、最近 5 笔交易和生效中的预算
// @Tags 首页
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=service.Dashboard} "获取成功"
// @Router /api/v1/dashboard [get]
func (h *DashboardHandler) Get(c *gin.Context) {
	d, err := h.stats.Dashboard(c.Request.Context(), middleware.GetCurrentUserID(c))
	if err != nil {
		respondError(c, err, "获取首页数据失败")
		return
	}
	Success(c, d)
}

// Health 健康检查
// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} map[string]string "ok"
// @Failure 503 {object} map[string]string "数据库不可用"
// @Router /health [get]
func Health(c *gin.Context) {
	if database.DB != nil {
		if sqlDB, err := database.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(503, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(200, gin.H{"status": "ok"})
}
