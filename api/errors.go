package api

import (
	"errors"
	"net/http"

	"wallet/service"

	"github.com/gin-gonic/gin"
)

// ValidationResponse 参数校验失败时的响应，fields 为字段到错误信息的映射
type ValidationResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

// ReportErrorResponse 报表接口的错误响应
type ReportErrorResponse struct {
	Error string `json:"error"`
}

// statusOf 业务错误对应的 HTTP 状态码
func statusOf(err error) int {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrUserLocked):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondError 将业务错误写成统一响应，fallback 为 500 时对外的提示
func respondError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, ValidationResponse{
			Code:    http.StatusBadRequest,
			Message: verr.Error(),
			Fields:  verr.Fields,
		})
		return
	}

	status := statusOf(err)
	switch status {
	case http.StatusInternalServerError:
		InternalError(c, SafeErrorMessage(err, fallback))
	case http.StatusNotFound:
		if errors.Is(err, service.ErrNoData) {
			NotFound(c, err.Error())
			return
		}
		NotFound(c, "记录不存在")
	default:
		Error(c, status, err.Error())
	}
}

// respondReportError 报表下载接口只返回 {error}
func respondReportError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = SafeErrorMessage(err, "生成报表失败")
	}
	c.JSON(status, ReportErrorResponse{Error: msg})
}
