package middleware

import (
	"log/slog"
	"time"

	"wallet/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader 请求 ID 响应头
const RequestIDHeader = "X-Request-ID"

// RequestLogger 为每个请求分配 request_id 并在结束时记录访问日志
// 客户端传入的 X-Request-ID 会被沿用
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Component(logger.ComponentHTTP)
	}
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(logger.FieldRequestID, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			logger.FieldRequestID, requestID,
			logger.FieldMethod, c.Request.Method,
			logger.FieldPath, c.Request.URL.Path,
			logger.FieldStatus, status,
			logger.FieldDuration, time.Since(start).Milliseconds(),
			logger.FieldClientIP, c.ClientIP(),
		}
		if uid := GetCurrentUserID(c); uid != 0 {
			attrs = append(attrs, logger.FieldUserID, uid)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, logger.FieldError, c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("请求失败", attrs...)
		case status >= 400:
			log.Warn("请求异常", attrs...)
		default:
			log.Info("请求完成", attrs...)
		}
	}
}

// GetRequestID 当前请求 ID
func GetRequestID(c *gin.Context) string {
	return c.GetString(logger.FieldRequestID)
}
