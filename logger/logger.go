package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"wallet/config"

	gormlogger "gorm.io/gorm/logger"
)

// 结构化日志字段名
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldUserID    = "user_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldClientIP  = "client_ip"
	FieldError     = "error"
)

// 组件名
const (
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentBudget  = "budget"
	ComponentReport  = "report"
	ComponentImport  = "import"
	ComponentNotify  = "notify"
	ComponentStorage = "storage"
)

// Init 根据配置初始化默认 logger
func Init(cfg config.LogConfig) *slog.Logger {
	l := New(os.Stdout, cfg)
	slog.SetDefault(l)
	return l
}

// New 创建写入 w 的 logger，format 为 json 时输出 JSON
func New(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// ParseLevel 未知级别按 info 处理
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component 带组件字段的 logger
func Component(name string) *slog.Logger {
	return slog.Default().With(FieldComponent, name)
}

// GormLevel 将配置中的级别映射为 gorm 日志级别
func GormLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
