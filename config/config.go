package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Email      EmailConfig      `mapstructure:"email"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Budget     BudgetConfig     `mapstructure:"budget"`
	Report     ReportConfig     `mapstructure:"report"`
	Log        LogConfig        `mapstructure:"log"`
	Categories CategoriesConfig `mapstructure:"categories"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port    string `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
	BaseURL string `mapstructure:"base_url"`
}

// DatabaseConfig 数据库配置
// Driver 为 mysql 或 sqlite，sqlite 时只使用 Path
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Charset  string `mapstructure:"charset"`
	Path     string `mapstructure:"path"`
	LogLevel string `mapstructure:"log_level"`
}

// DSN 返回 MySQL 连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.DBName, d.Charset)
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret      string        `mapstructure:"secret"`
	ExpireHours int           `mapstructure:"expire_hours"`
	ExpireTime  time.Duration `mapstructure:"-"`
}

// EmailConfig 邮件配置
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// NotifyConfig 预算提醒通道
type NotifyConfig struct {
	AMQP AMQPConfig `mapstructure:"amqp"`
}

// AMQPConfig 预算提醒事件的 RabbitMQ 配置
type AMQPConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
}

// BudgetConfig 预算计算配置
type BudgetConfig struct {
	// DegradeOnError 为 true 时，已花费金额查询失败会降级为 0 并标记 degraded
	DegradeOnError bool `mapstructure:"degrade_on_error"`
}

// ReportConfig 报表配置
type ReportConfig struct {
	PreviewRows int `mapstructure:"preview_rows"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CategoriesConfig 分类配置
type CategoriesConfig struct {
	Presets []CategoryPreset `mapstructure:"presets"`
}

// CategoryPreset 新用户注册时初始化的预设分类
type CategoryPreset struct {
	Name  string   `mapstructure:"name" json:"name"`
	Color string   `mapstructure:"color" json:"color"`
	Icon  string   `mapstructure:"icon" json:"icon"`
	Tags  []string `mapstructure:"tags" json:"tags"`
}

var (
	// GlobalConfig 全局配置实例
	GlobalConfig *Config
)

// LoadConfig 加载配置
// 优先级: 环境变量 > 外部配置文件 > 嵌入的默认配置
// configPath: 可选的外部配置文件路径
func LoadConfig(configPath string) (*Config, error) {
	// .env 只补充未设置的环境变量
	if err := godotenv.Load(); err == nil {
		slog.Debug("已加载 .env 文件")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	// 1. 首先加载嵌入的默认配置
	if err := v.ReadConfig(bytes.NewReader(DefaultConfigYAML)); err != nil {
		return nil, fmt.Errorf("读取内置配置失败: %w", err)
	}

	// 2. 尝试加载外部配置文件（可选，用于覆盖默认配置）
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.MergeInConfig(); err != nil {
			slog.Warn("无法读取指定配置文件", "path", configPath, "error", err)
		} else {
			slog.Info("已合并外部配置文件", "path", configPath)
		}
	} else {
		externalViper := viper.New()
		externalViper.SetConfigName("config")
		externalViper.SetConfigType("yaml")
		externalViper.AddConfigPath(".")
		externalViper.AddConfigPath("./config")
		externalViper.AddConfigPath("/etc/wallet")
		externalViper.AddConfigPath("$HOME/.wallet")

		if err := externalViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(externalViper.AllSettings()); err != nil {
				slog.Warn("合并外部配置失败", "error", err)
			} else {
				slog.Info("已合并外部配置文件", "path", externalViper.ConfigFileUsed())
			}
		}
	}

	// 3. 环境变量覆盖，如 WALLET_DATABASE_DRIVER
	v.SetEnvPrefix("WALLET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults()

	GlobalConfig = &cfg

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.JWT.ExpireHours <= 0 {
		c.JWT.ExpireHours = 24
	}
	c.JWT.ExpireTime = time.Duration(c.JWT.ExpireHours) * time.Hour

	if c.Report.PreviewRows <= 0 {
		c.Report.PreviewRows = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
}

// MustLoadConfig 加载配置，失败则 panic
func MustLoadConfig(configPath string) *Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("加载配置失败: %v", err))
	}
	return cfg
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	if GlobalConfig == nil {
		panic("配置未初始化，请先调用 LoadConfig")
	}
	return GlobalConfig
}

// PrintConfig 打印当前配置（隐藏敏感信息）
func PrintConfig() {
	if GlobalConfig == nil {
		return
	}
	db := GlobalConfig.Database
	target := db.Path
	if db.Driver == "mysql" {
		target = fmt.Sprintf("%s@%s:%s/%s", db.Username, db.Host, db.Port, db.DBName)
	}
	slog.Info("当前配置",
		"port", GlobalConfig.Server.Port,
		"mode", GlobalConfig.Server.Mode,
		"db_driver", db.Driver,
		"db", target,
		"email", GlobalConfig.Email.Enabled,
		"amqp", GlobalConfig.Notify.AMQP.Enabled,
		"budget_degrade", GlobalConfig.Budget.DegradeOnError,
		"presets", len(GlobalConfig.Categories.Presets),
	)
}
