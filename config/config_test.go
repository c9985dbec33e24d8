package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeErrorMessage(t *testing.T) {
	fallback := "操作失败"
	testErr := errors.New("internal database error")

	// nil err 返回 fallback
	assert.Equal(t, fallback, SafeErrorMessage(nil, fallback))

	// release 模式返回 fallback，不暴露错误详情
	GlobalConfig = &Config{Server: ServerConfig{Mode: "release"}}
	defer func() { GlobalConfig = nil }()
	assert.Equal(t, fallback, SafeErrorMessage(testErr, fallback))

	// debug 模式返回 err.Error()
	GlobalConfig = &Config{Server: ServerConfig{Mode: "debug"}}
	assert.Equal(t, "internal database error", SafeErrorMessage(testErr, fallback))

	// GlobalConfig 为 nil 时返回 err.Error()（视为开发环境）
	GlobalConfig = nil
	assert.Equal(t, "internal database error", SafeErrorMessage(testErr, fallback))
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	defer func() { GlobalConfig = nil }()

	cfg, err := LoadConfig(writeConfigFile(t, "server:\n  mode: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Server.Mode)
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.True(t, cfg.Budget.DegradeOnError)
	assert.Equal(t, 10, cfg.Report.PreviewRows)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpireTime)
	assert.Same(t, cfg, GetConfig())
}

func TestLoadConfig_Presets(t *testing.T) {
	defer func() { GlobalConfig = nil }()

	cfg, err := LoadConfig(writeConfigFile(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	require.Len(t, cfg.Categories.Presets, 12)
	var food *CategoryPreset
	for i := range cfg.Categories.Presets {
		if cfg.Categories.Presets[i].Name == "Food" {
			food = &cfg.Categories.Presets[i]
		}
	}
	require.NotNil(t, food)
	assert.Equal(t, "#F56565", food.Color)
	assert.Equal(t, "utensils", food.Icon)
	assert.Contains(t, food.Tags, "Dining Out")
}

func TestLoadConfig_ExternalOverride(t *testing.T) {
	defer func() { GlobalConfig = nil }()

	path := writeConfigFile(t, `
jwt:
  expire_hours: 2
report:
  preview_rows: 25
categories:
  presets:
    - name: "Rent"
      color: "#000000"
      icon: "home"
      tags: ["Flat"]
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, 25, cfg.Report.PreviewRows)
	require.Len(t, cfg.Categories.Presets, 1)
	assert.Equal(t, []string{"Flat"}, cfg.Categories.Presets[0].Tags)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	defer func() { GlobalConfig = nil }()

	t.Setenv("WALLET_DATABASE_DRIVER", "mysql")
	t.Setenv("WALLET_BUDGET_DEGRADE_ON_ERROR", "false")

	cfg, err := LoadConfig(writeConfigFile(t, "server:\n  mode: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.False(t, cfg.Budget.DegradeOnError)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Username: "u", Password: "p", Host: "h", Port: "3306", DBName: "wallet", Charset: "utf8mb4"}
	assert.Equal(t, "u:p@tcp(h:3306)/wallet?charset=utf8mb4&parseTime=True&loc=Local", d.DSN())
}

func TestMustLoadConfig_MissingFileFallsBack(t *testing.T) {
	defer func() { GlobalConfig = nil }()

	cfg := MustLoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, ":8080", cfg.Server.Port)
}
