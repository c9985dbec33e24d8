package database

import (
	"fmt"
	"log/slog"
	"strings"

	"wallet/config"
	"wallet/logger"
	"wallet/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open 按配置的驱动打开数据库连接，不修改全局 DB
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	case "sqlite", "":
		dialector = sqlite.Open(sqliteDSN(cfg.Path))
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(logger.GormLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "mysql" {
		sqlDB.SetMaxIdleConns(10)  // 最大空闲连接数
		sqlDB.SetMaxOpenConns(100) // 最大打开连接数
	} else {
		// SQLite 单写者
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// sqliteDSN 读出的时间按本地时区解析，与写入时一致
func sqliteDSN(path string) string {
	if strings.Contains(path, "_loc=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_loc=auto"
}

// Migrate 自动迁移数据库表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.Category{},
		&models.Transaction{},
		&models.Budget{},
		&models.ReportTemplate{},
	)
}

// Init 初始化全局数据库连接并迁移
func Init(cfg *config.Config) error {
	db, err := Open(cfg.Database)
	if err != nil {
		return err
	}
	if err := Migrate(db); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	DB = db

	logger.Component(logger.ComponentStorage).Info("数据库初始化成功", slog.String("driver", cfg.Database.Driver))
	return nil
}

// GetDB 获取数据库连接
func GetDB() *gorm.DB {
	return DB
}
