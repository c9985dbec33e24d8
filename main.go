package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"wallet/config"
	"wallet/database"
	"wallet/logger"
	"wallet/middleware"
	"wallet/router"
	"wallet/service"

	"github.com/spf13/cobra"
)

// @title 个人记账 API
// @version 1.0
// @description 多账户个人记账系统 API，支持交易记录、分类标签、预算提醒、报表导出和对账单导入
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

var version = "1.0.0"

var (
	configFile string
	port       string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wallet",
		Short:         "个人记账服务",
		Long:          "wallet: 多账户个人记账服务，提供交易、预算、报表和导入接口。\n不带子命令运行时启动 HTTP 服务。",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "外部配置文件路径（可选）")
	root.Flags().StringVarP(&port, "port", "p", "", "监听端口，如: 8080 或 :8080")

	root.AddCommand(migrateCmd())
	root.AddCommand(mailTestCmd())
	root.AddCommand(versionCmd())
	return root
}

// loadConfig 加载配置并初始化日志
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	logger.Init(cfg.Log)
	return cfg, nil
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// 命令行参数覆盖端口配置
	if port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Server.Port = port
		slog.Info("命令行指定端口", "port", port)
	}

	config.PrintConfig()

	if err := database.Init(cfg); err != nil {
		return fmt.Errorf("数据库初始化失败: %w", err)
	}

	middleware.InitJWT(cfg)

	svc := service.NewServices(cfg, database.DB, service.Notifiers(cfg)...)
	defer svc.Close()

	r := router.SetupRouter(cfg, svc)

	slog.Info("记账服务已启动",
		"api", fmt.Sprintf("http://localhost%s/api/v1/", cfg.Server.Port),
		"swagger", fmt.Sprintf("http://localhost%s/swagger/index.html", cfg.Server.Port),
	)

	if err := r.Run(cfg.Server.Port); err != nil {
		return fmt.Errorf("服务器启动失败: %w", err)
	}
	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "执行数据库迁移",
		Long:  "按当前模型创建或更新数据库表结构后退出。",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("连接数据库失败: %w", err)
			}
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("数据库迁移失败: %w", err)
			}
			slog.Info("数据库迁移完成", "driver", cfg.Database.Driver)
			return nil
		},
	}
}

func mailTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mail-test <收件人>",
		Short: "发送测试邮件，检查预算提醒的 SMTP 配置",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := service.NewEmailService(&cfg.Email).SendTestEmail(args[0]); err != nil {
				return err
			}
			slog.Info("测试邮件已发送", "to", args[0])
			return nil
		},
	}
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wallet v%s\n", version)
		},
	}
}
