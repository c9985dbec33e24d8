package router

import (
	"time"

	"wallet/api"
	"wallet/config"
	_ "wallet/docs"
	"wallet/middleware"
	"wallet/service"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, svc *service.Services) *gin.Engine {
	// 设置运行模式
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(nil))

	// CORS 中间件
	r.Use(CORSMiddleware())

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查
	r.GET("/health", api.Health)

	authHandler := api.NewAuthHandler(cfg, svc.Users)
	accountHandler := api.NewAccountHandler(svc.Accounts)
	categoryHandler := api.NewCategoryHandler(svc.Categories)
	transactionHandler := api.NewTransactionHandler(svc.Ledger, svc.Importer, svc.Stats)
	budgetHandler := api.NewBudgetHandler(svc.Budgets)
	reportHandler := api.NewReportHandler(svc.Reports, svc.Templates)
	dashboardHandler := api.NewDashboardHandler(svc.Stats)

	v1 := r.Group("/api/v1")
	{
		// 认证相关路由（无需登录）
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", middleware.LoginRateLimit(10, time.Minute), authHandler.Login)
		}

		// 预设分类（无需登录）
		v1.GET("/categories/presets", categoryHandler.Presets)

		// 需要 JWT 认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth())
		{
			authorized.GET("/auth/profile", authHandler.GetProfile)
			authorized.PUT("/auth/password", authHandler.ChangePassword)
			authorized.DELETE("/auth/account", authHandler.DeleteAccount)

			authorized.GET("/dashboard", dashboardHandler.Get)

			accounts := authorized.Group("/accounts")
			{
				accounts.GET("", accountHandler.List)
				accounts.POST("", accountHandler.Create)
				accounts.GET("/:id", accountHandler.Get)
				accounts.PUT("/:id", accountHandler.Update)
				accounts.DELETE("/:id", accountHandler.Delete)
				accounts.GET("/:id/balance-history", accountHandler.BalanceHistory)
			}

			categories := authorized.Group("/categories")
			{
				categories.GET("", categoryHandler.List)
				categories.POST("", categoryHandler.Create)
				categories.GET("/:id", categoryHandler.Get)
				categories.PUT("/:id", categoryHandler.Update)
				categories.DELETE("/:id", categoryHandler.Delete)
			}

			transactions := authorized.Group("/transactions")
			{
				transactions.GET("", transactionHandler.List)
				transactions.POST("", transactionHandler.Create)
				transactions.GET("/stats", transactionHandler.Stats)
				importLimit := middleware.ImportRateLimit(30, time.Hour)
				transactions.POST("/import", importLimit, transactionHandler.ImportCSV)
				transactions.POST("/import/ofx", importLimit, transactionHandler.ImportOFX)
				transactions.GET("/:id", transactionHandler.Get)
				transactions.PUT("/:id", transactionHandler.Update)
				transactions.DELETE("/:id", transactionHandler.Delete)
			}

			budgets := authorized.Group("/budgets")
			{
				budgets.GET("", budgetHandler.List)
				budgets.POST("", budgetHandler.Create)
				budgets.GET("/active", budgetHandler.Active)
				budgets.GET("/:id", budgetHandler.Get)
				budgets.PUT("/:id", budgetHandler.Update)
				budgets.DELETE("/:id", budgetHandler.Delete)
				budgets.GET("/:id/status", budgetHandler.Status)
			}

			reports := authorized.Group("/reports")
			{
				reports.POST("/generate", reportHandler.Generate)
				reports.GET("/preview", reportHandler.Preview)
				reports.GET("/templates", reportHandler.ListTemplates)
				reports.POST("/templates", reportHandler.CreateTemplate)
				reports.GET("/templates/:id", reportHandler.GetTemplate)
				reports.PUT("/templates/:id", reportHandler.UpdateTemplate)
				reports.PUT("/templates/:id/default", reportHandler.SetDefaultTemplate)
				reports.DELETE("/templates/:id", reportHandler.DeleteTemplate)
			}
		}
	}

	return r
}

// CORSMiddleware CORS 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
