package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet/config"
	"wallet/database"
	"wallet/middleware"
	"wallet/models"
	"wallet/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Mode: gin.TestMode},
		JWT:    config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour},
		Budget: config.BudgetConfig{DegradeOnError: true},
		Report: config.ReportConfig{PreviewRows: 5},
		Categories: config.CategoriesConfig{Presets: []config.CategoryPreset{
			{Name: "Food", Color: "#F56565", Icon: "utensils", Tags: []string{"Snacks", "Dining Out"}},
			{Name: "Salary", Color: "#4CAF50", Icon: "money-bill-wave", Tags: []string{"Base Pay"}},
		}},
	}
}

// setupMockDB 使用 sqlmock 替换全局数据库
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := openMock(sqlDB)
	require.NoError(t, err)

	oldDB := database.DB
	database.DB = gormDB
	return gormDB, mock, func() {
		database.DB = oldDB
		sqlDB.Close()
	}
}

// setupMockDBWith 用已创建的 sqlmock 连接替换全局数据库
func setupMockDBWith(t *testing.T, sqlDB *sql.DB) func() {
	gormDB, err := openMock(sqlDB)
	require.NoError(t, err)

	oldDB := database.DB
	database.DB = gormDB
	return func() { database.DB = oldDB }
}

func openMock(sqlDB *sql.DB) (*gorm.DB, error) {
	return gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
}

// testEnv 内存 SQLite 上的完整接口
type testEnv struct {
	t      *testing.T
	cfg    *config.Config
	svc    *service.Services
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := testConfig()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	oldDB := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = oldDB
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	middleware.InitJWT(cfg)
	svc := service.NewServices(cfg, db)

	env := &testEnv{t: t, cfg: cfg, svc: svc, router: gin.New()}
	env.routes()
	return env
}

func (e *testEnv) routes() {
	auth := NewAuthHandler(e.cfg, e.svc.Users)
	accounts := NewAccountHandler(e.svc.Accounts)
	categories := NewCategoryHandler(e.svc.Categories)
	transactions := NewTransactionHandler(e.svc.Ledger, e.svc.Importer, e.svc.Stats)
	budgets := NewBudgetHandler(e.svc.Budgets)
	reports := NewReportHandler(e.svc.Reports, e.svc.Templates)
	dashboard := NewDashboardHandler(e.svc.Stats)

	e.router.GET("/health", Health)
	e.router.POST("/register", auth.Register)
	e.router.POST("/login", auth.Login)

	g := e.router.Group("/", middleware.JWTAuth())
	g.GET("/profile", auth.GetProfile)
	g.PUT("/password", auth.ChangePassword)
	g.GET("/dashboard", dashboard.Get)
	g.GET("/accounts", accounts.List)
	g.POST("/accounts", accounts.Create)
	g.GET("/accounts/:id", accounts.Get)
	g.DELETE("/accounts/:id", accounts.Delete)
	g.GET("/categories", categories.List)
	g.POST("/categories", categories.Create)
	g.DELETE("/categories/:id", categories.Delete)
	g.GET("/transactions", transactions.List)
	g.POST("/transactions", transactions.Create)
	g.PUT("/transactions/:id", transactions.Update)
	g.DELETE("/transactions/:id", transactions.Delete)
	g.POST("/transactions/import", transactions.ImportCSV)
	g.GET("/transactions/stats", transactions.Stats)
	g.POST("/budgets", budgets.Create)
	g.GET("/budgets/:id/status", budgets.Status)
	g.POST("/reports/generate", reports.Generate)
	g.GET("/reports/preview", reports.Preview)
	g.POST("/reports/templates", reports.CreateTemplate)
}

// user 注册并登录，返回 token
func (e *testEnv) user(username string) (*models.User, string) {
	e.t.Helper()
	u, err := e.svc.Users.Register(context.Background(), service.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	require.NoError(e.t, err)
	token, err := middleware.GenerateToken(u.ID, u.Username, time.Hour)
	require.NoError(e.t, err)
	return u, token
}

func (e *testEnv) category(userID uint, name string) *models.Category {
	e.t.Helper()
	c, err := e.svc.Categories.ResolveByName(context.Background(), userID, name)
	require.NoError(e.t, err)
	return c
}

func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(path, token, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(e.t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(e.t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(e.t, err)
	require.NoError(e.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02", s, time.Local)
	require.NoError(t, err)
	return d
}

func jsonBody(w *httptest.ResponseRecorder, out interface{}) error {
	return json.Unmarshal(w.Body.Bytes(), out)
}

// decode 解析统一响应，data 写入 out
func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) Response {
	t.Helper()
	var raw struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw), w.Body.String())
	if out != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, out))
	}
	return Response{Code: raw.Code, Message: raw.Message}
}
