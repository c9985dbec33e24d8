package api

import (
	"errors"
	"net/http"
	"testing"

	"wallet/config"
	"wallet/database"
	"wallet/models"
	"wallet/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_Register(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/register", "", gin.H{
		"username": "newuser",
		"password": "password123",
		"email":    "New@Example.com",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var user models.User
	resp := decode(t, w, &user)
	assert.Equal(t, 200, resp.Code)
	assert.Equal(t, "注册成功", resp.Message)
	assert.Equal(t, "newuser", user.Username)
	assert.Equal(t, "new@example.com", user.Email)
	assert.NotContains(t, w.Body.String(), "password123")

	cats, err := env.svc.Categories.List(t.Context(), user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, cats)
}

func TestAuthHandler_Register_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	env.user("alice")

	w := env.do(http.MethodPost, "/register", "", gin.H{
		"username": "alice",
		"password": "password123",
		"email":    "other@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ValidationResponse
	require.NoError(t, jsonBody(w, &resp))
	assert.Equal(t, "用户名已存在", resp.Fields["username"])
}

func TestAuthHandler_Register_BadRequest(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/register", "", gin.H{"username": "ab", "password": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_Login(t *testing.T) {
	env := newTestEnv(t)
	env.user("alice")

	tests := []struct {
		name     string
		login    string
		password string
		status   int
	}{
		{"用户名登录", "alice", "password123", http.StatusOK},
		{"邮箱登录", "ALICE@example.com", "password123", http.StatusOK},
		{"密码错误", "alice", "wrong-password", http.StatusUnauthorized},
		{"用户不存在", "bob", "password123", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/login", "", gin.H{"username": tt.login, "password": tt.password})
			assert.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				return
			}
			var out LoginResponse
			decode(t, w, &out)
			assert.NotEmpty(t, out.Token)
			assert.Equal(t, "alice", out.UserInfo.Username)
		})
	}
}

func TestAuthHandler_Login_Locked(t *testing.T) {
	env := newTestEnv(t)
	u, _ := env.user("alice")
	require.NoError(t, database.DB.Model(&models.User{}).Where("id = ?", u.ID).Update("status", models.UserStatusLocked).Error)

	w := env.do(http.MethodPost, "/login", "", gin.H{"username": "alice", "password": "password123"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthHandler_Login_DatabaseError(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	cfg := testConfig()
	cfg.Server.Mode = "release"
	config.GlobalConfig = cfg
	defer func() { config.GlobalConfig = nil }()

	mock.ExpectQuery("SELECT .* FROM `users`").
		WillReturnError(errors.New("dial tcp 10.0.0.5:3306: connection refused"))

	router := gin.New()
	h := NewAuthHandler(cfg, service.NewUserService(db, nil))
	router.POST("/login", h.Login)

	env := &testEnv{t: t, router: router}
	w := env.do(http.MethodPost, "/login", "", gin.H{"username": "alice", "password": "password123"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode(t, w, nil)
	assert.Equal(t, "登录失败", resp.Message)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Profile(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user("alice")

	w := env.do(http.MethodGet, "/profile", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var user models.User
	decode(t, w, &user)
	assert.Equal(t, "alice", user.Username)

	w = env.do(http.MethodGet, "/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/profile", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user("alice")

	w := env.do(http.MethodPut, "/password", token, gin.H{"old_password": "nope", "new_password": "newpassword"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var verr ValidationResponse
	require.NoError(t, jsonBody(w, &verr))
	assert.Contains(t, verr.Fields, "old_password")

	w = env.do(http.MethodPut, "/password", token, gin.H{"old_password": "password123", "new_password": "newpassword"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/login", "", gin.H{"username": "alice", "password": "newpassword"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("database down", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer sqlDB.Close()
		// gorm.Open 时的连接检查
		mock.ExpectPing()
		cleanup := setupMockDBWith(t, sqlDB)
		defer cleanup()

		mock.ExpectPing().WillReturnError(errors.New("gone"))

		router := gin.New()
		router.GET("/health", Health)
		env := &testEnv{t: t, router: router}
		w := env.do(http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
