package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initJWTTestConfig(t *testing.T) {
	t.Helper()
	config.GlobalConfig = &config.Config{
		Server: config.ServerConfig{Mode: "debug"},
		JWT:    config.JWTConfig{Secret: "test-jwt-secret-key"},
	}
	InitJWT(config.GlobalConfig)
	t.Cleanup(func() { config.GlobalConfig = nil })
}

func TestGenerateAndParseToken(t *testing.T) {
	initJWTTestConfig(t)

	token, err := GenerateToken(7, "alice", 24*time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "wallet", claims.Issuer)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestParseToken_Invalid(t *testing.T) {
	initJWTTestConfig(t)

	expired, err := GenerateToken(1, "old", -time.Minute)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"空字符串": "",
		"格式错误": "not.a.valid.jwt",
		"未知算法": "eyJhbGciOiJmb29iIn0.xxxx.yyyy",
		"已过期":  expired,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(token)
			assert.Error(t, err)
		})
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	initJWTTestConfig(t)

	token, err := GenerateToken(1, "user", time.Hour)
	require.NoError(t, err)

	InitJWT(&config.Config{JWT: config.JWTConfig{Secret: "another-secret"}})
	_, err = ParseToken(token)
	assert.Error(t, err)
}

func TestJWTAuth(t *testing.T) {
	initJWTTestConfig(t)
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(JWTAuth())
	router.GET("/protected", func(c *gin.Context) {
		c.String(200, "%d:%s", GetCurrentUserID(c), c.GetString("username"))
	})

	token, err := GenerateToken(42, "user42", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"无 token", "", http.StatusUnauthorized, `"code":401`},
		{"非 Bearer", "Basic xyz", http.StatusUnauthorized, `"code":401`},
		{"仅 Bearer", "Bearer ", http.StatusUnauthorized, `"code":401`},
		{"无效 token", "Bearer abc.def.ghi", http.StatusUnauthorized, "登录已过期"},
		{"有效 token", "Bearer " + token, http.StatusOK, "42:user42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestGetCurrentUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, uint(0), GetCurrentUserID(c))

	c.Set(ContextUserID, uint(99))
	assert.Equal(t, uint(99), GetCurrentUserID(c))

	c.Set(ContextUserID, "99")
	assert.Equal(t, uint(0), GetCurrentUserID(c))
}
