package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestLoginRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(LoginRateLimit(2, time.Minute))
	router.POST("/login", func(c *gin.Context) {
		c.String(200, "ok")
	})

	// 同一 IP 连续 3 次，第 3 次应返回 429
	doReq := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/login", nil)
		req.RemoteAddr = ip + ":12345"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w1 := doReq("192.168.1.1")
	w2 := doReq("192.168.1.1")
	w3 := doReq("192.168.1.1")

	assert.Equal(t, 200, w1.Code)
	assert.Equal(t, 200, w2.Code)
	assert.Equal(t, http.StatusTooManyRequests, w3.Code)
	assert.Contains(t, w3.Body.String(), "频繁")
	assert.NotEmpty(t, w3.Header().Get("Retry-After"))

	// 不同 IP 互不影响
	w4 := doReq("192.168.1.2")
	w5 := doReq("192.168.1.2")
	assert.Equal(t, 200, w4.Code)
	assert.Equal(t, 200, w5.Code)
}

func TestImportRateLimit_PerUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextUserID, uint(len(c.Query("u"))))
		c.Next()
	}, ImportRateLimit(1, time.Minute))
	router.POST("/import", func(c *gin.Context) { c.String(200, "ok") })

	do := func(user string) int {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/import?u="+user, nil))
		return w.Code
	}

	assert.Equal(t, 200, do("a"))
	assert.Equal(t, http.StatusTooManyRequests, do("a"))
	assert.Equal(t, 200, do("bb"))
}

func TestSlidingWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	w := newSlidingWindow(2, time.Minute)
	w.now = func() time.Time { return now }

	ok, _ := w.allow("k")
	assert.True(t, ok)
	now = now.Add(20 * time.Second)
	ok, _ = w.allow("k")
	assert.True(t, ok)

	ok, wait := w.allow("k")
	assert.False(t, ok)
	assert.Equal(t, 40*time.Second, wait)

	// 第一条过期后放行
	now = now.Add(41 * time.Second)
	ok, _ = w.allow("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	w.sweep()
	assert.Empty(t, w.store)
}
