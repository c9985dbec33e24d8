package middleware

import (
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"wallet/logger"

	"github.com/gin-gonic/gin"
)

// slidingWindow 按 key 记录窗口内的请求时间
type slidingWindow struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	store map[string][]time.Time
}

func newSlidingWindow(max int, window time.Duration) *slidingWindow {
	return &slidingWindow{
		max:    max,
		window: window,
		now:    time.Now,
		store:  make(map[string][]time.Time),
	}
}

// allow 记录一次请求；超限时返回 false 和需要等待的时间
func (w *slidingWindow) allow(key string) (bool, time.Duration) {
	now := w.now()
	w.mu.Lock()
	defer w.mu.Unlock()

	ts := prune(w.store[key], now.Add(-w.window))
	if len(ts) >= w.max {
		w.store[key] = ts
		return false, ts[0].Add(w.window).Sub(now)
	}
	w.store[key] = append(ts, now)
	return true, 0
}

// sweep 删除窗口外的记录
func (w *slidingWindow) sweep() {
	cutoff := w.now().Add(-w.window)
	w.mu.Lock()
	defer w.mu.Unlock()
	for key, ts := range w.store {
		if ts = prune(ts, cutoff); len(ts) == 0 {
			delete(w.store, key)
		} else {
			w.store[key] = ts
		}
	}
}

func prune(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// rateLimit 按 keyFn 限流，超过 max 次返回 429 和 Retry-After
func rateLimit(name string, max int, window time.Duration, message string, keyFn func(*gin.Context) string) gin.HandlerFunc {
	limiter := newSlidingWindow(max, window)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			limiter.sweep()
		}
	}()

	log := logger.Component(logger.ComponentHTTP)
	return func(c *gin.Context) {
		key := keyFn(c)
		ok, wait := limiter.allow(key)
		if !ok {
			log.Warn("请求被限流", "limit", name, "key", key, logger.FieldPath, c.Request.URL.Path)
			c.Header("Retry-After", fmt.Sprintf("%d", int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": message,
			})
			return
		}
		c.Next()
	}
}

// LoginRateLimit 登录接口限流中间件
// 每 IP 每个窗口最多 maxAttempts 次尝试，超过则返回 429
func LoginRateLimit(maxAttempts int, window time.Duration) gin.HandlerFunc {
	return rateLimit("login", maxAttempts, window, "登录尝试过于频繁，请稍后再试", func(c *gin.Context) string {
		return c.ClientIP()
	})
}

// ImportRateLimit 导入接口限流，按当前用户计数，需放在 JWTAuth 之后
func ImportRateLimit(maxImports int, window time.Duration) gin.HandlerFunc {
	return rateLimit("import", maxImports, window, "导入过于频繁，请稍后再试", func(c *gin.Context) string {
		return fmt.Sprintf("user:%d", GetCurrentUserID(c))
	})
}
