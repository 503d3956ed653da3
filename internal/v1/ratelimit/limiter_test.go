package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamnest/chatd/internal/v1/config"
)

func testConfig() *config.Config {
	return &config.Config{
		RateLimitAPIGlobal:   "10-M", // 10 per minute
		RateLimitAPIMessages: "5-M",
		RateLimitWsIP:        "5-M",
	}
}

func newTestLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rc := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	rl, err := New(testConfig(), rc)
	require.NoError(t, err)

	return rl, mr
}

func TestNew_MemoryFallback(t *testing.T) {
	rl, err := New(testConfig(), nil)

	assert.NoError(t, err)
	assert.NotNil(t, rl)
}

func TestNew_InvalidRateFormat(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitAPIGlobal = "lots"

	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestAPIMiddleware_EnforcesLimit(t *testing.T) {
	rl, mr := newTestLimiter(t)
	defer mr.Close()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(rl.APIMiddleware())
	r.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// Make 10 requests (limit is 10)
	for i := 0; i < 10; i++ {
		req, _ := http.NewRequest("GET", "/test", nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "10", resp.Header().Get("X-RateLimit-Limit"))
	}

	// 11th request should fail
	req, _ := http.NewRequest("GET", "/test", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
}

func TestMessagesMiddleware_TighterLimit(t *testing.T) {
	rl, mr := newTestLimiter(t)
	defer mr.Close()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/messages", rl.MessagesMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 5; i++ {
		req, _ := http.NewRequest("POST", "/messages", nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusOK, resp.Code)
	}

	req, _ := http.NewRequest("POST", "/messages", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
}

func TestCheckWebSocket_IP(t *testing.T) {
	rl, mr := newTestLimiter(t)
	defer mr.Close()

	gin.SetMode(gin.TestMode)

	// Consume 5
	for i := 0; i < 5; i++ {
		ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
		ctx.Request, _ = http.NewRequest("GET", "/ws", nil)
		assert.True(t, rl.CheckWebSocket(ctx))
	}

	// 6th should fail with the response already written
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	ctx.Request, _ = http.NewRequest("GET", "/ws", nil)
	assert.False(t, rl.CheckWebSocket(ctx))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRedisFailure_FailsOpen(t *testing.T) {
	rl, mr := newTestLimiter(t)

	// Kill redis to simulate failure
	mr.Close()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(rl.APIMiddleware())
	r.GET("/fail-open", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req, _ := http.NewRequest("GET", "/fail-open", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
}
