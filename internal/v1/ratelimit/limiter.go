// Package ratelimit implements rate limiting backed by Redis or local memory.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/streamnest/chatd/internal/v1/config"
	"github.com/streamnest/chatd/internal/v1/logging"
)

// RateLimiter holds the limiter instances for the REST groups and the
// websocket upgrade path.
type RateLimiter struct {
	apiGlobal   *limiter.Limiter
	apiMessages *limiter.Limiter
	wsIP        *limiter.Limiter
	store       limiter.Store
}

// New builds the limiters from the configured rate formats. With a nil redis
// client the store falls back to local memory.
func New(cfg *config.Config, redisClient *redis.Client) (*RateLimiter, error) {
	apiGlobalRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPIGlobal)
	if err != nil {
		return nil, fmt.Errorf("invalid API global rate: %w", err)
	}
	apiMessagesRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPIMessages)
	if err != nil {
		return nil, fmt.Errorf("invalid API messages rate: %w", err)
	}
	wsIPRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsIP)
	if err != nil {
		return nil, fmt.Errorf("invalid WS IP rate: %w", err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{
			Prefix: "limiter:v1:",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "Rate limiter using Redis store")
	} else {
		store = memory.NewStore()
		logging.Warn(context.Background(), "Rate limiter using memory store (Redis disabled or unavailable)")
	}

	return &RateLimiter{
		apiGlobal:   limiter.New(store, apiGlobalRate),
		apiMessages: limiter.New(store, apiMessagesRate),
		wsIP:        limiter.New(store, wsIPRate),
		store:       store,
	}, nil
}

// APIMiddleware enforces the global REST limit keyed by client IP.
func (rl *RateLimiter) APIMiddleware() gin.HandlerFunc {
	return rl.middleware(rl.apiGlobal, "api")
}

// MessagesMiddleware enforces the tighter limit on the chat message routes.
func (rl *RateLimiter) MessagesMiddleware() gin.HandlerFunc {
	return rl.middleware(rl.apiMessages, "api_messages")
}

func (rl *RateLimiter) middleware(l *limiter.Limiter, group string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := group + ":" + c.ClientIP()
		lctx, err := l.Get(c.Request.Context(), key)
		if err != nil {
			// Fail open: a limiter-store outage should not take the API down.
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))

		if lctx.Reached {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// CheckWebSocket enforces the per-IP upgrade limit before any resources are
// committed. Returns false with the response written when the limit is hit.
func (rl *RateLimiter) CheckWebSocket(c *gin.Context) bool {
	key := "ws:" + c.ClientIP()
	lctx, err := rl.wsIP.Get(c.Request.Context(), key)
	if err != nil {
		return true // fail open
	}
	if lctx.Reached {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return false
	}
	return true
}
