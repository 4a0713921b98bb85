//go:build integration

package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"story-server/internal/config"
)

func TestRedisStore_SharedAcrossRouters(t *testing.T) {
	ctx := context.Background()
	container, err := tcredis.Run(ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").
				WithOccurrence(1).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "Failed to start redis container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client, err := NewRedisClient(ctx, config.RedisConfig{Addr: host + ":" + port.Port()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.RateLimitConfig{Store: "redis", Limit: 2, Window: time.Minute}
	gin.SetMode(gin.TestMode)
	build := func() *gin.Engine {
		store, err := NewStore(cfg, client)
		require.NoError(t, err)
		r := gin.New()
		r.POST("/story/generate", Middleware(store, zap.NewNop()), func(c *gin.Context) { c.Status(http.StatusCreated) })
		return r
	}
	// два экземпляра сервиса делят один счетчик
	first, second := build(), build()

	do := func(r *gin.Engine) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/story/generate", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusCreated, do(first))
	assert.Equal(t, http.StatusCreated, do(second))
	assert.Equal(t, http.StatusTooManyRequests, do(first))
}
