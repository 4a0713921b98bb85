package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	ginratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"story-server/internal/config"
	"story-server/internal/models"
)

// NewStore строит хранилище лимитов: в памяти процесса или в Redis.
// redisClient нужен только для store=redis.
func NewStore(cfg config.RateLimitConfig, redisClient redis.UniversalClient) (ginratelimit.Store, error) {
	switch cfg.Store {
	case "", "memory":
		return ginratelimit.InMemoryStore(&ginratelimit.InMemoryOptions{
			Rate:  cfg.Window,
			Limit: cfg.Limit,
		}), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("redis client is required for RATE_LIMIT_STORE=redis")
		}
		return ginratelimit.RedisStore(&ginratelimit.RedisOptions{
			RedisClient: redisClient.(*redis.Client),
			Rate:        cfg.Window,
			Limit:       cfg.Limit,
		}), nil
	default:
		return nil, fmt.Errorf("unknown rate limit store %q", cfg.Store)
	}
}

// Middleware ограничивает запросы по пользователю (или IP для анонимных).
func Middleware(store ginratelimit.Store, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("RateLimiter")
	return ginratelimit.RateLimiter(store, &ginratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ginratelimit.Info) {
			retryAfter := int(math.Ceil(time.Until(info.ResetTime).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			log.Warn("Rate limit exceeded",
				zap.String("key", keyFor(c)),
				zap.Time("resetTime", info.ResetTime),
				zap.String("path", c.Request.URL.Path),
			)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Code:    models.ErrCodeRateLimited,
				Message: fmt.Sprintf("%s, try again in %ds", models.ErrRateLimited.Error(), retryAfter),
			})
		},
		KeyFunc: keyFor,
	})
}

func keyFor(c *gin.Context) string {
	if uid := c.GetString(models.CtxKeyUserID); uid != "" {
		return "user:" + uid
	}
	return "ip:" + c.ClientIP()
}

// NewRedisClient подключается к Redis и проверяет соединение.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	logger.Info("Connected to Redis", zap.String("addr", cfg.Addr))
	return client, nil
}
