package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/traveldiary/server/internal/pkg/response"
	"go.uber.org/zap"
)

// RateLimit returns a fixed-window limiter allowing max anonymous requests per
// IP per window. Authenticated requests and Redis failures pass through.
func RateLimit(rdb *redis.Client, max int, window time.Duration, log *zap.Logger) gin.HandlerFunc {
	if window <= 0 {
		window = time.Second
	}
	retryAfter := strconv.Itoa(int((window + time.Second - 1) / time.Second))

	return func(c *gin.Context) {
		if max <= 0 || IsAuthenticated(c) {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		slot := time.Now().UnixNano() / int64(window)
		key := fmt.Sprintf("td:rate_limit:%s:%d", ip, slot)

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			c.Next()
			return
		}
		if count == 1 {
			rdb.PExpire(ctx, key, window+time.Second)
		}

		if count > int64(max) {
			if count == int64(max)+1 && log != nil {
				log.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", c.Request.URL.Path))
			}
			response.TooManyRequests(c, retryAfter)
			return
		}

		c.Next()
	}
}
