package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/traveldiary/server/internal/pkg/response"
)

const (
	idempotenceHeader = "x-idempotence"
	// DefaultIdempotenceTTL is how long a completed request blocks an identical replay.
	DefaultIdempotenceTTL = 60 * time.Second
)

// Idempotence rejects a repeat of an identical mutating request within ttl
// with 409. The key is the x-idempotence header when present, otherwise a hash
// of method, URL, body, user agent, client IP and token. Failed requests
// release their key.
func Idempotence(rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return idempotence(rdb, ttl, true)
}

// IdempotenceKeyed is Idempotence without the request-hash fallback: only
// requests carrying an x-idempotence header are deduplicated.
func IdempotenceKeyed(rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return idempotence(rdb, ttl, false)
}

func idempotence(rdb *redis.Client, ttl time.Duration, hashFallback bool) gin.HandlerFunc {
	if ttl <= 0 {
		ttl = DefaultIdempotenceTTL
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		key, err := resolveIdempotenceKey(c, hashFallback)
		if err != nil || key == "" {
			c.Next()
			return
		}

		redisKey := fmt.Sprintf("td:idempotence:%s", key)
		ctx := c.Request.Context()

		acquired, err := rdb.SetNX(ctx, redisKey, "0", ttl).Result()
		if err != nil {
			c.Next()
			return
		}
		if !acquired {
			msg := "Duplicate request, please wait before retrying"
			if val, getErr := rdb.Get(ctx, redisKey).Result(); getErr == nil && val == "0" {
				msg = "An identical request is already being processed"
			} else if getErr != nil && !errors.Is(getErr, redis.Nil) {
				c.Next()
				return
			}
			response.Conflict(c, msg)
			return
		}

		c.Next()

		status := c.Writer.Status()
		if status >= 200 && status < 300 {
			rdb.Set(ctx, redisKey, "1", redis.KeepTTL)
		} else {
			rdb.Del(ctx, redisKey)
		}
	}
}

// resolveIdempotenceKey returns the idempotence key for the current request.
func resolveIdempotenceKey(c *gin.Context, hashFallback bool) (string, error) {
	if hdr := c.GetHeader(idempotenceHeader); hdr != "" {
		return hdr, nil
	}
	if !hashFallback {
		return "", nil
	}

	var body []byte
	if c.Request.Body != nil {
		var err error
		body, err = io.ReadAll(c.Request.Body)
		if err != nil {
			return "", err
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	}

	raw := c.Request.Method + "|" + c.Request.URL.String() + "|" + string(body) + "|" +
		c.Request.UserAgent() + "|" + c.ClientIP() + "|" + extractToken(c)
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:]), nil
}
