package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traveldiary/server/internal/pkg/jwt"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	jwt.SetSecret("middleware-test-secret")
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func signed(t *testing.T, userID string) string {
	t.Helper()
	tok, err := jwt.Sign(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func whoami(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"uid": CurrentUserID(c)})
}

func TestAuth(t *testing.T) {
	r := gin.New()
	r.GET("/me", Auth(), whoami)
	tok := signed(t, "u-1")

	cases := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"no token", func(*http.Request) {}, http.StatusUnauthorized},
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }, http.StatusOK},
		{"lowercase bearer", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+tok) }, http.StatusOK},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookie, Value: tok}) }, http.StatusOK},
		{"query", func(r *http.Request) { r.URL.RawQuery = "token=" + tok }, http.StatusOK},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tc.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.JSONEq(t, `{"uid":"u-1"}`, w.Body.String())
			}
		})
	}
}

func TestAuth_ExpiredToken(t *testing.T) {
	r := gin.New()
	r.GET("/me", Auth(), whoami)
	tok, err := jwt.Sign("u-1", -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Session expired")
}

func TestOptionalAuth(t *testing.T) {
	r := gin.New()
	r.GET("/me", OptionalAuth(), whoami)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"uid":""}`, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, "u-2"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `{"uid":"u-2"}`, w.Body.String())
}

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "", NormalizeToken("   "))
	assert.Equal(t, "abc", NormalizeToken("Bearer abc"))
	assert.Equal(t, "abc", NormalizeToken("  abc "))
}

func TestRateLimit(t *testing.T) {
	rdb := newRedis(t)
	r := gin.New()
	r.Use(OptionalAuth(), RateLimit(rdb, 3, time.Hour, zap.NewNop()))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, "u-3"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "authenticated requests bypass the limiter")
}

func TestIdempotence(t *testing.T) {
	rdb := newRedis(t)
	r := gin.New()
	calls := 0
	r.POST("/diary", Idempotence(rdb, time.Minute), func(c *gin.Context) {
		calls++
		c.Status(http.StatusCreated)
	})
	r.POST("/fail", Idempotence(rdb, time.Minute), func(c *gin.Context) {
		calls++
		c.Status(http.StatusBadRequest)
	})

	post := func(path, body string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
		return w.Code
	}

	assert.Equal(t, http.StatusCreated, post("/diary", `{"title":"a"}`))
	assert.Equal(t, http.StatusConflict, post("/diary", `{"title":"a"}`))
	assert.Equal(t, http.StatusCreated, post("/diary", `{"title":"b"}`))
	assert.Equal(t, 2, calls)

	assert.Equal(t, http.StatusBadRequest, post("/fail", `{}`))
	assert.Equal(t, http.StatusBadRequest, post("/fail", `{}`), "failed requests release the key")
	assert.Equal(t, 4, calls)
}

func TestIdempotence_Header(t *testing.T) {
	rdb := newRedis(t)
	r := gin.New()
	r.POST("/x", Idempotence(rdb, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(key, body string) int {
		req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body))
		req.Header.Set("x-idempotence", key)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, send("k1", "one"))
	assert.Equal(t, http.StatusConflict, send("k1", "two"))
	assert.Equal(t, http.StatusOK, send("k2", "one"))
}

func TestIdempotenceKeyed(t *testing.T) {
	rdb := newRedis(t)
	r := gin.New()
	calls := 0
	r.POST("/like", IdempotenceKeyed(rdb, time.Minute), func(c *gin.Context) {
		calls++
		c.Status(http.StatusOK)
	})

	send := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/like", nil)
		if key != "" {
			req.Header.Set("x-idempotence", key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send(""))
	assert.Equal(t, http.StatusOK, send(""), "identical requests without a key are not deduplicated")
	assert.Equal(t, http.StatusOK, send("tap-1"))
	assert.Equal(t, http.StatusConflict, send("tap-1"))
	assert.Equal(t, 3, calls)
}
