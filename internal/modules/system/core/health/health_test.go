package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traveldiary/server/internal/middleware"
	"github.com/traveldiary/server/internal/pkg/cron"
	"github.com/traveldiary/server/internal/pkg/jwt"
	"github.com/traveldiary/server/internal/testutil"
)

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRoutes(t *testing.T) {
	db := testutil.NewDB(t)
	rc, mr := testutil.NewRedis(t)

	r := gin.New()
	RegisterRoutes(r.Group("/api"), db, rc, cron.New(nil), Info{Name: "traveldiary", Version: "test", Env: "test", StartedAt: time.Now()}, middleware.Auth())

	w := get(r, "/api/ping")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":"pong"}`, w.Body.String())

	w = get(r, "/api")
	require.Equal(t, http.StatusOK, w.Code)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "traveldiary", info["name"])

	w = get(r, "/api/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","database":"up","redis":"up"}`, w.Body.String())

	mr.Close()
	w = get(r, "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","database":"up","redis":"down"}`, w.Body.String())
}

func TestHealth_NoRedis(t *testing.T) {
	r := gin.New()
	RegisterRoutes(r.Group("/api"), testutil.NewDB(t), nil, cron.New(nil), Info{StartedAt: time.Now()}, middleware.Auth())
	w := get(r, "/api/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","database":"up","redis":"disabled"}`, w.Body.String())
}

func TestCronRoutes(t *testing.T) {
	jwt.SetSecret("health-test-secret")
	sched := cron.New(nil)
	ran := make(chan struct{}, 1)
	sched.Register(cron.Job{Name: "reconcile_likes", Interval: time.Hour, Fn: func(context.Context) error {
		ran <- struct{}{}
		return nil
	}})

	r := gin.New()
	RegisterRoutes(r.Group("/api"), testutil.NewDB(t), nil, sched, Info{StartedAt: time.Now()}, middleware.Auth())

	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/health/cron").Code)

	tok, err := jwt.Sign("u-1", time.Hour)
	require.NoError(t, err)
	send := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := send(http.MethodGet, "/api/health/cron")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"reconcile_likes"`)

	assert.Equal(t, http.StatusNotFound, send(http.MethodPost, "/api/health/cron/run/nope").Code)
	require.Equal(t, http.StatusOK, send(http.MethodPost, "/api/health/cron/run/reconcile_likes").Code)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job not triggered")
	}
}
