package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traveldiary/server/internal/testutil"
)

type recorder struct {
	mu    sync.Mutex
	items []delivered
}

type delivered struct {
	room    string
	payload gatewayPayload
}

func (r *recorder) emit(room string, payload gatewayPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, delivered{room: room, payload: payload})
}

func (r *recorder) snapshot() []delivered {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivered(nil), r.items...)
}

func startHub(t *testing.T, h *Hub) *recorder {
	t.Helper()
	rec := &recorder{}
	h.emit = rec.emit
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	select {
	case <-h.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("hub not ready")
	}
	return rec
}

func TestHub_FanOutAcrossInstances(t *testing.T) {
	rc, _ := testutil.NewRedis(t)
	a := NewHub(rc, nil, nil)
	b := NewHub(rc, nil, nil)
	recA := startHub(t, a)
	recB := startHub(t, b)

	a.Broadcast(EventDiaryCreate, map[string]string{"id": "d1"})

	require.Eventually(t, func() bool { return len(recB.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	got := recB.snapshot()[0]
	assert.Equal(t, "", got.room)
	assert.Equal(t, EventDiaryCreate, got.payload.Type)
	assert.Equal(t, map[string]interface{}{"id": "d1"}, got.payload.Data)

	// the origin instance delivers exactly once
	time.Sleep(50 * time.Millisecond)
	require.Len(t, recA.snapshot(), 1)
	assert.Equal(t, map[string]string{"id": "d1"}, recA.snapshot()[0].payload.Data)
}

func TestHub_UserRoom(t *testing.T) {
	h := NewHub(nil, nil, nil)
	rec := startHub(t, h)

	h.BroadcastUser("u-1", EventDiaryUpdate, "x")
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "user:u-1", rec.snapshot()[0].room)
}

func TestHub_ClientCounts(t *testing.T) {
	h := NewHub(nil, nil, nil)
	startHub(t, h)

	h.register <- clientMeta{sid: "s1"}
	h.register <- clientMeta{sid: "s2", userID: "u-1"}
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, h.AuthenticatedCount())

	h.unregister <- clientMeta{sid: "s2"}
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, h.AuthenticatedCount())
}

func TestStatsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHub(nil, nil, nil)
	r := gin.New()
	RegisterRoutes(r, r.Group("/api"), h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/gateway/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"online":0,"authenticated":0}`, w.Body.String())
}

func TestFirstValueFromMultiMap(t *testing.T) {
	m := map[string][]string{"Authorization": {" Bearer abc "}, "empty": {}}
	assert.Equal(t, "Bearer abc", firstValueFromMultiMap(m, "authorization"))
	assert.Equal(t, "", firstValueFromMultiMap(m, "empty"))
	assert.Equal(t, "", firstValueFromMultiMap(nil, "token"))
}
