package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	pkgredis "github.com/traveldiary/server/internal/pkg/redis"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

// NewHub builds a hub. rc may be nil for a single-instance deployment.
// tokenValidator resolves a handshake token to a user ID.
func NewHub(rc *pkgredis.Client, logger *zap.Logger, tokenValidator func(string) (string, error)) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		id:             uuid.NewString(),
		clients:        make(map[string]string),
		broadcast:      make(chan Message, 256),
		register:       make(chan clientMeta, 256),
		unregister:     make(chan clientMeta, 256),
		ready:          make(chan struct{}),
		rc:             rc,
		logger:         logger,
		sio:            socketio.NewServer(nil, nil),
		tokenValidator: tokenValidator,
	}
	h.emit = h.emitNamespace
	h.registerNamespace()
	return h
}

// Run starts the hub loop and the Redis subscriber. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if h.rc != nil {
		go h.subscribeRedis(ctx)
	} else {
		close(h.ready)
	}

	for {
		select {
		case <-ctx.Done():
			h.sio.Close(nil)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.sid] = c.userID
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, c.sid)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.deliver(msg)
			if h.rc == nil {
				continue
			}
			msg.Origin = h.id
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Warn("gateway encode failed", zap.String("event", msg.Event), zap.Error(err))
				continue
			}
			if err := h.rc.Publish(ctx, redisChannel, string(data)); err != nil {
				h.logger.Warn("gateway publish failed", zap.String("channel", redisChannel), zap.Error(err))
			}
		}
	}
}

// Ready is closed once the hub can receive broadcasts from other instances.
func (h *Hub) Ready() <-chan struct{} { return h.ready }

// Broadcast queues an event for every connected client.
func (h *Hub) Broadcast(event string, payload interface{}) {
	h.broadcast <- Message{Event: event, Payload: payload}
}

// BroadcastUser queues an event for the sockets of one user.
func (h *Hub) BroadcastUser(userID, event string, payload interface{}) {
	h.broadcast <- Message{Event: event, Payload: payload, Room: UserRoom(userID)}
}

// ClientCount returns the number of connected sockets.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// AuthenticatedCount returns the number of sockets bound to a user.
func (h *Hub) AuthenticatedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, uid := range h.clients {
		if uid != "" {
			n++
		}
	}
	return n
}

// Handler returns the socket.io HTTP handler mounted at /socket.io.
func (h *Hub) Handler() http.Handler {
	return h.sio.ServeHandler(nil)
}
