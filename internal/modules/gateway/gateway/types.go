package gateway

import (
	"sync"

	pkgredis "github.com/traveldiary/server/internal/pkg/redis"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

const (
	namespaceWeb   = "/web"
	redisChannel   = "td:gateway:web"
	userRoomPrefix = "user:"

	EventGatewayConnect = "GATEWAY_CONNECT"
	EventDiaryCreate    = "DIARY_CREATE"
	EventDiaryUpdate    = "DIARY_UPDATE"
	EventDiaryDelete    = "DIARY_DELETE"
	EventDiaryLike      = "DIARY_LIKE"
)

// Message is the envelope used by hub broadcasts and Redis fan-out. An empty
// Room targets every client of the namespace.
type Message struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
	Room    string      `json:"room,omitempty"`
	Origin  string      `json:"origin,omitempty"`
}

type gatewayPayload struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type clientMeta struct {
	sid    string
	userID string
}

// Hub manages the socket.io namespace and cross-instance fan-out.
type Hub struct {
	id string

	mu      sync.RWMutex
	clients map[string]string

	broadcast  chan Message
	register   chan clientMeta
	unregister chan clientMeta
	ready      chan struct{}

	rc             *pkgredis.Client
	logger         *zap.Logger
	sio            *socketio.Server
	tokenValidator func(string) (string, error)

	// emit delivers a message to local clients.
	emit func(room string, payload gatewayPayload)
}

// UserRoom is the room joined by every socket authenticated as userID.
func UserRoom(userID string) string {
	return userRoomPrefix + userID
}
