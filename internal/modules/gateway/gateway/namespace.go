package gateway

import (
	"strings"

	"github.com/traveldiary/server/internal/middleware"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

func (h *Hub) registerNamespace() {
	webNS := h.sio.Of(namespaceWeb, nil)
	_ = webNS.On("connection", func(args ...any) {
		client, ok := args[0].(*socketio.Socket)
		if !ok {
			return
		}
		sid := string(client.Id())

		userID := ""
		if token := middleware.NormalizeToken(extractToken(client)); token != "" && h.tokenValidator != nil {
			if uid, err := h.tokenValidator(token); err == nil {
				userID = uid
				client.Join(socketio.Room(UserRoom(uid)))
			}
		}

		h.register <- clientMeta{sid: sid, userID: userID}
		_ = client.Emit("message", format(EventGatewayConnect, map[string]interface{}{
			"authenticated": userID != "",
		}))

		_ = client.On("disconnect", func(_ ...any) {
			h.unregister <- clientMeta{sid: sid}
		})
	})
}

func extractToken(client *socketio.Socket) string {
	handshake := client.Handshake()
	if handshake == nil {
		return ""
	}
	if token := firstValueFromMultiMap(handshake.Query, "token"); token != "" {
		return token
	}
	return firstValueFromMultiMap(handshake.Headers, "authorization")
}

func firstValueFromMultiMap(values map[string][]string, key string) string {
	for k, list := range values {
		if !strings.EqualFold(strings.TrimSpace(k), key) || len(list) == 0 {
			continue
		}
		if v := strings.TrimSpace(list[0]); v != "" {
			return v
		}
	}
	return ""
}
