package gateway

import (
	"context"
	"encoding/json"

	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

func format(event string, payload interface{}) gatewayPayload {
	return gatewayPayload{Type: event, Data: payload}
}

func (h *Hub) emitNamespace(room string, payload gatewayPayload) {
	nsp := h.sio.Of(namespaceWeb, nil)
	if room == "" {
		nsp.Emit("message", payload)
		return
	}
	nsp.To(socketio.Room(room)).Emit("message", payload)
}

func (h *Hub) deliver(msg Message) {
	h.emit(msg.Room, format(msg.Event, msg.Payload))
}

// subscribeRedis delivers broadcasts published by other instances. Messages
// carrying this hub's origin were already delivered locally.
func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rc.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		h.logger.Warn("gateway subscribe failed", zap.Error(err))
		close(h.ready)
		return
	}
	close(h.ready)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return

		case redisMsg, ok := <-ch:
			if !ok {
				return
			}
			var msg Message
			if err := json.Unmarshal([]byte(redisMsg.Payload), &msg); err != nil {
				continue
			}
			if msg.Origin == h.id {
				continue
			}
			h.deliver(msg)
		}
	}
}
