package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/airsense/internal/domain/types"
	"github.com/okian/airsense/pkg/logger"
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	// Served to dashboards on the local network.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamDependencies publishes live snapshots.
type StreamDependencies interface {
	Subscribe() <-chan types.Snapshot
	Unsubscribe(ch <-chan types.Snapshot)
}

// StreamHandler pushes every new snapshot to websocket clients.
type StreamHandler struct {
	deps         StreamDependencies
	base         context.Context
	logger       logger.Logger
	writeTimeout time.Duration
	pingInterval time.Duration
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(deps StreamDependencies, l logger.Logger, writeTimeout, pingInterval time.Duration) *StreamHandler {
	return &StreamHandler{
		deps:         deps,
		base:         context.Background(),
		logger:       l,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
	}
}

// HandleStream handles GET /ws requests.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	sub := h.deps.Subscribe()
	defer h.deps.Unsubscribe(sub)

	h.logger.Debug(r.Context(), "stream client connected", logger.String("remote", r.RemoteAddr))

	// Clients only listen; reading is needed to notice a close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug(h.base, "stream client error", logger.Error(err))
				}
				return
			}
		}
	}()

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-h.base.Done():
			h.close(conn, websocket.CloseGoingAway, "shutting down")
			return
		case <-ping.C:
			deadline := time.Now().Add(h.writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case snap, ok := <-sub:
			if !ok {
				h.close(conn, websocket.CloseGoingAway, "sampling stopped")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteJSON(snap); err != nil {
				h.logger.Debug(h.base, "stream write failed", logger.Error(err))
				return
			}
		}
	}
}

func (h *StreamHandler) close(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.writeTimeout))
}
