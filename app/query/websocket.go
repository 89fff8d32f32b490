package query

import (
	"context"
	"net/http"
	"time"

	"github.com/civichq/resultwatch/pkg/events"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingInterval  = 15 * time.Second
	writeDeadline = 10 * time.Second
	readDeadline  = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The dashboard is served from arbitrary hosts during the count.
		return true
	},
}

// handleWebsocket streams lifecycle events (sync start/complete, extraction
// batches) to a dashboard client until it disconnects.
func (a *App) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Error("Failed to upgrade websocket connection", zap.Error(err))
		return
	}
	defer conn.Close()

	a.Logger.Info("Websocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := a.Hub.Subscribe()
	defer a.Hub.Unsubscribe(sub)

	// Reader detects closure; clients never send meaningful frames.
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					a.Logger.Debug("Websocket read error", zap.Error(err))
				}
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		}
	}()

	greeting := events.New(events.Connected, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err := writeEvent(conn, greeting); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				a.Logger.Debug("Failed to ping websocket client", zap.Error(err))
				return
			}
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				a.Logger.Debug("Failed to write websocket event", zap.Error(err))
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev events.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteJSON(ev)
}
