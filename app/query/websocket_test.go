package query

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/civichq/resultwatch/pkg/events"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialEvents(t *testing.T, a *App) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(a.Server.Handler)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev events.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWebsocketGreetsThenStreams(t *testing.T) {
	a := testApp(t, &fakeStore{})
	conn, done := dialEvents(t, a)
	defer done()

	greeting := readEvent(t, conn)
	assert.Equal(t, events.Connected, greeting.Name)
	assert.NotEmpty(t, greeting.Fields["timestamp"])

	// Wait for the subscriber to be registered before publishing.
	require.Eventually(t, func() bool {
		return a.Hub.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	a.Hub.Publish(events.New(events.SyncComplete, map[string]any{"sync_count": float64(3)}))

	ev := readEvent(t, conn)
	assert.Equal(t, events.SyncComplete, ev.Name)
	assert.Equal(t, float64(3), ev.Fields["sync_count"])
}

func TestWebsocketUnsubscribesOnClose(t *testing.T) {
	a := testApp(t, &fakeStore{})
	conn, done := dialEvents(t, a)

	readEvent(t, conn) // greeting
	require.Eventually(t, func() bool {
		return a.Hub.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	done()

	assert.Eventually(t, func() bool {
		return a.Hub.SubscriberCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
