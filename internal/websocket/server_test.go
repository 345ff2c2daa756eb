package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/yegors/clara/pkg/logger"
)

func startServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewServer(logger.NewNop())
	go hub.Run(ctx)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session")
		hub.HandleConnection(w, r, sessionID, &Message{Type: MessageTypeState, Data: map[string]string{"id": sessionID}})
	}))
	t.Cleanup(ts.Close)
	return hub, ts
}

func dial(t *testing.T, ts *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/?session=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestInitialMessage(t *testing.T) {
	_, ts := startServer(t)
	conn := dial(t, ts, "abc")

	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeState, msg["type"])
	require.Equal(t, map[string]any{"id": "abc"}, msg["data"])
}

func TestPublishIsScopedToSession(t *testing.T) {
	hub, ts := startServer(t)
	a := dial(t, ts, "a")
	b := dial(t, ts, "b")
	readMessage(t, a)
	readMessage(t, b)

	require.Eventually(t, func() bool {
		return hub.ClientCount("a") == 1 && hub.ClientCount("b") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish("a", &Message{Type: MessageTypeState, Data: "for a"})
	hub.Publish("b", &Message{Type: MessageTypeClose})

	require.Equal(t, "for a", readMessage(t, a)["data"])
	require.Equal(t, MessageTypeClose, readMessage(t, b)["type"])
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, ts := startServer(t)
	conn := dial(t, ts, "gone")
	readMessage(t, conn)

	require.Eventually(t, func() bool { return hub.ClientCount("gone") == 1 }, time.Second, 10*time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount("gone") == 0 }, time.Second, 10*time.Millisecond)
}

func TestCheckOrigin(t *testing.T) {
	hub := NewServer(logger.NewNop(), "http://allowed.example")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://allowed.example")
	require.True(t, hub.upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "http://evil.example")
	require.False(t, hub.upgrader.CheckOrigin(req))
}
