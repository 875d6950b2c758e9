package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newConnPair upgrades one WebSocket connection through a throwaway
// test server and returns both ends. Cleanup closes everything.
func newConnPair(t *testing.T) (serverSide, clientSide *websocket.Conn) {
	t.Helper()

	accepted := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		accepted <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	select {
	case server := <-accepted:
		t.Cleanup(func() { _ = server.Close() })
		return server, client
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for server-side connection")
		return nil, nil
	}
}

// wsURL rewrites an httptest server URL into a ws:// dial target.
func wsURL(httpURL string, pathAndQuery ...string) string {
	url := "ws" + strings.TrimPrefix(httpURL, "http")
	for _, p := range pathAndQuery {
		url += p
	}
	return url
}

// readEvent reads the next text frame and decodes it into a generic
// map keyed by the protocol's field names.
func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline failed: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	var event map[string]interface{}
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("Failed to decode event %q: %v", data, err)
	}
	return event
}

// requireEventType reads the next frame and asserts its type field.
func requireEventType(t *testing.T, conn *websocket.Conn, wantType string) map[string]interface{} {
	t.Helper()

	event := readEvent(t, conn)
	if event["type"] != wantType {
		t.Fatalf("Expected event type %q, got %v", wantType, event)
	}
	return event
}
