package ws

import (
	"testing"

	"github.com/gorilla/websocket"

	"github.com/Harshcreator/live-attendance-system/pkg/types"
)

func registerConn(t *testing.T, registry *Registry, userID string) (*Connection, *websocket.Conn) {
	t.Helper()

	server, client := newConnPair(t)
	conn := NewConnection(server, types.Identity{UserID: userID, Role: types.RoleStudent})
	t.Cleanup(func() { _ = conn.Close() })
	if err := registry.Register(conn); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return conn, client
}

func TestRegistry_RegisterDeregisterCount(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register(nil); err != ErrNilConnection {
		t.Errorf("Expected ErrNilConnection, got %v", err)
	}
	if registry.Count() != 0 {
		t.Errorf("Expected empty registry, got %d", registry.Count())
	}

	conn, _ := registerConn(t, registry, "u1")
	if registry.Count() != 1 {
		t.Errorf("Expected 1 connection, got %d", registry.Count())
	}

	registry.Deregister(conn.ID())
	registry.Deregister(conn.ID()) // idempotent
	if registry.Count() != 0 {
		t.Errorf("Expected empty registry after deregister, got %d", registry.Count())
	}
}

func TestRegistry_BroadcastSkipsExcludedHandle(t *testing.T) {
	registry := NewRegistry()

	issuer, issuerClient := registerConn(t, registry, "u1")
	_, otherClient := registerConn(t, registry, "u2")

	registry.Broadcast(types.NewSessionEndedEvent("c1", 2), issuer.ID())

	requireEventType(t, otherClient, types.EventSessionEnded)

	// The excluded connection gets nothing; confirm by sending it a
	// follow-up and checking that arrives first.
	registry.Unicast(issuer.ID(), types.NewErrorEvent("marker"))
	event := readEvent(t, issuerClient)
	if event["type"] != types.EventError {
		t.Errorf("Excluded handle should have skipped the broadcast, got %v", event)
	}
}

func TestRegistry_BroadcastReachesAllWhenNoExclusion(t *testing.T) {
	registry := NewRegistry()

	clients := make([]*websocket.Conn, 0, 3)
	for _, id := range []string{"u1", "u2", "u3"} {
		_, client := registerConn(t, registry, id)
		clients = append(clients, client)
	}

	registry.Broadcast(types.NewSessionStartedEvent("c1", "t1"), "")

	for _, client := range clients {
		event := requireEventType(t, client, types.EventSessionStarted)
		if event["classId"] != "c1" {
			t.Errorf("Expected classId c1, got %v", event["classId"])
		}
	}
}

func TestRegistry_UnicastToUnknownHandleIsNoOp(t *testing.T) {
	registry := NewRegistry()
	registry.Unicast("nonexistent", types.NewErrorEvent("lost"))
}

func TestRegistry_BroadcastSurvivesClosedConnection(t *testing.T) {
	registry := NewRegistry()

	closed, _ := registerConn(t, registry, "u1")
	_, liveClient := registerConn(t, registry, "u2")

	_ = closed.Close()

	// Delivery to the dead link fails quietly; the live one still
	// receives the event.
	registry.Broadcast(types.NewSessionStartedEvent("c1", "t1"), "")
	requireEventType(t, liveClient, types.EventSessionStarted)
}
