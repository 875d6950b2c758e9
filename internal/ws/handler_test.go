package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Harshcreator/live-attendance-system/internal/auth"
	"github.com/Harshcreator/live-attendance-system/pkg/types"
)

type fakeVerifier struct {
	identity *types.Identity
	err      error
}

func (f *fakeVerifier) Verify(token string) (*types.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

type intentCall struct {
	handle string
	issuer types.Identity
	intent types.Intent
}

// fakeIntents records forwarded intents on a channel so tests can wait
// for them without polling.
type fakeIntents struct {
	calls  chan intentCall
	status types.SessionStatusEvent
}

func newFakeIntents() *fakeIntents {
	return &fakeIntents{
		calls:  make(chan intentCall, 16),
		status: types.NewIdleStatusEvent(),
	}
}

func (f *fakeIntents) HandleIntent(ctx context.Context, handle string, issuer types.Identity, intent types.Intent) {
	f.calls <- intentCall{handle: handle, issuer: issuer, intent: intent}
}

func (f *fakeIntents) StatusEvent() types.SessionStatusEvent {
	return f.status
}

func newHandlerServer(t *testing.T, verifier *fakeVerifier, intents *fakeIntents) (*httptest.Server, *Registry) {
	t.Helper()

	registry := NewRegistry()
	handler := NewHandler(registry, verifier, intents)
	srv := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(srv.Close)
	return srv, registry
}

func dialHandler(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL, query), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// requireCloseCode reads until the connection closes and asserts the
// close status code.
func requireCloseCode(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline failed: %v", err)
	}
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("Expected the connection to be closed")
	}
	if !websocket.IsCloseError(err, code) {
		t.Errorf("Expected close code %d, got %v", code, err)
	}
}

func TestHandler_RejectsMissingToken(t *testing.T) {
	srv, registry := newHandlerServer(t, &fakeVerifier{}, newFakeIntents())

	conn := dialHandler(t, srv, "")
	requireCloseCode(t, conn, CloseNoToken)
	if registry.Count() != 0 {
		t.Errorf("Rejected connection must not be registered, count=%d", registry.Count())
	}
}

func TestHandler_RejectsInvalidToken(t *testing.T) {
	verifier := &fakeVerifier{err: auth.ErrInvalidToken}
	srv, registry := newHandlerServer(t, verifier, newFakeIntents())

	conn := dialHandler(t, srv, "?token=garbage")
	requireCloseCode(t, conn, CloseInvalidToken)
	if registry.Count() != 0 {
		t.Errorf("Rejected connection must not be registered, count=%d", registry.Count())
	}
}

func TestHandler_RejectsWhenSecretMissing(t *testing.T) {
	verifier := &fakeVerifier{err: auth.ErrNoSecret}
	srv, _ := newHandlerServer(t, verifier, newFakeIntents())

	conn := dialHandler(t, srv, "?token=anything")
	requireCloseCode(t, conn, CloseMisconfigured)
}

func TestHandler_GenericVerifyErrorMapsToInvalidToken(t *testing.T) {
	verifier := &fakeVerifier{err: errors.New("key rotation in progress")}
	srv, _ := newHandlerServer(t, verifier, newFakeIntents())

	conn := dialHandler(t, srv, "?token=anything")
	requireCloseCode(t, conn, CloseInvalidToken)
}

func TestHandler_SuccessfulConnectPushesSnapshot(t *testing.T) {
	identity := types.Identity{UserID: "u1", Role: types.RoleStudent, Name: "Alan"}
	srv, _ := newHandlerServer(t, &fakeVerifier{identity: &identity}, newFakeIntents())

	conn := dialHandler(t, srv, "?token=valid")

	connected := requireEventType(t, conn, types.EventConnected)
	if connected["userId"] != "u1" || connected["role"] != types.RoleStudent {
		t.Errorf("Unexpected connected event: %v", connected)
	}

	status := requireEventType(t, conn, types.EventSessionStatus)
	if status["active"] != false {
		t.Errorf("Expected idle snapshot, got %v", status)
	}
}

func TestHandler_ForwardsDecodedIntents(t *testing.T) {
	identity := types.Identity{UserID: "t1", Role: types.RoleTeacher}
	intents := newFakeIntents()
	srv, _ := newHandlerServer(t, &fakeVerifier{identity: &identity}, intents)

	conn := dialHandler(t, srv, "?token=valid")
	requireEventType(t, conn, types.EventConnected)
	requireEventType(t, conn, types.EventSessionStatus)

	frames := []string{
		`{"type":"start_session","classId":"c1"}`,
		`this is not json`,
	}
	for _, frame := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatalf("WriteMessage failed: %v", err)
		}
	}

	first := waitForIntent(t, intents)
	if first.intent.Type != types.IntentStartSession || first.intent.ClassID != "c1" {
		t.Errorf("Unexpected intent: %+v", first.intent)
	}
	if first.issuer != identity {
		t.Errorf("Expected issuer %+v, got %+v", identity, first.issuer)
	}

	// Malformed frames arrive as unrecognized, never drop the link.
	second := waitForIntent(t, intents)
	if second.intent.Type != types.IntentUnrecognized {
		t.Errorf("Expected unrecognized intent, got %+v", second.intent)
	}
	if second.handle != first.handle {
		t.Errorf("Expected same handle, got %q and %q", first.handle, second.handle)
	}
}

func TestHandler_DeregistersOnClientDisconnect(t *testing.T) {
	identity := types.Identity{UserID: "u1", Role: types.RoleStudent}
	srv, registry := newHandlerServer(t, &fakeVerifier{identity: &identity}, newFakeIntents())

	conn := dialHandler(t, srv, "?token=valid")
	requireEventType(t, conn, types.EventConnected)
	requireEventType(t, conn, types.EventSessionStatus)

	if registry.Count() != 1 {
		t.Fatalf("Expected 1 registered connection, got %d", registry.Count())
	}

	_ = conn.Close()

	deadline := time.After(2 * time.Second)
	for registry.Count() != 0 {
		select {
		case <-deadline:
			t.Fatalf("Connection was not deregistered, count=%d", registry.Count())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func waitForIntent(t *testing.T, intents *fakeIntents) intentCall {
	t.Helper()

	select {
	case call := <-intents.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for intent")
		return intentCall{}
	}
}
