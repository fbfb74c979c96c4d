package realtime

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newWSFixture(t *testing.T) (*httptest.Server, *fakeDocumentStore) {
	t.Helper()
	store := &fakeDocumentStore{}
	registry := NewRegistry()
	presence := NewPresenceStore()
	gateway := NewGateway(store)
	router := NewRouter(registry, presence, gateway)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go gateway.Run(ctx)
	go router.Run(ctx)

	server := httptest.NewServer(NewWSHandler(router))
	t.Cleanup(server.Close)
	return server, store
}

func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

// Two editors on the same contract: the second join is announced to the
// first, cursor moves and edits flow across, and disconnecting announces the
// departure.
func TestTwoEditorsOnOneContract(t *testing.T) {
	server, store := newWSFixture(t)

	alice := dialWS(t, server)
	bob := dialWS(t, server)

	join := func(conn *websocket.Conn, userID int64) {
		t.Helper()
		if err := conn.WriteJSON(Envelope{Type: TypeJoin, UserID: userID, ContractID: 7}); err != nil {
			t.Fatalf("join: %v", err)
		}
	}

	join(alice, 1)
	// Give alice's join time to land before bob's so the notification order
	// is deterministic.
	time.Sleep(50 * time.Millisecond)
	join(bob, 2)

	env := readWS(t, alice)
	if env.Type != TypePresenceUpdate || env.Action != ActionJoined || env.UserID != 2 {
		t.Fatalf("alice expected bob's join, got %+v", env)
	}
	env = readWS(t, bob)
	if env.Type != TypePresenceUpdate || env.Action != ActionJoined || env.UserID != 1 {
		t.Fatalf("bob expected alice in the snapshot, got %+v", env)
	}

	// Bob moves his cursor.
	err := bob.WriteJSON(Envelope{Type: TypeCursorMove, Position: &Position{Line: 3, Character: 1}})
	if err != nil {
		t.Fatalf("cursor move: %v", err)
	}
	env = readWS(t, alice)
	if env.Type != TypeCursorUpdate || env.UserID != 2 || env.Position == nil || env.Position.Line != 3 {
		t.Fatalf("alice expected bob's cursor, got %+v", env)
	}

	// Alice edits; bob sees the content, the store sees the write.
	content := "revised clause four"
	err = alice.WriteJSON(Envelope{Type: TypeContentChange, Content: &content, WordCount: 3})
	if err != nil {
		t.Fatalf("content change: %v", err)
	}
	env = readWS(t, bob)
	if env.Type != TypeContentUpdate || env.UserID != 1 || env.Content == nil || *env.Content != content {
		t.Fatalf("bob expected alice's edit, got %+v", env)
	}
	applied := store.contents()
	if len(applied) != 1 || applied[0] != "7:revised clause four:3" {
		t.Fatalf("store applied %v", applied)
	}

	// Bob leaves.
	_ = bob.Close()
	env = readWS(t, alice)
	if env.Type != TypePresenceUpdate || env.Action != ActionLeft || env.UserID != 2 {
		t.Fatalf("alice expected bob's departure, got %+v", env)
	}
}

func TestWSOptionsApplyAndFallBack(t *testing.T) {
	router := NewRouter(NewRegistry(), NewPresenceStore(), NewGateway(&fakeDocumentStore{}))

	tuned := NewWSHandlerWithOptions(router, WSOptions{
		SendBuffer: 32,
		WriteWait:  3 * time.Second,
		PongWait:   20 * time.Second,
	})
	if tuned.sendBuffer != 32 || tuned.writeWait != 3*time.Second || tuned.pongWait != 20*time.Second {
		t.Fatalf("options not applied: %d %v %v", tuned.sendBuffer, tuned.writeWait, tuned.pongWait)
	}

	// Zero values mean "use the default", so partial configuration is safe.
	fallback := NewWSHandlerWithOptions(router, WSOptions{SendBuffer: 32})
	if fallback.sendBuffer != 32 {
		t.Fatalf("sendBuffer = %d, want 32", fallback.sendBuffer)
	}
	if fallback.writeWait != defaultWriteWait || fallback.pongWait != defaultPongWait {
		t.Fatalf("defaults not applied: %v %v", fallback.writeWait, fallback.pongWait)
	}

	plain := NewWSHandler(router)
	if plain.sendBuffer != defaultSendBuffer || plain.writeWait != defaultWriteWait || plain.pongWait != defaultPongWait {
		t.Fatalf("plain constructor should use defaults: %d %v %v", plain.sendBuffer, plain.writeWait, plain.pongWait)
	}
}

func TestMalformedFrameGetsErrorReply(t *testing.T) {
	server, _ := newWSFixture(t)
	conn := dialWS(t, server)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"nonsense"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	env := readWS(t, conn)
	if env.Type != TypeError || env.Message == "" {
		t.Fatalf("expected error reply, got %+v", env)
	}
}
