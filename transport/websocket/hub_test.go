package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/mcp-training/minecart/game/engine"
)

func newTestClient(hub *Hub, sessionID string) *Client {
	return &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan []byte, 256),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func waitForClients(t *testing.T, hub *Hub, sessionID string, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		got, err := hub.ClientCount(ctx, sessionID)
		cancel()
		if err == nil && got == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients in %s, got %d (err %v)", want, sessionID, got, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, client *Client) Message {
	t.Helper()
	select {
	case data := <-client.send:
		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		return message
	case <-time.After(time.Second):
		t.Fatal("No message received within timeout")
	}
	return Message{}
}

func newWSServer(hub *Hub) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			sessionID = "default"
		}
		hub.ServeWS(w, r, sessionID)
	}))
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.sessions == nil {
		t.Error("Hub sessions map is nil")
	}
	if hub.broadcast == nil || hub.register == nil || hub.unregister == nil || hub.counts == nil || hub.done == nil {
		t.Error("Hub channels should be initialized")
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "test-session")

	hub.registerClient(client)

	if !hub.sessions["test-session"][client] {
		t.Error("Client was not registered in session")
	}
	if len(hub.sessions["test-session"]) != 1 {
		t.Errorf("Expected 1 client in session, got %d", len(hub.sessions["test-session"]))
	}
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "test-session")

	hub.registerClient(client)
	hub.unregisterClient(client)

	if _, exists := hub.sessions["test-session"]; exists {
		t.Error("Session should have been cleaned up after last client unregistered")
	}
	if _, ok := <-client.send; ok {
		t.Error("Send channel should be closed")
	}

	// A second unregister is a no-op
	hub.unregisterClient(client)
}

func TestHubMultipleClientsInSession(t *testing.T) {
	hub := NewHub()
	sessionID := "multi-client-session"

	client1 := newTestClient(hub, sessionID)
	client2 := newTestClient(hub, sessionID)

	hub.registerClient(client1)
	hub.registerClient(client2)

	if len(hub.sessions[sessionID]) != 2 {
		t.Errorf("Expected 2 clients in session, got %d", len(hub.sessions[sessionID]))
	}

	hub.unregisterClient(client1)

	if len(hub.sessions[sessionID]) != 1 {
		t.Errorf("Expected 1 client remaining in session, got %d", len(hub.sessions[sessionID]))
	}
	if !hub.sessions[sessionID][client2] {
		t.Error("client2 should still be registered")
	}
}

func TestHubBroadcastToSession(t *testing.T) {
	hub := startHub(t)
	sessionID := "broadcast-test"

	client := newTestClient(hub, sessionID)
	other := newTestClient(hub, "other-session")
	hub.register <- client
	hub.register <- other

	state := engine.NewEngineWithDefaults().Snapshot()
	hub.BroadcastToSession(sessionID, state)

	message := receive(t, client)
	if message.SessionID != sessionID {
		t.Errorf("Expected sessionID %s, got %s", sessionID, message.SessionID)
	}
	if message.Event != EventStateUpdate {
		t.Errorf("Expected event %q, got %s", EventStateUpdate, message.Event)
	}
	if message.SimState == nil || len(message.SimState.Carts) != len(state.Carts) {
		t.Fatalf("SimState not correctly transmitted: %+v", message.SimState)
	}
	if message.SimState.Carts[0].Pos != state.Carts[0].Pos {
		t.Errorf("Expected first cart at %v, got %v", state.Carts[0].Pos, message.SimState.Carts[0].Pos)
	}

	select {
	case data := <-other.send:
		t.Errorf("Other session should not receive messages, got %s", data)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHubBroadcastCrashes(t *testing.T) {
	hub := startHub(t)
	client := newTestClient(hub, "crash-test")
	hub.register <- client

	crashes := []engine.Crash{
		{Tick: 1, Pos: engine.Position{X: 2, Y: 0}, CartIDs: []string{"cart_0", "cart_1"}},
		{Tick: 1, Pos: engine.Position{X: 2, Y: 4}, CartIDs: []string{"cart_4", "cart_5"}},
	}
	hub.BroadcastCrashes("crash-test", crashes)

	for i, want := range crashes {
		message := receive(t, client)
		if message.Event != EventCrash {
			t.Fatalf("Message %d: expected event %q, got %q", i, EventCrash, message.Event)
		}
		data, err := json.Marshal(message.Data)
		if err != nil {
			t.Fatalf("Message %d: %v", i, err)
		}
		var got engine.Crash
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Message %d: crash payload: %v", i, err)
		}
		if got.Pos != want.Pos || got.Tick != want.Tick {
			t.Errorf("Message %d: expected crash %+v, got %+v", i, want, got)
		}
	}
}

func TestHubBroadcastEvent(t *testing.T) {
	hub := NewHub()

	hub.BroadcastEvent("event-test", "custom-event", "test-data")

	select {
	case message := <-hub.broadcast:
		if message.SessionID != "event-test" {
			t.Errorf("Expected sessionID 'event-test', got %s", message.SessionID)
		}
		if message.Event != "custom-event" {
			t.Errorf("Expected event 'custom-event', got %s", message.Event)
		}
		if message.Data != "test-data" {
			t.Errorf("Expected data 'test-data', got %v", message.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("No broadcast message queued")
	}
}

func TestHubDropsWhenQueueFull(t *testing.T) {
	hub := NewHub()

	for i := 0; i < broadcastBuffer+10; i++ {
		hub.BroadcastEvent("full", "tick", i)
	}

	if len(hub.broadcast) != broadcastBuffer {
		t.Errorf("Expected %d queued messages, got %d", broadcastBuffer, len(hub.broadcast))
	}
}

func TestHubRunStopsAndClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	client := newTestClient(hub, "closing")
	hub.register <- client
	waitForClients(t, hub, "closing", 1)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if _, ok := <-client.send; ok {
		t.Error("Client send channel should be closed when the hub stops")
	}
}

func TestWebSocketUpgrade(t *testing.T) {
	hub := startHub(t)
	server := newWSServer(hub)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=ws-test"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}

	waitForClients(t, hub, "ws-test", 1)

	conn.Close()

	waitForClients(t, hub, "ws-test", 0)
}

func TestWebSocketMessageReceive(t *testing.T) {
	hub := startHub(t)
	server := newWSServer(hub)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=msg-test"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	waitForClients(t, hub, "msg-test", 1)

	sim := engine.NewEngineWithDefaults()
	if _, err := sim.Tick(); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	hub.BroadcastToSession("msg-test", sim.Snapshot())
	hub.BroadcastEvent("msg-test", EventCrash, "second")

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, messageData, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}

	var message Message
	if err := json.Unmarshal(messageData, &message); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if message.SessionID != "msg-test" {
		t.Errorf("Expected sessionID 'msg-test', got %s", message.SessionID)
	}
	if message.SimState == nil || message.SimState.Tick != 1 {
		t.Fatalf("Expected state at tick 1, got %+v", message.SimState)
	}
	if message.SimState.ConfigName != "demo" {
		t.Errorf("Expected config demo, got %s", message.SimState.ConfigName)
	}

	// Each message arrives in its own frame
	_, messageData, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read second message: %v", err)
	}
	if err := json.Unmarshal(messageData, &message); err != nil {
		t.Fatalf("Second frame is not a single JSON message: %v", err)
	}
	if message.Event != EventCrash {
		t.Errorf("Expected crash event, got %q", message.Event)
	}
}

func TestHubIgnoresSessionIDCase(t *testing.T) {
	hub := startHub(t)
	client := newTestClient(hub, "AbC1")
	hub.register <- client
	waitForClients(t, hub, "abc1", 1)

	hub.BroadcastEvent("ABC1", EventCrash, "upper")
	if message := receive(t, client); message.Data != "upper" {
		t.Errorf("Expected the event sent under another case, got %+v", message)
	}

	hub.unregister <- client
	waitForClients(t, hub, "AbC1", 0)
}

func TestServeWSAfterHubStops(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hub.Run(ctx)

	if _, err := hub.ClientCount(context.Background(), "late"); !errors.Is(err, ErrHubStopped) {
		t.Errorf("Expected ErrHubStopped, got %v", err)
	}

	served := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, "late")
		close(served)
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("ServeWS blocked after the hub stopped")
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("Expected a going-away close, got %v", err)
	}
}
