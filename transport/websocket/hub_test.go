package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/gridpath/nav/engine"
	"github.com/wricardo/gridpath/nav/pathfinding"
	"github.com/wricardo/gridpath/nav/service"
)

// Hub is the service's event sink
var _ service.Notifier = (*Hub)(nil)

func newTestClient(hub *Hub, sessionID string) *Client {
	return &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan []byte, 256),
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
	case <-time.After(100 * time.Millisecond):
		t.Fatal("No message received within timeout")
	}
	return Message{}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)

	if hub.sessions == nil {
		t.Error("Hub sessions map is nil")
	}
	if cap(hub.broadcast) != engine.WebSocketBufferSize {
		t.Errorf("Expected broadcast buffer of %d, got %d", engine.WebSocketBufferSize, cap(hub.broadcast))
	}
	if hub.register == nil || hub.unregister == nil {
		t.Error("Hub registration channels are nil")
	}
	select {
	case <-hub.Done():
		t.Error("Hub reports done before Run")
	default:
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, "test-session")

	hub.registerClient(client)

	if !hub.sessions["test-session"][client] {
		t.Error("Client was not registered in session")
	}
	if hub.ClientCount("test-session") != 1 {
		t.Errorf("Expected 1 client in session, got %d", hub.ClientCount("test-session"))
	}
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, "test-session")

	hub.registerClient(client)
	hub.unregisterClient(client)
	// A second unregister is a no-op
	hub.unregisterClient(client)

	if _, exists := hub.sessions["test-session"]; exists {
		t.Error("Session should have been cleaned up after last client unregistered")
	}
	if _, ok := <-client.send; ok {
		t.Error("Client send channel should be closed")
	}
}

func TestHubMultipleClientsInSession(t *testing.T) {
	hub := NewHub(nil)
	sessionID := "multi-client-session"

	client1 := newTestClient(hub, sessionID)
	client2 := newTestClient(hub, sessionID)
	other := newTestClient(hub, "other")

	hub.registerClient(client1)
	hub.registerClient(client2)
	hub.registerClient(other)

	if hub.ClientCount(sessionID) != 2 {
		t.Errorf("Expected 2 clients in session, got %d", hub.ClientCount(sessionID))
	}

	hub.broadcastMessage(&Message{SessionID: sessionID, Event: EventCellChanged})
	receive(t, client1)
	receive(t, client2)
	if len(other.send) != 0 {
		t.Error("Client of another session received the message")
	}

	hub.unregisterClient(client1)
	if !hub.sessions[sessionID][client2] {
		t.Error("client2 should still be registered")
	}
}

func TestHubSlowClientDropped(t *testing.T) {
	hub := NewHub(nil)
	slow := &Client{hub: hub, sessionID: "slow", send: make(chan []byte)}
	hub.registerClient(slow)

	hub.broadcastMessage(&Message{SessionID: "slow", Event: EventStateUpdate})

	if hub.ClientCount("slow") != 0 {
		t.Error("Slow client should have been dropped")
	}
}

func TestHubNotifierEvents(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newTestClient(hub, "events")
	hub.registerClient(client)
	go hub.Run(ctx)

	hub.CellChanged("events", engine.CellChange{X: 2, Y: 3, Walkable: false})
	msg := receive(t, client)
	if msg.Event != EventCellChanged || msg.SessionID != "events" {
		t.Fatalf("Unexpected message %+v", msg)
	}
	data := msg.Data.(map[string]interface{})
	if data["x"] != 2.0 || data["y"] != 3.0 || data["walkable"] != false {
		t.Errorf("Unexpected cell payload %v", data)
	}

	hub.SearchStep("events", pathfinding.Snapshot{Step: 4, Width: 1, Height: 1})
	msg = receive(t, client)
	if msg.Event != EventSearchStep || msg.Data.(map[string]interface{})["step"] != 4.0 {
		t.Errorf("Unexpected search step message %+v", msg)
	}

	hub.PathFound("events", &engine.QueryResult{
		ID:        "q1",
		Found:     true,
		Outcome:   engine.OutcomeFound,
		Cost:      28,
		Snapshots: []pathfinding.Snapshot{{Step: 0}},
	})
	msg = receive(t, client)
	payload := msg.Data.(map[string]interface{})
	if msg.Event != EventPathFound || payload["cost"] != 28.0 || payload["outcome"] != "found" {
		t.Errorf("Unexpected path message %+v", msg)
	}
	if _, hasTrace := payload["snapshots"]; hasTrace {
		t.Error("path_found should not carry the search trace")
	}

	hub.StateChanged("events", &engine.MapState{MapName: "Maze", Width: 3})
	msg = receive(t, client)
	if msg.Event != EventStateUpdate || msg.State == nil || msg.State.MapName != "Maze" {
		t.Errorf("Unexpected state message %+v", msg)
	}
}

func TestHubPublishDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)

	done := make(chan struct{})
	go func() {
		// Nothing drains the queue
		for i := 0; i < engine.WebSocketBufferSize+10; i++ {
			hub.BroadcastEvent("s", "custom", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BroadcastEvent blocked on a full queue")
	}
	if len(hub.broadcast) != engine.WebSocketBufferSize {
		t.Errorf("Expected a full queue, got %d", len(hub.broadcast))
	}
}

func TestHubRunStopsOnCancel(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, "bye")
	hub.registerClient(client)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if hub.ClientCount("bye") != 0 {
		t.Error("Clients should be closed on shutdown")
	}
}

func TestWebSocketMessageReceive(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"))
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=msg-test"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount("msg-test") != 1 {
		if time.Now().After(deadline) {
			t.Fatal("Client was not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.BroadcastToSession("msg-test", &engine.MapState{MapName: "Open Field", Width: 10, Height: 10})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}

	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if message.SessionID != "msg-test" || message.Event != EventStateUpdate {
		t.Errorf("Unexpected message %+v", message)
	}
	if message.State == nil || message.State.Width != 10 || message.State.MapName != "Open Field" {
		t.Error("MapState not correctly received")
	}

	conn.Close()
	deadline = time.Now().Add(time.Second)
	for hub.ClientCount("msg-test") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Client was not unregistered after close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// readPumps counts goroutines currently inside a client's read loop or its cleanup
func readPumps() int {
	buf := make([]byte, 1<<20)
	buf = buf[:runtime.Stack(buf, true)]
	n := 0
	for _, g := range strings.Split(string(buf), "\n\n") {
		if strings.Contains(g, "(*Client).readPump") {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubShutdownReleasesConnectedClients(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, "shutdown")
	}))
	defer server.Close()

	before := readPumps()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()
	waitFor(t, "Client was not registered", func() bool { return hub.ClientCount("shutdown") == 1 })

	cancel()
	<-hub.Done()

	// the hub closes the socket, so the client sees the connection end
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected the connection to be closed on shutdown")
	}
	waitFor(t, "Read loop still running after hub shutdown", func() bool { return readPumps() <= before })
}

func TestHubServeWSAfterShutdown(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	cancel()
	<-hub.Done()

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
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected a stopped hub to close the connection")
	}
	if hub.ClientCount("late") != 0 {
		t.Error("Stopped hub should not register clients")
	}
}
