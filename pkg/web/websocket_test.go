package web

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dbehnke/modem-emu/pkg/registry"
)

func TestWebSocketHub_Run(t *testing.T) {
	hub := NewWebSocketHub(testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	// Broadcast after shutdown must not block or panic.
	hub.Broadcast(Event{Type: "late"})
}

func dialHub(t *testing.T, hub *WebSocketHub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(time.Second)
	for hub.GetClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("Failed to decode event: %v", err)
	}
	return ev
}

func TestWebSocketHub_Broadcast(t *testing.T) {
	hub := NewWebSocketHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub)
	hub.BroadcastConsole(1, "signal")

	ev := readEvent(t, conn)
	if ev.Type != "console" || ev.Data["operation"] != "signal" || ev.Data["instance"] != float64(1) {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}
}

func TestWebSocketHub_Tap(t *testing.T) {
	hub := NewWebSocketHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub)
	hub.Tap(0, registry.FromGuest, "AT+CSQ")
	hub.Tap(0, registry.ToGuest, "+CSQ: 7,99\r\n\rOK\r")

	ev := readEvent(t, conn)
	if ev.Type != "command" || ev.Data["line"] != "AT+CSQ" {
		t.Errorf("unexpected command event %+v", ev)
	}
	ev = readEvent(t, conn)
	if ev.Type != "unsolicited" || ev.Data["line"] != "+CSQ: 7,99" || ev.Data["class"] != "data" {
		t.Errorf("unexpected data event %+v", ev)
	}
	ev = readEvent(t, conn)
	if ev.Data["line"] != "OK" || ev.Data["class"] != "final" {
		t.Errorf("unexpected final event %+v", ev)
	}
}
