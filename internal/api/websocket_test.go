package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/printlink-core/internal/infrastructure/config"
)

func dialHub(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()

	ts := newTestServer(t)
	httpSrv := httptest.NewServer(ts.handler)
	t.Cleanup(httpSrv.Close)

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return ts.server.hub, conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func subscribe(t *testing.T, conn *websocket.Conn, channels ...string) {
	t.Helper()
	err := conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: channels},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypeResponse || msg.ID != "sub-1" {
		t.Fatalf("subscribe reply = %+v", msg)
	}
}

func TestWebSocket_Ping(t *testing.T) {
	_, conn := dialHub(t)
	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readMessage(t, conn)
	if msg.Type != WSTypePong || msg.ID != "p1" {
		t.Errorf("reply = %+v, want pong p1", msg)
	}
}

func TestWebSocket_UnknownType(t *testing.T) {
	_, conn := dialHub(t)
	if err := conn.WriteJSON(WSMessage{Type: "launch", ID: "x"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypeError {
		t.Errorf("reply type = %q, want error", msg.Type)
	}
}

func TestWebSocket_CapabilityBroadcast(t *testing.T) {
	hub, conn := dialHub(t)
	subscribe(t, conn, ChannelCapabilityChanged)

	// Not subscribed: must not arrive.
	hub.AvailabilityChanged(testDeviceID, false, "offline")
	hub.CapabilityChanged(testDeviceID, "measure_temperature.nozzle", 215.5)

	msg := readMessage(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelCapabilityChanged {
		t.Fatalf("message = %+v", msg)
	}
	payload, _ := msg.Payload.(map[string]any)
	if payload["field"] != "measure_temperature.nozzle" || payload["value"] != 215.5 {
		t.Errorf("payload = %v", payload)
	}
}

func TestWebSocket_WildcardSubscription(t *testing.T) {
	hub, conn := dialHub(t)
	subscribe(t, conn, ChannelAll)

	hub.AvailabilityChanged(testDeviceID, true, "")
	msg := readMessage(t, conn)
	if msg.EventType != ChannelDeviceAvailability {
		t.Fatalf("event_type = %q", msg.EventType)
	}
	payload, _ := msg.Payload.(map[string]any)
	if payload["available"] != true {
		t.Errorf("payload = %v", payload)
	}
}

func TestHub_RunClosesClients(t *testing.T) {
	hub, conn := dialHub(t)

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after Run returned", hub.ClientCount())
	}
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to be closed")
	}
}

func TestHub_Defaults(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	if hub.pingInterval() != defaultPingInterval {
		t.Errorf("pingInterval = %v", hub.pingInterval())
	}
	if hub.maxMessageSize() != defaultMaxMessageSize {
		t.Errorf("maxMessageSize = %d", hub.maxMessageSize())
	}
}
