package realtime

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/syncnotes/syncnotes-go/internal/log"
	"github.com/syncnotes/syncnotes-go/internal/proto"
	"github.com/syncnotes/syncnotes-go/internal/session"
)

const testToken = "test-token"

func newTestManager(t *testing.T, endpoint string) (*Manager, chan proto.ChatMessage, chan Status) {
	t.Helper()

	sessions := session.NewStore(filepath.Join(t.TempDir(), "session.json"))
	if _, err := sessions.Save(testToken); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	m := NewManager(Config{
		Endpoint:       endpoint,
		ReconnectDelay: 50 * time.Millisecond,
	}, sessions, log.New("error"))
	t.Cleanup(m.Disconnect)

	messages := make(chan proto.ChatMessage, 16)
	statuses := make(chan Status, 16)
	return m, messages, statuses
}

func connectAndWait(t *testing.T, m *Manager, room string, messages chan proto.ChatMessage, statuses chan Status) {
	t.Helper()

	m.Connect(room,
		func(msg proto.ChatMessage) { messages <- msg },
		func(s Status) { statuses <- s },
	)
	if got := waitStatus(t, statuses); got != StatusConnected {
		t.Fatalf("expected connected, got %s", got)
	}
}

func waitStatus(t *testing.T, statuses chan Status) Status {
	t.Helper()

	select {
	case s := <-statuses:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for status")
		return ""
	}
}

func waitMessage(t *testing.T, messages chan proto.ChatMessage) proto.ChatMessage {
	t.Helper()

	select {
	case msg := <-messages:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return proto.ChatMessage{}
	}
}

func expectSilence(t *testing.T, messages chan proto.ChatMessage, d time.Duration) {
	t.Helper()

	select {
	case msg := <-messages:
		t.Fatalf("unexpected message: %+v", msg)
	case <-time.After(d):
	}
}

func TestEndToEnd(t *testing.T) {
	broker := newTestBroker(t)
	m, messages, statuses := newTestManager(t, broker.wsURL())

	connectAndWait(t, m, "r1", messages, statuses)

	broker.push("/topic/room/r1", `{"type":"CHAT_MESSAGE","payload":{"id":"m1","senderId":"u1","username":"alice","content":"hi","timestamp":1000}}`)
	msg := waitMessage(t, messages)
	if msg.Content != "hi" || msg.SenderID != "u1" || msg.Username != "alice" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	m.SendMessage("  yo  ")
	pf := broker.waitPublished(t)
	if pf.Destination != "/app/room/r1/chat" {
		t.Fatalf("unexpected destination: %s", pf.Destination)
	}
	if pf.Body != `{"content":"yo"}` {
		t.Fatalf("unexpected body: %s", pf.Body)
	}

	m.Disconnect()
	if got := waitStatus(t, statuses); got != StatusDisconnected {
		t.Fatalf("expected disconnected, got %s", got)
	}

	// Pushes after disconnect must not reach the callback.
	broker.push("/topic/room/r1", `{"id":"m2","senderId":"u1","content":"late"}`)
	expectSilence(t, messages, 200*time.Millisecond)
}

func TestConnectIdempotentForSameRoom(t *testing.T) {
	broker := newTestBroker(t)
	m, messages, statuses := newTestManager(t, broker.wsURL())

	connectAndWait(t, m, "r1", messages, statuses)
	m.Connect("r1",
		func(msg proto.ChatMessage) { messages <- msg },
		func(s Status) { statuses <- s },
	)

	// Give a redundant connect time to do damage, then verify it did none.
	time.Sleep(150 * time.Millisecond)
	if n := broker.connCount(); n != 1 {
		t.Fatalf("expected 1 broker connection, got %d", n)
	}
	if subs := broker.subscriptions(); len(subs) != 1 || subs[0] != "/topic/room/r1" {
		t.Fatalf("unexpected subscriptions: %v", subs)
	}
	select {
	case s := <-statuses:
		t.Fatalf("unexpected extra status event: %s", s)
	default:
	}

	broker.push("/topic/room/r1", `{"id":"m1","senderId":"u1","content":"once"}`)
	waitMessage(t, messages)
	expectSilence(t, messages, 150*time.Millisecond)
}

func TestConnectSwitchesRooms(t *testing.T) {
	broker := newTestBroker(t)
	m, messages, statuses := newTestManager(t, broker.wsURL())

	connectAndWait(t, m, "r1", messages, statuses)

	m.Connect("r2",
		func(msg proto.ChatMessage) { messages <- msg },
		func(s Status) { statuses <- s },
	)
	// Old room goes down before the new one comes up.
	if got := waitStatus(t, statuses); got != StatusDisconnected {
		t.Fatalf("expected disconnected for r1, got %s", got)
	}
	if got := waitStatus(t, statuses); got != StatusConnected {
		t.Fatalf("expected connected for r2, got %s", got)
	}
	if room := m.Room(); room != "r2" {
		t.Fatalf("expected room r2, got %q", room)
	}

	// Nothing from r1's topic may arrive anymore.
	broker.push("/topic/room/r1", `{"id":"old","senderId":"u1","content":"stale"}`)
	expectSilence(t, messages, 200*time.Millisecond)

	broker.push("/topic/room/r2", `{"id":"new","senderId":"u1","content":"fresh"}`)
	if msg := waitMessage(t, messages); msg.Content != "fresh" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestSendWhileDisconnectedIsNoop(t *testing.T) {
	broker := newTestBroker(t)
	m, _, _ := newTestManager(t, broker.wsURL())

	// Never connected: must not panic, must not publish.
	m.SendMessage("hello")

	time.Sleep(100 * time.Millisecond)
	if frames := broker.publishedFrames(); len(frames) != 0 {
		t.Fatalf("unexpected published frames: %v", frames)
	}
}

func TestMalformedFrameIsDropped(t *testing.T) {
	broker := newTestBroker(t)
	m, messages, statuses := newTestManager(t, broker.wsURL())

	connectAndWait(t, m, "r1", messages, statuses)

	broker.push("/topic/room/r1", "not json at all")
	expectSilence(t, messages, 150*time.Millisecond)

	// The connection survives and the next frame is processed normally.
	broker.push("/topic/room/r1", `{"id":"m1","senderId":"u1","content":"still alive"}`)
	if msg := waitMessage(t, messages); msg.Content != "still alive" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestNonChatEnvelopeIsIgnored(t *testing.T) {
	broker := newTestBroker(t)
	m, messages, statuses := newTestManager(t, broker.wsURL())

	connectAndWait(t, m, "r1", messages, statuses)

	broker.push("/topic/room/r1", `{"type":"MEMBER_JOINED","payload":{"username":"bob"}}`)
	expectSilence(t, messages, 150*time.Millisecond)

	broker.push("/topic/room/r1", `{"type":"CHAT_MESSAGE","payload":{"id":"m1","senderId":"u1","content":"chat"}}`)
	if msg := waitMessage(t, messages); msg.Content != "chat" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestConnectWithoutTokenReportsDisconnected(t *testing.T) {
	broker := newTestBroker(t)

	sessions := session.NewStore(filepath.Join(t.TempDir(), "session.json"))
	m := NewManager(Config{Endpoint: broker.wsURL()}, sessions, log.New("error"))
	t.Cleanup(m.Disconnect)

	statuses := make(chan Status, 1)
	m.Connect("r1", nil, func(s Status) { statuses <- s })

	if got := waitStatus(t, statuses); got != StatusDisconnected {
		t.Fatalf("expected immediate disconnected, got %s", got)
	}
	time.Sleep(100 * time.Millisecond)
	if n := broker.connCount(); n != 0 {
		t.Fatalf("expected no transport attempt, got %d connections", n)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	broker := newTestBroker(t)
	m, messages, statuses := newTestManager(t, broker.wsURL())

	connectAndWait(t, m, "r1", messages, statuses)

	m.Disconnect()
	if got := waitStatus(t, statuses); got != StatusDisconnected {
		t.Fatalf("expected disconnected, got %s", got)
	}
	m.Disconnect()

	select {
	case s := <-statuses:
		t.Fatalf("unexpected status after second disconnect: %s", s)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestReconnectAfterServerDrop(t *testing.T) {
	broker := newTestBroker(t)
	m, messages, statuses := newTestManager(t, broker.wsURL())

	connectAndWait(t, m, "r1", messages, statuses)

	broker.dropConns()
	if got := waitStatus(t, statuses); got != StatusDisconnected {
		t.Fatalf("expected disconnected after drop, got %s", got)
	}

	// The fixed-delay loop brings the subscription back on its own.
	if got := waitStatus(t, statuses); got != StatusConnected {
		t.Fatalf("expected reconnect, got %s", got)
	}

	broker.push("/topic/room/r1", `{"id":"m1","senderId":"u1","content":"back"}`)
	if msg := waitMessage(t, messages); msg.Content != "back" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestBearerTokenOnHandshake(t *testing.T) {
	broker := newTestBroker(t)
	m, messages, statuses := newTestManager(t, broker.wsURL())

	connectAndWait(t, m, "r1", messages, statuses)

	headers := broker.authHeaders()
	if len(headers) == 0 || headers[0] != "Bearer "+testToken {
		t.Fatalf("unexpected auth headers: %v", headers)
	}
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		path    string
		want    string
		wantErr bool
	}{
		{"http", "http://localhost:8081", "/ws", "ws://localhost:8081/ws", false},
		{"https", "https://api.example.com", "/ws", "wss://api.example.com/ws", false},
		{"trailing slash", "http://localhost:8081/", "/ws", "ws://localhost:8081/ws", false},
		{"path without slash", "http://localhost:8081", "ws", "ws://localhost:8081/ws", false},
		{"empty path defaults", "http://localhost:8081", "", "ws://localhost:8081/ws", false},
		{"already ws", "ws://localhost:8081", "/ws", "ws://localhost:8081/ws", false},
		{"bad scheme", "ftp://localhost", "/ws", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Endpoint(tt.base, tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Endpoint(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
			}
		})
	}
}
