// Package realtime manages the client's single live subscription to a
// room's chat topic: STOMP over WebSocket, with a fixed-delay reconnect
// loop that runs until the caller disconnects.
package realtime

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/syncnotes/syncnotes-go/internal/proto"
	"github.com/syncnotes/syncnotes-go/internal/session"
)

// Status is the coarse connection state reported to callers.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// MessageFunc receives decoded chat messages in delivery order.
type MessageFunc func(proto.ChatMessage)

// StatusFunc receives status transitions. It fires once per transition,
// never once per retry attempt.
type StatusFunc func(Status)

// Config controls the realtime transport.
type Config struct {
	// Endpoint is the full WebSocket URL, e.g. ws://localhost:8081/ws.
	Endpoint string
	// ReconnectDelay is the fixed pause between reconnect attempts.
	ReconnectDelay time.Duration
	// HeartBeat is offered for both send and receive heart-beating.
	// Zero disables heart-beats.
	HeartBeat time.Duration
	// DialTimeout bounds a single WebSocket dial attempt.
	DialTimeout time.Duration
}

// Manager owns at most one live room subscription. Connecting to a new room
// tears the previous link down first; connecting to the same room while it
// is live is a no-op.
type Manager struct {
	cfg      Config
	sessions *session.Store
	log      *zerolog.Logger
	clientID string

	mu   sync.Mutex
	link *link
}

// NewManager builds a manager. The session store supplies the bearer token
// at connect time; the manager never writes it.
func NewManager(cfg Config, sessions *session.Store, logger *zerolog.Logger) *Manager {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Manager{
		cfg:      cfg,
		sessions: sessions,
		log:      logger,
		clientID: uuid.NewString(),
	}
}

// Connect establishes the subscription for roomID and starts the reconnect
// loop. Failures are reported only through onStatus; a missing token means
// an immediate StatusDisconnected with no transport attempt.
func (m *Manager) Connect(roomID string, onMessage MessageFunc, onStatus StatusFunc) {
	if roomID == "" {
		m.log.Warn().Msg("connect requested with empty room id")
		if onStatus != nil {
			onStatus(StatusDisconnected)
		}
		return
	}

	m.mu.Lock()
	if m.link != nil && m.link.roomID == roomID {
		m.mu.Unlock()
		return
	}
	prev := m.link
	m.link = nil
	m.mu.Unlock()

	if prev != nil {
		prev.stop()
	}

	token, err := m.sessions.Token()
	if err != nil || token == "" {
		m.log.Warn().Str("room", roomID).Msg("no bearer token in session store, not connecting")
		if onStatus != nil {
			onStatus(StatusDisconnected)
		}
		return
	}

	l := newLink(m.cfg, roomID, token, m.clientID, m.log, onMessage, onStatus)

	m.mu.Lock()
	m.link = l
	m.mu.Unlock()

	go l.run()
}

// SendMessage publishes trimmed content to the current room's chat
// destination. With no live connection the call is silently dropped:
// at-most-once, best-effort, no queueing.
func (m *Manager) SendMessage(content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}

	m.mu.Lock()
	l := m.link
	m.mu.Unlock()

	if l == nil {
		return
	}
	l.send(content)
}

// Disconnect tears down the subscription, then the transport, then clears
// state. Idempotent; no callbacks fire after it returns.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	l := m.link
	m.link = nil
	m.mu.Unlock()

	if l != nil {
		l.stop()
	}
}

// Room returns the identifier of the room a link exists for, or "".
func (m *Manager) Room() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.link == nil {
		return ""
	}
	return m.link.roomID
}

// Endpoint derives the realtime WebSocket URL from the backend base URL.
func Endpoint(baseURL, wsPath string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if wsPath == "" {
		wsPath = "/ws"
	}
	if !strings.HasPrefix(wsPath, "/") {
		wsPath = "/" + wsPath
	}
	u.Path = strings.TrimRight(u.Path, "/") + wsPath
	return u.String(), nil
}
