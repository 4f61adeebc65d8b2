package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-stomp/stomp/v3"
	"github.com/rs/zerolog"

	"github.com/syncnotes/syncnotes-go/internal/proto"
)

// link is one room's connection lifecycle: it dials, subscribes, pumps
// frames, and retries on a fixed delay until stopped. Callbacks are only
// ever invoked from the run goroutine, and are fenced once the link's
// context is cancelled.
type link struct {
	cfg      Config
	roomID   string
	token    string
	clientID string
	log      zerolog.Logger

	onMessage MessageFunc
	onStatus  StatusFunc

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	stomp *stomp.Conn

	last Status
}

func newLink(cfg Config, roomID, token, clientID string, logger *zerolog.Logger, onMessage MessageFunc, onStatus StatusFunc) *link {
	ctx, cancel := context.WithCancel(context.Background())
	return &link{
		cfg:       cfg,
		roomID:    roomID,
		token:     token,
		clientID:  clientID,
		log:       logger.With().Str("room", roomID).Logger(),
		onMessage: onMessage,
		onStatus:  onStatus,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// run drives connect attempts until the link is stopped. The delay between
// attempts is fixed; there is no backoff and no attempt limit.
func (l *link) run() {
	defer close(l.done)

	for {
		l.attempt()

		select {
		case <-l.ctx.Done():
			return
		case <-time.After(l.cfg.ReconnectDelay):
		}
	}
}

// stop cancels the link and waits for the run goroutine to finish its
// teardown. The final Disconnected transition is delivered synchronously
// here, so callers observe it during the disconnect call and never after.
func (l *link) stop() {
	l.cancel()
	<-l.done

	if l.last == StatusConnected {
		l.last = StatusDisconnected
		if l.onStatus != nil {
			l.onStatus(StatusDisconnected)
		}
	}
}

// attempt performs one full connect/subscribe/pump cycle.
func (l *link) attempt() {
	dialCtx, cancelDial := context.WithTimeout(l.ctx, l.cfg.DialTimeout)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+l.token)

	wsConn, _, err := websocket.Dial(dialCtx, l.cfg.Endpoint, &websocket.DialOptions{
		HTTPHeader: header,
	})
	cancelDial()
	if err != nil {
		l.log.Debug().Err(err).Msg("ws dial failed")
		l.report(StatusDisconnected)
		return
	}

	netConn := websocket.NetConn(l.ctx, wsConn, websocket.MessageText)

	conn, err := stomp.Connect(netConn,
		stomp.ConnOpt.Header("Authorization", "Bearer "+l.token),
		stomp.ConnOpt.Header("client-id", l.clientID),
		stomp.ConnOpt.HeartBeat(l.cfg.HeartBeat, l.cfg.HeartBeat),
	)
	if err != nil {
		l.log.Debug().Err(err).Msg("stomp connect failed")
		wsConn.Close(websocket.StatusNormalClosure, "connect failed")
		l.report(StatusDisconnected)
		return
	}

	sub, err := conn.Subscribe("/topic/room/"+l.roomID, stomp.AckAuto)
	if err != nil {
		l.log.Warn().Err(err).Msg("subscribe failed")
		_ = conn.Disconnect()
		wsConn.Close(websocket.StatusNormalClosure, "subscribe failed")
		l.report(StatusDisconnected)
		return
	}

	l.setConn(conn)
	l.report(StatusConnected)

	l.pump(sub)

	// Teardown order: subscription, then session, then transport.
	l.setConn(nil)
	_ = sub.Unsubscribe()
	_ = conn.Disconnect()
	wsConn.Close(websocket.StatusNormalClosure, "bye")
	l.report(StatusDisconnected)
}

// pump forwards inbound frames until the subscription fails or the link is
// stopped. Frames are delivered in the order the transport hands them over.
func (l *link) pump(sub *stomp.Subscription) {
	for {
		select {
		case <-l.ctx.Done():
			return
		case msg, ok := <-sub.C:
			if !ok {
				l.log.Debug().Msg("subscription channel closed")
				return
			}
			if msg.Err != nil {
				l.log.Warn().Err(msg.Err).Msg("subscription error")
				return
			}
			l.deliver(msg.Body)
		}
	}
}

// deliver decodes one frame body and invokes the message callback.
// Malformed payloads and non-chat envelope types are dropped here and never
// affect connection state.
func (l *link) deliver(body []byte) {
	msg, err := proto.DecodeFrame(body)
	if err != nil {
		if errors.Is(err, proto.ErrNotChat) {
			l.log.Debug().Msg("ignoring non-chat push event")
		} else {
			l.log.Warn().Err(err).Msg("dropping malformed frame")
		}
		return
	}

	if l.ctx.Err() != nil {
		return
	}
	if l.onMessage != nil {
		l.onMessage(msg)
	}
}

// send publishes one outbound frame to the room's chat destination.
// No acknowledgement is awaited.
func (l *link) send(content string) {
	l.mu.Lock()
	conn := l.stomp
	l.mu.Unlock()

	if conn == nil {
		return
	}

	body, err := json.Marshal(proto.SendBody{Content: content})
	if err != nil {
		l.log.Error().Err(err).Msg("marshal send body")
		return
	}
	if err := conn.Send("/app/room/"+l.roomID+"/chat", "application/json", body); err != nil {
		l.log.Warn().Err(err).Msg("publish failed")
	}
}

func (l *link) setConn(conn *stomp.Conn) {
	l.mu.Lock()
	l.stomp = conn
	l.mu.Unlock()
}

// report forwards a status transition. Repeated states are collapsed so a
// failing reconnect loop does not spam Disconnected, and nothing is
// reported after the link is stopped.
func (l *link) report(status Status) {
	if l.ctx.Err() != nil {
		return
	}
	if status == l.last {
		return
	}
	l.last = status
	if l.onStatus != nil {
		l.onStatus(status)
	}
}
