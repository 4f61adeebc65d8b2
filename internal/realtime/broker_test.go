package realtime

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
)

// publishedFrame is one SEND frame the broker received.
type publishedFrame struct {
	Destination string
	Body        string
}

// testBroker is a minimal in-process STOMP-over-WebSocket broker: enough of
// the protocol to serve the connection manager under test.
type testBroker struct {
	t   *testing.T
	srv *httptest.Server

	mu        sync.Mutex
	conns     map[*brokerConn]struct{}
	published []publishedFrame
	authseen  []string

	sendc chan publishedFrame
}

type brokerConn struct {
	ws   *websocket.Conn
	conn net.Conn

	writeMu sync.Mutex
	writer  *frame.Writer

	mu   sync.Mutex
	subs map[string]string // destination -> subscription id
}

func newTestBroker(t *testing.T) *testBroker {
	t.Helper()

	b := &testBroker{
		t:     t,
		conns: make(map[*brokerConn]struct{}),
		sendc: make(chan publishedFrame, 16),
	}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.srv.Close)
	return b
}

// wsURL returns the broker's ws:// endpoint.
func (b *testBroker) wsURL() string {
	return strings.Replace(b.srv.URL, "http", "ws", 1) + "/ws"
}

func (b *testBroker) serve(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}

	b.mu.Lock()
	b.authseen = append(b.authseen, r.Header.Get("Authorization"))
	b.mu.Unlock()

	netConn := websocket.NetConn(context.Background(), ws, websocket.MessageText)
	bc := &brokerConn{
		ws:     ws,
		conn:   netConn,
		writer: frame.NewWriter(netConn),
		subs:   make(map[string]string),
	}

	b.mu.Lock()
	b.conns[bc] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.conns, bc)
		b.mu.Unlock()
		ws.Close(websocket.StatusNormalClosure, "bye")
	}()

	reader := frame.NewReader(netConn)
	for {
		f, err := reader.Read()
		if err != nil {
			return
		}
		if f == nil { // heart-beat
			continue
		}

		switch f.Command {
		case frame.CONNECT, frame.STOMP:
			connected := frame.New(frame.CONNECTED,
				frame.Version, "1.2",
				frame.HeartBeat, "0,0",
			)
			if err := bc.write(connected); err != nil {
				return
			}
		case frame.SUBSCRIBE:
			bc.mu.Lock()
			bc.subs[f.Header.Get(frame.Destination)] = f.Header.Get(frame.Id)
			bc.mu.Unlock()
		case frame.UNSUBSCRIBE:
			id := f.Header.Get(frame.Id)
			bc.mu.Lock()
			for dest, subID := range bc.subs {
				if subID == id {
					delete(bc.subs, dest)
				}
			}
			bc.mu.Unlock()
		case frame.SEND:
			pf := publishedFrame{
				Destination: f.Header.Get(frame.Destination),
				Body:        string(f.Body),
			}
			b.mu.Lock()
			b.published = append(b.published, pf)
			b.mu.Unlock()
			select {
			case b.sendc <- pf:
			default:
			}
		case frame.DISCONNECT:
			if receipt := f.Header.Get(frame.Receipt); receipt != "" {
				_ = bc.write(frame.New(frame.RECEIPT, frame.ReceiptId, receipt))
			}
			return
		}
	}
}

// authHeaders returns the Authorization header of every ws handshake seen.
func (b *testBroker) authHeaders() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, len(b.authseen))
	copy(out, b.authseen)
	return out
}

func (bc *brokerConn) write(f *frame.Frame) error {
	bc.writeMu.Lock()
	defer bc.writeMu.Unlock()
	return bc.writer.Write(f)
}

// push delivers a MESSAGE frame to every connection subscribed to dest.
func (b *testBroker) push(dest, body string) {
	b.mu.Lock()
	conns := make([]*brokerConn, 0, len(b.conns))
	for bc := range b.conns {
		conns = append(conns, bc)
	}
	b.mu.Unlock()

	for _, bc := range conns {
		bc.mu.Lock()
		subID, ok := bc.subs[dest]
		bc.mu.Unlock()
		if !ok {
			continue
		}

		msg := frame.New(frame.MESSAGE,
			frame.Destination, dest,
			frame.Subscription, subID,
			frame.MessageId, uuid.NewString(),
			frame.ContentType, "application/json",
		)
		msg.Body = []byte(body)
		_ = bc.write(msg)
	}
}

// dropConns force-closes every live connection, simulating a server drop.
func (b *testBroker) dropConns() {
	b.mu.Lock()
	conns := make([]*brokerConn, 0, len(b.conns))
	for bc := range b.conns {
		conns = append(conns, bc)
	}
	b.mu.Unlock()

	for _, bc := range conns {
		_ = bc.conn.Close()
	}
}

// connCount returns the number of live broker connections.
func (b *testBroker) connCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// subscriptions returns the destinations currently subscribed across conns.
func (b *testBroker) subscriptions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var dests []string
	for bc := range b.conns {
		bc.mu.Lock()
		for dest := range bc.subs {
			dests = append(dests, dest)
		}
		bc.mu.Unlock()
	}
	return dests
}

// publishedFrames returns a copy of all SEND frames seen so far.
func (b *testBroker) publishedFrames() []publishedFrame {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]publishedFrame, len(b.published))
	copy(out, b.published)
	return out
}

// waitPublished blocks until the broker receives a SEND frame.
func (b *testBroker) waitPublished(t *testing.T) publishedFrame {
	t.Helper()

	select {
	case pf := <-b.sendc:
		return pf
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published frame")
		return publishedFrame{}
	}
}
