// Package chat holds the view-side message sequence: an ordered,
// append-only feed with id-based deduplication and ownership marking.
package chat

import (
	"sync"

	"github.com/syncnotes/syncnotes-go/internal/proto"
	"github.com/syncnotes/syncnotes-go/internal/session"
)

// Message is a display record. It is never mutated after creation.
type Message struct {
	proto.ChatMessage
	Mine bool
}

// Feed accumulates messages for one room view. Duplicate delivery — a
// broker retransmit, or the overlap between the history fetch and the live
// subscription — is suppressed by message id. Sends are never locally
// echoed; the feed only ever sees server-confirmed events.
type Feed struct {
	identity session.Identity

	mu   sync.Mutex
	seen map[string]struct{}
	msgs []Message
}

// NewFeed builds an empty feed for the given user identity.
func NewFeed(identity session.Identity) *Feed {
	return &Feed{
		identity: identity,
		seen:     make(map[string]struct{}),
	}
}

// Append adds a message unless its id was already seen. It returns the
// display record and whether it was newly appended.
func (f *Feed) Append(msg proto.ChatMessage) (Message, bool) {
	id := msg.ID
	if id == "" {
		id = proto.SynthesizeID(msg.SenderID, msg.Timestamp, msg.Content)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, dup := f.seen[id]; dup {
		return Message{}, false
	}
	f.seen[id] = struct{}{}

	m := Message{ChatMessage: msg, Mine: f.mine(msg)}
	f.msgs = append(f.msgs, m)
	return m, true
}

// Messages returns a copy of the current sequence in append order.
func (f *Feed) Messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Message, len(f.msgs))
	copy(out, f.msgs)
	return out
}

// Len returns the number of appended messages.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

// mine compares sender ids when both sides have one, falling back to
// username for backends that omit sender ids.
func (f *Feed) mine(msg proto.ChatMessage) bool {
	if msg.SenderID != "" && f.identity.UserID != "" {
		return msg.SenderID == f.identity.UserID
	}
	return msg.Username != "" && msg.Username == f.identity.Username
}
