package store

import (
	"context"

	"github.com/syncnotes/syncnotes-go/internal/proto"
)

// Cache is the local message history cache. It keeps the last messages seen
// per room so the CLI can show context without a round-trip, and it is
// write-through: history fetches and live deliveries both land here.
type Cache interface {
	// SaveMessages upserts messages for a room. Re-saving an already cached
	// message id is a no-op.
	SaveMessages(ctx context.Context, roomID string, msgs []proto.ChatMessage) error

	// ListMessages returns up to limit cached messages for a room in
	// insertion order, oldest first.
	ListMessages(ctx context.Context, roomID string, limit int) ([]proto.ChatMessage, error)

	// Close closes the underlying database.
	Close() error
}
