package sqlite

import (
	"context"
	"testing"

	"github.com/syncnotes/syncnotes-go/internal/proto"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()

	c, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSaveAndListMessages(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	msgs := []proto.ChatMessage{
		{ID: "m1", SenderID: "u1", Username: "alice", Content: "hi", Timestamp: "1000"},
		{ID: "m2", SenderID: "u2", Username: "bob", Content: "yo", Timestamp: "1001"},
	}
	if err := c.SaveMessages(ctx, "r1", msgs); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Re-saving the same batch must not duplicate rows.
	if err := c.SaveMessages(ctx, "r1", msgs); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := c.ListMessages(ctx, "r1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].ID != "m1" || got[1].ID != "m2" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].Username != "alice" || got[0].Content != "hi" || got[0].Timestamp != "1000" {
		t.Fatalf("unexpected row: %+v", got[0])
	}
}

func TestListMessagesScopedByRoom(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.SaveMessages(ctx, "r1", []proto.ChatMessage{{ID: "a", Content: "in r1"}}); err != nil {
		t.Fatalf("save r1: %v", err)
	}
	if err := c.SaveMessages(ctx, "r2", []proto.ChatMessage{{ID: "a", Content: "in r2"}}); err != nil {
		t.Fatalf("save r2: %v", err)
	}

	got, err := c.ListMessages(ctx, "r2", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Content != "in r2" {
		t.Fatalf("unexpected r2 rows: %+v", got)
	}
}

func TestListMessagesLimitKeepsNewest(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	var msgs []proto.ChatMessage
	for _, id := range []string{"m1", "m2", "m3", "m4"} {
		msgs = append(msgs, proto.ChatMessage{ID: id, Content: id})
	}
	if err := c.SaveMessages(ctx, "r1", msgs); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := c.ListMessages(ctx, "r1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "m3" || got[1].ID != "m4" {
		t.Fatalf("expected newest two in order, got %+v", got)
	}
}

func TestSaveMessagesSynthesizesMissingID(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	msg := proto.ChatMessage{SenderID: "u1", Content: "hi", Timestamp: "1000"}
	if err := c.SaveMessages(ctx, "r1", []proto.ChatMessage{msg, msg}); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := c.ListMessages(ctx, "r1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected synthesized ids to deduplicate, got %d rows", len(got))
	}
	if got[0].ID != "u1-1000-hi" {
		t.Fatalf("unexpected synthesized id: %q", got[0].ID)
	}
}
