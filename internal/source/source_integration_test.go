//go:build integration

package source

import (
	"context"
	"os"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestIntegration_MessagesOrdered(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	convs, err := s.Conversations(ctx)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(convs) == 0 {
		t.Skip("no conversations in test database")
	}

	msgs, err := s.Messages(ctx, convs[0])
	if err != nil {
		t.Fatalf("load messages: %v", err)
	}
	if len(msgs) == 0 {
		t.Fatal("expected at least one message")
	}

	var prev time.Time
	for i, m := range msgs {
		if m.Timestamp.Before(prev) {
			t.Fatalf("message %d out of order: %v before %v", i, m.Timestamp, prev)
		}
		prev = m.Timestamp
	}
}

func TestIntegration_AggregatesOptional(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// An unknown conversation has no aggregates; that is not an error.
	aux, err := s.SpeakerAggregates(ctx, "no-such-conversation")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if aux != nil {
		t.Errorf("expected nil aggregates, got %+v", aux)
	}
}
