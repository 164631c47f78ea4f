package convstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/echodiary/echodiary/internal/convstore"
	"github.com/echodiary/echodiary/internal/embed/mock"
)

func newStore(t *testing.T) *convstore.Store {
	t.Helper()
	store, err := convstore.New(mock.New())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestLatest_EmptyCollection(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, ok, err := store.Latest(ctx, "user1")
	if err != nil {
		t.Fatalf("Latest on empty collection should not error: %v", err)
	}
	if ok {
		t.Error("Expected absence for a user with no turns")
	}
}

func TestAppendAndLatest(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	id1, err := store.Append(ctx, "user1", "今天去了公园")
	if err != nil {
		t.Fatalf("Failed to append first turn: %v", err)
	}
	id2, err := store.Append(ctx, "user1", "晚上看了电影")
	if err != nil {
		t.Fatalf("Failed to append second turn: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("Turn ids must be unique, got %s twice", id1)
	}

	turn, ok, err := store.Latest(ctx, "user1")
	if err != nil {
		t.Fatalf("Failed to get latest: %v", err)
	}
	if !ok {
		t.Fatal("Expected a latest turn after two appends")
	}
	if turn.Text != "晚上看了电影" {
		t.Errorf("Latest returned %q, want the most recent turn", turn.Text)
	}
	if turn.ID != id2 {
		t.Errorf("Latest returned id %s, want %s", turn.ID, id2)
	}
	if turn.Source != convstore.SourceConversation {
		t.Errorf("Turn source = %q, want %q", turn.Source, convstore.SourceConversation)
	}
}

func TestUserIsolation(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	if _, err := store.Append(ctx, "user1", "user1 turn"); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	_, ok, err := store.Latest(ctx, "user2")
	if err != nil {
		t.Fatalf("Failed to get latest for user2: %v", err)
	}
	if ok {
		t.Error("user2 should not see user1's turns")
	}
}

func TestTurnsInRange_Ordering(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	texts := []string{"早上的对话", "中午的对话", "晚上的对话"}
	for _, text := range texts {
		if _, err := store.Append(ctx, "user1", text); err != nil {
			t.Fatalf("Failed to append %q: %v", text, err)
		}
	}

	now := time.Now().UTC()
	turns, err := store.TurnsInRange(ctx, "user1", now.Add(-time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Failed to query range: %v", err)
	}
	if len(turns) != len(texts) {
		t.Fatalf("Got %d turns, want %d", len(turns), len(texts))
	}
	for i, turn := range turns {
		if turn.Text != texts[i] {
			t.Errorf("turns[%d].Text = %q, want %q (ascending order)", i, turn.Text, texts[i])
		}
	}
	for i := 1; i < len(turns); i++ {
		if turns[i].CreatedAt.Before(turns[i-1].CreatedAt) {
			t.Errorf("turns[%d] created before turns[%d]", i, i-1)
		}
	}
}

func TestTurnsInRange_HalfOpenBounds(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	if _, err := store.Append(ctx, "user1", "唯一的对话"); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	turn, ok, err := store.Latest(ctx, "user1")
	if err != nil || !ok {
		t.Fatalf("Failed to get latest: ok=%v err=%v", ok, err)
	}

	// Start is inclusive.
	turns, err := store.TurnsInRange(ctx, "user1", turn.CreatedAt, turn.CreatedAt.Add(time.Nanosecond))
	if err != nil {
		t.Fatalf("Failed to query range: %v", err)
	}
	if len(turns) != 1 {
		t.Errorf("Got %d turns for [created, created+1ns), want 1", len(turns))
	}

	// End is exclusive.
	turns, err = store.TurnsInRange(ctx, "user1", turn.CreatedAt.Add(-time.Minute), turn.CreatedAt)
	if err != nil {
		t.Fatalf("Failed to query range: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("Got %d turns for [created-1m, created), want 0", len(turns))
	}
}

func TestTurnsInRange_EmptyWindow(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	if _, err := store.Append(ctx, "user1", "今天的对话"); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	turns, err := store.TurnsInRange(ctx, "user1", tomorrow, tomorrow.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Failed to query range: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("Got %d turns for an empty window, want 0", len(turns))
	}
}

func TestCollectionName(t *testing.T) {
	got := convstore.CollectionName("42")
	want := "user_42_diary_conversations"
	if got != want {
		t.Errorf("CollectionName = %q, want %q", got, want)
	}
}
