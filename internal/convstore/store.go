// Package convstore is the per-user semantic store for conversation turns.
//
// Each user owns exactly one chromem-go collection, created lazily on first
// write and never deleted. Turns are append-only: the pipeline never mutates
// or removes a stored turn, so daily and monthly summaries are always
// recomputable from the turn history.
package convstore

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	chromem "github.com/philippgille/chromem-go"

	"github.com/echodiary/echodiary/internal/embed"
)

// SourceConversation tags every turn written by the memory pipeline.
const SourceConversation = "user_conversation"

// Turn is one stored conversation turn. Immutable once written.
type Turn struct {
	ID        string
	UserID    string
	Text      string
	Embedding []float32
	Source    string
	CreatedAt time.Time
}

// Store holds per-user conversation collections over an embedded vector DB.
type Store struct {
	db       *chromem.DB
	embedder embed.Embedder

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

// New creates an in-memory store.
func New(embedder embed.Embedder) (*Store, error) {
	return &Store{
		db:          chromem.NewDB(),
		embedder:    embedder,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// NewPersistent creates a store that persists collections under path.
func NewPersistent(embedder embed.Embedder, path string) (*Store, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open persistent vector db: %w", err)
	}
	return &Store{
		db:          db,
		embedder:    embedder,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// CollectionName returns the vector-store collection name for a user.
func CollectionName(userID string) string {
	return fmt.Sprintf("user_%s_diary_conversations", userID)
}

// collection returns the user's collection, creating it on first use.
func (s *Store) collection(userID string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, exists := s.collections[userID]
	s.mu.RUnlock()
	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if col, exists := s.collections[userID]; exists {
		return col, nil
	}

	col, err := s.db.GetOrCreateCollection(CollectionName(userID), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.collections[userID] = col
	return col, nil
}

// Append embeds text and stores it as a new turn for the user. The returned
// id is a ULID: collision-resistant across restarts and lexicographically
// ordered by creation time, which gives Latest its insertion-order tiebreak.
func (s *Store) Append(ctx context.Context, userID, text string) (string, error) {
	col, err := s.collection(userID)
	if err != nil {
		return "", err
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed turn: %w", err)
	}

	now := time.Now().UTC()
	id := ulid.Make().String()

	doc := chromem.Document{
		ID:        id,
		Content:   text,
		Embedding: embedding,
		Metadata: map[string]string{
			"source":     SourceConversation,
			"user_id":    userID,
			"created_at": now.Format(time.RFC3339Nano),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("add document: %w", err)
	}

	log.Printf("[CONVSTORE] Stored turn id=%s user=%s chars=%d", id, userID, len(text))
	return id, nil
}

// Latest returns the most recently created turn for the user. The second
// return value is false when the user has no turns yet; that is an expected
// state, not an error.
func (s *Store) Latest(ctx context.Context, userID string) (Turn, bool, error) {
	turns, err := s.allTurns(ctx, userID)
	if err != nil {
		return Turn{}, false, err
	}
	if len(turns) == 0 {
		return Turn{}, false, nil
	}
	// allTurns sorts ascending; the last element is the newest.
	return turns[len(turns)-1], true, nil
}

// TurnsInRange returns the user's turns with CreatedAt in [start, end),
// ordered ascending by creation time.
func (s *Store) TurnsInRange(ctx context.Context, userID string, start, end time.Time) ([]Turn, error) {
	turns, err := s.allTurns(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out []Turn
	for _, t := range turns {
		if !t.CreatedAt.Before(start) && t.CreatedAt.Before(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

// allTurns fetches the user's entire collection, sorted ascending by
// (created_at, id). The query limit is the exact collection size, so results
// are never silently truncated no matter how large the collection grows.
func (s *Store) allTurns(ctx context.Context, userID string) ([]Turn, error) {
	col, err := s.collection(userID)
	if err != nil {
		return nil, err
	}

	n := col.Count()
	if n == 0 {
		return nil, nil
	}

	// chromem only exposes similarity queries, so scanning the collection
	// means querying with a fixed probe vector and re-sorting by time.
	probe := make([]float32, s.embedder.Dimensions())
	probe[0] = 1

	where := map[string]string{"source": SourceConversation}
	results, err := col.QueryEmbedding(ctx, probe, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	turns := make([]Turn, 0, len(results))
	for _, res := range results {
		turn, err := turnFromResult(userID, res)
		if err != nil {
			log.Printf("[CONVSTORE] Skipping malformed turn id=%s: %v", res.ID, err)
			continue
		}
		turns = append(turns, turn)
	}

	sort.Slice(turns, func(i, j int) bool {
		if turns[i].CreatedAt.Equal(turns[j].CreatedAt) {
			return turns[i].ID < turns[j].ID
		}
		return turns[i].CreatedAt.Before(turns[j].CreatedAt)
	})
	return turns, nil
}

func turnFromResult(userID string, res chromem.Result) (Turn, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, res.Metadata["created_at"])
	if err != nil {
		return Turn{}, fmt.Errorf("parse created_at: %w", err)
	}
	return Turn{
		ID:        res.ID,
		UserID:    userID,
		Text:      res.Content,
		Embedding: res.Embedding,
		Source:    res.Metadata["source"],
		CreatedAt: createdAt,
	}, nil
}
