// Package pipeline wires a conversation turn through summarization into the
// per-user memory store.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/echodiary/echodiary/internal/convstore"
)

const recentSummaryTTL = 5 * time.Minute

// TurnStore is the conversation-store capability the pipeline needs.
type TurnStore interface {
	Append(ctx context.Context, userID, text string) (string, error)
	Latest(ctx context.Context, userID string) (convstore.Turn, bool, error)
}

// Summarizer condenses a turn with optional prior context. Implementations
// never fail; degraded output is still output.
type Summarizer interface {
	Summarize(ctx context.Context, userID, text, prior string) string
}

// UserRegistry records that a user exists, so scheduled rollups can find
// them later.
type UserRegistry interface {
	EnsureUser(ctx context.Context, userID string) error
}

// Pipeline is the write path for conversational memory.
type Pipeline struct {
	turns      TurnStore
	summarizer Summarizer
	users      UserRegistry
	cache      *ristretto.Cache
}

// New creates a Pipeline. The users registry may be nil when no relational
// store is attached.
func New(turns TurnStore, summarizer Summarizer, users UserRegistry) (*Pipeline, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create summary cache: %w", err)
	}
	return &Pipeline{
		turns:      turns,
		summarizer: summarizer,
		users:      users,
		cache:      cache,
	}, nil
}

// RecordTurn persists one conversation exchange. The raw turn is never
// stored verbatim: it is summarized against the user's latest stored summary
// and only the summary is appended, keeping per-turn storage compact.
//
// Summarization cannot fail (the Summarizer degrades internally), so the
// only error out of here is a storage one — and the chat handler treats even
// that as log-only, since the user already has their response.
func (p *Pipeline) RecordTurn(ctx context.Context, userID, userInput, botResponse string) error {
	combined := fmt.Sprintf("Q: %s\nA: %s", userInput, botResponse)

	var prior string
	if turn, ok, err := p.turns.Latest(ctx, userID); err != nil {
		log.Printf("[PIPELINE] Failed to load prior summary for user=%s: %v", userID, err)
	} else if ok {
		prior = turn.Text
	}

	summarized := p.summarizer.Summarize(ctx, userID, combined, prior)

	if _, err := p.turns.Append(ctx, userID, summarized); err != nil {
		return fmt.Errorf("persist turn: %w", err)
	}

	if p.users != nil {
		if err := p.users.EnsureUser(ctx, userID); err != nil {
			log.Printf("[PIPELINE] Failed to register user=%s: %v", userID, err)
		}
	}

	p.cache.SetWithTTL(userID, summarized, int64(len(summarized)), recentSummaryTTL)
	return nil
}

// RecentSummary returns the user's most recently stored summary. The second
// return value is false when the user has no stored turns.
func (p *Pipeline) RecentSummary(ctx context.Context, userID string) (string, bool, error) {
	if v, ok := p.cache.Get(userID); ok {
		if s, ok := v.(string); ok {
			return s, true, nil
		}
	}

	turn, ok, err := p.turns.Latest(ctx, userID)
	if err != nil {
		return "", false, fmt.Errorf("load latest summary: %w", err)
	}
	if !ok {
		return "", false, nil
	}

	p.cache.SetWithTTL(userID, turn.Text, int64(len(turn.Text)), recentSummaryTTL)
	return turn.Text, true, nil
}
