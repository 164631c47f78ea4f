// Package summary condenses conversation text into short, positively-biased
// diary summaries via a language-model call, degrading to the raw input when
// the model is unavailable.
package summary

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/echodiary/echodiary/internal/llm"
)

const systemPrompt = "你是一位贴心的日记助手，擅长将对话提炼成简洁、积极的日记内容。"

// Config tunes summarization policy.
type Config struct {
	// MaxChars bounds the generated summary length. Enforced as a
	// generation instruction plus a token cap, never as hard truncation.
	MaxChars int

	// NegativeThreshold is the sentiment score below which the reframing
	// prefix is applied. Zero means any net-negative summary is reframed.
	NegativeThreshold float64

	// Timeout applies to each model call.
	Timeout time.Duration
}

// DefaultConfig returns the summarization defaults.
func DefaultConfig() Config {
	return Config{
		MaxChars: 200,
		Timeout:  30 * time.Second,
	}
}

// Summarizer is stateless between calls: all context arrives as arguments,
// so a single instance is shared across the pipeline and the rollup jobs.
type Summarizer struct {
	client   llm.Client
	analyzer *Analyzer
	cfg      Config
}

// New creates a Summarizer.
func New(client llm.Client, cfg Config) *Summarizer {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 200
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Summarizer{
		client:   client,
		analyzer: NewAnalyzer(),
		cfg:      cfg,
	}
}

// Summarize condenses one conversation turn, using prior (the latest stored
// summary, may be empty) for narrative continuity. It never fails: when the
// model call errors, the sentiment-adjusted raw text comes back instead.
func (s *Summarizer) Summarize(ctx context.Context, userID, text, prior string) string {
	return s.generate(ctx, userID, renderTurnPrompt(text, prior, s.cfg.MaxChars), text)
}

// SummarizeDaily condenses a day's worth of turns. No prior context.
func (s *Summarizer) SummarizeDaily(ctx context.Context, userID, text string) string {
	return s.generate(ctx, userID, renderDailyPrompt(text, s.cfg.MaxChars), text)
}

// SummarizeMonthly condenses a month of daily summaries. No prior context.
func (s *Summarizer) SummarizeMonthly(ctx context.Context, userID, text string) string {
	return s.generate(ctx, userID, renderMonthlyPrompt(text, s.cfg.MaxChars), text)
}

// generate runs the model call and applies the sentiment policy. On any
// failure (transport error, timeout, empty response) it logs and falls back
// to the sentiment-adjusted raw input, so the write path never blocks on a
// broken model service.
func (s *Summarizer) generate(ctx context.Context, userID, prompt, fallback string) string {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}
	opts := llm.Options{
		MaxTokens:   s.cfg.MaxChars * 2,
		Temperature: 0.7,
	}

	out, err := s.client.Complete(cctx, msgs, opts)
	if err != nil {
		log.Printf("[SUMMARY] Model call failed for user=%s, storing raw text: %v", userID, err)
		return s.adjust(fallback)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		log.Printf("[SUMMARY] Model returned empty summary for user=%s, storing raw text", userID)
		return s.adjust(fallback)
	}
	return s.adjust(out)
}

// adjust applies the deterministic reframing policy: net-negative summaries
// get the fixed prefix, everything else passes through unchanged.
func (s *Summarizer) adjust(text string) string {
	if s.analyzer.Score(text) < s.cfg.NegativeThreshold {
		return ReframePrefix + text
	}
	return text
}
