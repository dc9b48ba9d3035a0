// Package answer orchestrates the retrieval-augmented answer path: retrieve
// context passages, consult the response cache, generate on a miss, and
// write the result back through the cache.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/koopa0/recall/internal/cache"
	"github.com/koopa0/recall/internal/index"
)

// minQueryLength is the minimum length of a query after trimming whitespace.
const minQueryLength = 3

// DefaultMaxContext is how many passages a request retrieves when it does
// not say otherwise.
const DefaultMaxContext = 5

// Searcher retrieves passages relevant to a query. *index.Store satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]index.Passage, error)
}

// Completer produces an answer from a system instruction and a prompt.
// ModelCompleter satisfies it; tests substitute a fake.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// ResponseCache is the cache surface the generator consults. *cache.Store
// satisfies it. Both operations are failure-silent by contract: Get reads as
// a miss on any fault and Set swallows write errors.
type ResponseCache interface {
	Get(query string, passages []index.Passage) (*cache.Entry, bool)
	Set(query string, passages []index.Passage, entry cache.Entry)
}

// Request is one answer request.
type Request struct {
	// Query is the question to answer. Must be at least three characters
	// after trimming whitespace.
	Query string

	// MaxContext caps retrieved passages. Zero or negative means
	// DefaultMaxContext.
	MaxContext int

	// UseCache enables the cache lookup and write-through. When false the
	// request neither reads nor writes the cache.
	UseCache bool
}

// Response is one generated (or cache-served) answer.
type Response struct {
	Answer    string          `json:"answer"`
	Context   []index.Passage `json:"context"`
	Timestamp string          `json:"timestamp"`
	Query     string          `json:"query"`
	Cached    bool            `json:"cached"`
}

// Generator is the retrieval-caching orchestrator. Safe for concurrent use
// as long as its collaborators are.
type Generator struct {
	searcher  Searcher
	completer Completer
	cache     ResponseCache
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock overrides the time source used for response timestamps. Test use.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// New creates a Generator. All three collaborators are required.
func New(searcher Searcher, completer Completer, responseCache ResponseCache, logger *slog.Logger, opts ...Option) (*Generator, error) {
	if searcher == nil {
		return nil, fmt.Errorf("%w: searcher is required", ErrConfiguration)
	}
	if completer == nil {
		return nil, fmt.Errorf("%w: completer is required", ErrConfiguration)
	}
	if responseCache == nil {
		return nil, fmt.Errorf("%w: response cache is required", ErrConfiguration)
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generator{
		searcher:  searcher,
		completer: completer,
		cache:     responseCache,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Answer runs the full pipeline for one request.
//
// Order is fixed: validate, retrieve, cache lookup, generate, write-through.
// Retrieval always happens before the cache lookup because the cache key
// binds the answer to the exact context it was generated from. On a cache
// hit the model is never called.
func (g *Generator) Answer(ctx context.Context, req Request) (*Response, error) {
	query, err := validateQuery(req.Query)
	if err != nil {
		return nil, err
	}

	maxContext := req.MaxContext
	if maxContext <= 0 {
		maxContext = DefaultMaxContext
	}

	passages, err := g.searcher.Search(ctx, query, maxContext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}

	if req.UseCache {
		if entry, ok := g.cache.Get(query, passages); ok {
			g.logger.Debug("cache hit", "query_len", len(query))
			return &Response{
				Answer:    entry.Answer,
				Context:   entry.Context,
				Timestamp: index.FormatTimestamp(entry.CreatedAt),
				Query:     query,
				Cached:    true,
			}, nil
		}
	}

	prompt := fmt.Sprintf(promptTemplate, FormatContext(passages), query)
	text, err := g.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	createdAt := g.now()
	if req.UseCache {
		g.cache.Set(query, passages, cache.Entry{
			Answer:    text,
			Context:   passages,
			CreatedAt: createdAt,
			Query:     query,
			Cached:    false,
		})
	}

	g.logger.Debug("answer generated",
		"query_len", len(query), "passages", len(passages), "cached", false)
	return &Response{
		Answer:    text,
		Context:   passages,
		Timestamp: index.FormatTimestamp(createdAt),
		Query:     query,
		Cached:    false,
	}, nil
}

// validateQuery trims the query and enforces the minimum length, counted in
// runes so multibyte queries are measured the same as ASCII ones. The trimmed
// form is what flows through retrieval, caching, and generation so that
// whitespace variants of the same question share a cache key.
func validateQuery(query string) (string, error) {
	trimmed := strings.TrimSpace(query)
	if utf8.RuneCountInString(trimmed) < minQueryLength {
		return "", fmt.Errorf("%w: query must be at least %d characters", ErrValidation, minQueryLength)
	}
	return trimmed, nil
}
