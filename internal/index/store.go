// Package index provides the message similarity index backed by
// PostgreSQL + pgvector. It owns passage retrieval (vector search over prior
// chat messages) and embedding backfill for newly stored messages.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// searchTimeout bounds a single vector search, embedding included.
const searchTimeout = 10 * time.Second

// backfillBatchSize is how many unembedded messages one Backfill pass loads.
const backfillBatchSize = 100

// Querier is the subset of pgx operations Store needs.
// Defined by the consumer so tests can substitute a fake; *pgxpool.Pool
// satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store performs semantic search over the messages table.
// Safe for concurrent use.
type Store struct {
	db       Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default().
func New(db Querier, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, embedder: embedder, logger: logger}
}

// Search returns up to topK passages most similar to query, in descending
// relevance order. Callers must not re-sort.
//
// pgvector's <=> operator yields cosine distance; relevance is reported as
// 1 - distance. That conversion is only meaningful for normalized cosine
// distance in [0,1]; switching the operator or metric requires revisiting it.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Passage, error) {
	if topK <= 0 {
		topK = 5
	}

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	embedding, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, channel_id, user_name, content, created_at,
		       embedding <=> $1 AS distance
		FROM messages
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`,
		embedding, topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("vector search timeout: %w", err)
		}
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var passages []Passage
	for rows.Next() {
		var (
			id, channelID, userName, content string
			createdAt                        time.Time
			distance                         float64
		)
		if err := rows.Scan(&id, &channelID, &userName, &content, &createdAt, &distance); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		passages = append(passages, Passage{
			Content:        content,
			ChannelID:      channelID,
			UserName:       userName,
			Timestamp:      FormatTimestamp(createdAt),
			MessageID:      id,
			RelevanceScore: 1 - distance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}

	s.logger.Debug("vector search completed", "query_len", len(query), "results", len(passages))
	return passages, nil
}

// Backfill embeds every message whose embedding is still NULL, in batches,
// and returns the number of messages embedded. It is the ingestion entry
// point invoked by the `recall index` command.
func (s *Store) Backfill(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := s.backfillBatch(ctx)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		total += n
	}
}

// backfillBatch embeds one batch. Returns 0 when no work remains.
func (s *Store) backfillBatch(ctx context.Context) (int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, content
		FROM messages
		WHERE embedding IS NULL
		ORDER BY created_at
		LIMIT $1`,
		backfillBatchSize)
	if err != nil {
		return 0, fmt.Errorf("listing unembedded messages: %w", err)
	}

	type pending struct {
		id      string
		content string
	}
	var batch []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.content); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning message row: %w", err)
		}
		batch = append(batch, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("reading message rows: %w", err)
	}

	for _, p := range batch {
		embedding, err := s.embed(ctx, p.content)
		if err != nil {
			return 0, fmt.Errorf("embedding message %q: %w", p.id, err)
		}
		if _, err := s.db.Exec(ctx,
			`UPDATE messages SET embedding = $1 WHERE id = $2`,
			embedding, p.id); err != nil {
			return 0, fmt.Errorf("storing embedding for message %q: %w", p.id, err)
		}
	}

	if len(batch) > 0 {
		s.logger.Debug("embedded message batch", "count", len(batch))
	}
	return len(batch), nil
}

// embed generates the vector for one text via the configured embedder.
func (s *Store) embed(ctx context.Context, text string) (*pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("generating embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}

	v := pgvector.NewVector(resp.Embeddings[0].Embedding)
	return &v, nil
}
