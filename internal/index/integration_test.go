//go:build integration

package index

import (
	"context"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/pgvector/pgvector-go"

	"github.com/koopa0/recall/internal/log"
	"github.com/koopa0/recall/internal/testutil"
)

// dimEmbedder returns fixed full-width vectors so inserts satisfy the
// vector(768) column. The first component distinguishes inputs.
type dimEmbedder struct {
	lead float32
}

func (e *dimEmbedder) Name() string            { return "dim-embedder" }
func (e *dimEmbedder) Register(r api.Registry) {}

func (e *dimEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	v := make([]float32, VectorDimension)
	v[0] = e.lead
	v[1] = 1 // keep the vector non-zero for cosine distance
	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: v}},
	}, nil
}

func fullVector(lead float32) pgvector.Vector {
	v := make([]float32, VectorDimension)
	v[0] = lead
	v[1] = 1
	return pgvector.NewVector(v)
}

func TestSearch_Integration(t *testing.T) {
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	createdAt := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	// Two embedded messages: one aligned with the query vector, one not.
	insert := `INSERT INTO messages (id, channel_id, user_name, content, created_at, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tdb.Pool.Exec(ctx, insert,
		"msg-close", "help", "alice", "password reset steps", createdAt, fullVector(1)); err != nil {
		t.Fatalf("inserting message: %v", err)
	}
	if _, err := tdb.Pool.Exec(ctx, insert,
		"msg-far", "help", "bob", "lunch plans", createdAt, fullVector(-1)); err != nil {
		t.Fatalf("inserting message: %v", err)
	}

	store := New(tdb.Pool, &dimEmbedder{lead: 1}, log.NewNop())

	passages, err := store.Search(ctx, "how do I reset my password", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(passages) != 2 {
		t.Fatalf("Search() returned %d passages, want 2", len(passages))
	}
	if passages[0].MessageID != "msg-close" {
		t.Errorf("first passage = %q, want the aligned message", passages[0].MessageID)
	}
	if passages[0].RelevanceScore <= passages[1].RelevanceScore {
		t.Errorf("relevance not descending: %v then %v",
			passages[0].RelevanceScore, passages[1].RelevanceScore)
	}
	if passages[0].Timestamp != "2024-03-01 10:30:00" {
		t.Errorf("Timestamp = %q, want formatted time", passages[0].Timestamp)
	}
}

func TestBackfill_Integration(t *testing.T) {
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := tdb.Pool.Exec(ctx, `
		INSERT INTO messages (id, channel_id, user_name, content)
		VALUES ('msg-1', 'help', 'alice', 'unembedded message')`); err != nil {
		t.Fatalf("inserting message: %v", err)
	}

	store := New(tdb.Pool, &dimEmbedder{lead: 1}, log.NewNop())

	count, err := store.Backfill(ctx)
	if err != nil {
		t.Fatalf("Backfill() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Backfill() = %d, want 1", count)
	}

	var pending int
	if err := tdb.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE embedding IS NULL`).Scan(&pending); err != nil {
		t.Fatalf("counting pending: %v", err)
	}
	if pending != 0 {
		t.Errorf("%d messages still unembedded after Backfill", pending)
	}
}
