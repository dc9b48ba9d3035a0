package index

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koopa0/recall/internal/log"
)

// mockEmbedder implements ai.Embedder for testing.
type mockEmbedder struct {
	embedErr    error
	returnEmpty bool
	callCount   int
	lastInput   string
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(r api.Registry) {}

func (m *mockEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++
	if len(req.Input) > 0 && len(req.Input[0].Content) > 0 {
		m.lastInput = req.Input[0].Content[0].Text
	}
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.returnEmpty {
		return &ai.EmbedResponse{Embeddings: []*ai.Embedding{{Embedding: []float32{}}}}, nil
	}
	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: []float32{0.1, 0.2, 0.3}}},
	}, nil
}

// fakeRows implements pgx.Rows over an in-memory result set.
type fakeRows struct {
	rows [][]any
	idx  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *time.Time:
			*p = row[i].(time.Time)
		case *float64:
			*p = row[i].(float64)
		default:
			return fmt.Errorf("scan: unsupported destination type %T", d)
		}
	}
	return nil
}

// fakeQuerier implements Querier, returning queued result sets in order.
type fakeQuerier struct {
	results  []*fakeRows
	queryErr error

	queryCalls []queryCall
	execCalls  []queryCall
	execErr    error
}

type queryCall struct {
	sql  string
	args []any
}

func (q *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.queryCalls = append(q.queryCalls, queryCall{sql: sql, args: args})
	if q.queryErr != nil {
		return nil, q.queryErr
	}
	if len(q.results) == 0 {
		return &fakeRows{}, nil
	}
	rows := q.results[0]
	q.results = q.results[1:]
	return rows, nil
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.execCalls = append(q.execCalls, queryCall{sql: sql, args: args})
	return pgconn.CommandTag{}, q.execErr
}

func TestSearch_ReturnsPassages(t *testing.T) {
	createdAt := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	querier := &fakeQuerier{
		results: []*fakeRows{{
			rows: [][]any{
				{"msg-1", "help", "alice", "how do I reset my password?", createdAt, 0.08},
				{"msg-2", "help", "bob", "go to settings", createdAt, 0.13},
			},
		}},
	}

	store := New(querier, &mockEmbedder{}, log.NewNop())

	passages, err := store.Search(context.Background(), "password reset", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(passages) != 2 {
		t.Fatalf("Search() returned %d passages, want 2", len(passages))
	}

	first := passages[0]
	if first.MessageID != "msg-1" || first.UserName != "alice" || first.ChannelID != "help" {
		t.Errorf("unexpected first passage: %+v", first)
	}
	if first.Timestamp != "2024-03-01 10:30:00" {
		t.Errorf("Timestamp = %q, want formatted time", first.Timestamp)
	}

	// Relevance is 1 - cosine distance.
	if got, want := first.RelevanceScore, 1-0.08; got != want {
		t.Errorf("RelevanceScore = %v, want %v", got, want)
	}
	if got, want := passages[1].RelevanceScore, 1-0.13; got != want {
		t.Errorf("RelevanceScore = %v, want %v", got, want)
	}
}

func TestSearch_DefaultTopK(t *testing.T) {
	querier := &fakeQuerier{results: []*fakeRows{{}}}
	store := New(querier, &mockEmbedder{}, log.NewNop())

	if _, err := store.Search(context.Background(), "question", 0); err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(querier.queryCalls) != 1 {
		t.Fatalf("Query called %d times, want 1", len(querier.queryCalls))
	}
	args := querier.queryCalls[0].args
	if len(args) != 2 {
		t.Fatalf("Query args = %d, want 2", len(args))
	}
	if limit := args[1].(int); limit != 5 {
		t.Errorf("limit arg = %d, want default 5", limit)
	}
}

func TestSearch_EmbedsTheQuery(t *testing.T) {
	embedder := &mockEmbedder{}
	store := New(&fakeQuerier{results: []*fakeRows{{}}}, embedder, log.NewNop())

	if _, err := store.Search(context.Background(), "password reset", 3); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if embedder.lastInput != "password reset" {
		t.Errorf("embedded input = %q, want the query text", embedder.lastInput)
	}
}

func TestSearch_EmbedderError(t *testing.T) {
	embedder := &mockEmbedder{embedErr: errors.New("provider unavailable")}
	querier := &fakeQuerier{}
	store := New(querier, embedder, log.NewNop())

	if _, err := store.Search(context.Background(), "question", 5); err == nil {
		t.Fatal("Search() with failing embedder returned nil error")
	}
	if len(querier.queryCalls) != 0 {
		t.Error("Query should not run when embedding fails")
	}
}

func TestSearch_EmptyEmbedding(t *testing.T) {
	embedder := &mockEmbedder{returnEmpty: true}
	store := New(&fakeQuerier{}, embedder, log.NewNop())

	if _, err := store.Search(context.Background(), "question", 5); err == nil {
		t.Fatal("Search() with empty embedding returned nil error")
	}
}

func TestSearch_QueryError(t *testing.T) {
	querier := &fakeQuerier{queryErr: errors.New("connection refused")}
	store := New(querier, &mockEmbedder{}, log.NewNop())

	if _, err := store.Search(context.Background(), "question", 5); err == nil {
		t.Fatal("Search() with failing query returned nil error")
	}
}

func TestSearch_NoResults(t *testing.T) {
	store := New(&fakeQuerier{results: []*fakeRows{{}}}, &mockEmbedder{}, log.NewNop())

	passages, err := store.Search(context.Background(), "question", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(passages) != 0 {
		t.Errorf("Search() on empty index = %d passages, want 0", len(passages))
	}
}

func TestBackfill_EmbedsPendingMessages(t *testing.T) {
	querier := &fakeQuerier{
		results: []*fakeRows{
			{rows: [][]any{
				{"msg-1", "first unembedded message"},
				{"msg-2", "second unembedded message"},
			}},
			{}, // second batch query finds nothing
		},
	}
	embedder := &mockEmbedder{}
	store := New(querier, embedder, log.NewNop())

	count, err := store.Backfill(context.Background())
	if err != nil {
		t.Fatalf("Backfill() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Backfill() = %d, want 2", count)
	}
	if embedder.callCount != 2 {
		t.Errorf("embedder called %d times, want 2", embedder.callCount)
	}
	if len(querier.execCalls) != 2 {
		t.Errorf("Exec called %d times, want 2", len(querier.execCalls))
	}
}

func TestBackfill_NothingPending(t *testing.T) {
	querier := &fakeQuerier{results: []*fakeRows{{}}}
	store := New(querier, &mockEmbedder{}, log.NewNop())

	count, err := store.Backfill(context.Background())
	if err != nil {
		t.Fatalf("Backfill() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Backfill() = %d, want 0", count)
	}
	if len(querier.execCalls) != 0 {
		t.Error("Exec should not run when nothing is pending")
	}
}

func TestBackfill_EmbedderErrorStops(t *testing.T) {
	querier := &fakeQuerier{
		results: []*fakeRows{
			{rows: [][]any{{"msg-1", "content"}}},
		},
	}
	embedder := &mockEmbedder{embedErr: errors.New("provider down")}
	store := New(querier, embedder, log.NewNop())

	if _, err := store.Backfill(context.Background()); err == nil {
		t.Fatal("Backfill() with failing embedder returned nil error")
	}
	if len(querier.execCalls) != 0 {
		t.Error("Exec should not run when embedding fails")
	}
}
