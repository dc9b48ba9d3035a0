//go:build integration

package notify

import (
	"context"
	"testing"

	"github.com/koopa0/recall/internal/log"
	"github.com/koopa0/recall/internal/testutil"
)

func TestDeliver_Integration(t *testing.T) {
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	n := New(tdb.Pool, "help", "RAG Assistant", log.NewNop())

	if err := n.Deliver(ctx, "help", "go to settings"); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	rows, err := tdb.Pool.Query(ctx, `
		SELECT content, is_bot, user_name FROM messages
		WHERE channel_id = 'help' ORDER BY created_at`)
	if err != nil {
		t.Fatalf("querying messages: %v", err)
	}
	defer rows.Close()

	var contents []string
	for rows.Next() {
		var content, userName string
		var isBot bool
		if err := rows.Scan(&content, &isBot, &userName); err != nil {
			t.Fatalf("scanning row: %v", err)
		}
		if !isBot {
			t.Errorf("message %q not flagged as bot", content)
		}
		if userName != "RAG Assistant" {
			t.Errorf("user_name = %q, want bot name", userName)
		}
		contents = append(contents, content)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("reading rows: %v", err)
	}

	if len(contents) != 2 || contents[0] != "_Thinking..._" || contents[1] != "go to settings" {
		t.Errorf("delivered messages = %v, want indicator then answer", contents)
	}
}
