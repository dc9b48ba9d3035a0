package index

import (
	"encoding/json"
	"fmt"
	"time"
)

// VectorDimension is the embedding width of the messages table.
// gemini-embedding-001 supports Matryoshka truncation to 768, which keeps
// the pgvector index small; see db/migrations.
const VectorDimension = 768

// unknownTime is the placeholder rendered when a message has no timestamp.
const unknownTime = "Unknown Time"

// Passage is one retrieved prior message with relevance metadata.
// Produced fresh per query by Store.Search; immutable afterwards.
type Passage struct {
	Content        string  `json:"content"`
	ChannelID      string  `json:"channelId"`
	UserName       string  `json:"userName"`
	Timestamp      string  `json:"timestamp"` // human-formatted, "2006-01-02 15:04:05"
	MessageID      string  `json:"messageId"`
	RelevanceScore float64 `json:"relevanceScore"` // similarity in [0,1], not raw distance
}

// Canonical returns the deterministic, key-sorted JSON serialization of the
// full passage list. Every field participates, so any metadata change alters
// the bytes even when the display text is unaffected. An empty or nil list
// serializes to "[]".
//
// The result is the digest input for cache keying: two passage lists that are
// equal by value and order always produce identical bytes, across process
// restarts.
func Canonical(passages []Passage) ([]byte, error) {
	// encoding/json sorts map keys, which gives the key-sorted property
	// independent of struct field order.
	maps := make([]map[string]any, len(passages))
	for i, p := range passages {
		maps[i] = map[string]any{
			"content":        p.Content,
			"channelId":      p.ChannelID,
			"userName":       p.UserName,
			"timestamp":      p.Timestamp,
			"messageId":      p.MessageID,
			"relevanceScore": p.RelevanceScore,
		}
	}

	data, err := json.Marshal(maps)
	if err != nil {
		return nil, fmt.Errorf("serializing passages: %w", err)
	}
	return data, nil
}

// FormatTimestamp renders a message time as shown in passages.
// A zero time renders as the unknown placeholder.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return unknownTime
	}
	return t.Format("2006-01-02 15:04:05")
}
