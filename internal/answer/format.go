package answer

import (
	"fmt"
	"strings"

	"github.com/koopa0/recall/internal/index"
)

// FormatContext renders retrieved passages as the numbered block embedded in
// the model prompt. One line per passage, 1-based, in retrieval order:
//
//	1. alice in #help (2024-03-01 10:30:00): how do I reset my password?
//
// An empty list renders the empty string; the system instruction already
// tells the model what to do when the passages say nothing.
func FormatContext(passages []index.Passage) string {
	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s in #%s (%s): %s",
			i+1, p.UserName, p.ChannelID, p.Timestamp, p.Content)
	}
	return b.String()
}
