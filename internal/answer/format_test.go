package answer

import (
	"testing"

	"github.com/koopa0/recall/internal/index"
)

func TestFormatContext(t *testing.T) {
	passages := []index.Passage{
		{
			Content:   "how do I reset my password?",
			ChannelID: "help",
			UserName:  "alice",
			Timestamp: "2024-03-01 10:30:00",
		},
		{
			Content:   "go to settings and click reset",
			ChannelID: "help",
			UserName:  "bob",
			Timestamp: "2024-03-01 10:31:00",
		},
	}

	got := FormatContext(passages)
	want := "1. alice in #help (2024-03-01 10:30:00): how do I reset my password?\n" +
		"2. bob in #help (2024-03-01 10:31:00): go to settings and click reset"
	if got != want {
		t.Errorf("FormatContext() =\n%s\nwant\n%s", got, want)
	}
}

func TestFormatContext_Empty(t *testing.T) {
	for _, passages := range [][]index.Passage{nil, {}} {
		if got := FormatContext(passages); got != "" {
			t.Errorf("FormatContext(%v) = %q, want empty string", passages, got)
		}
	}
}

func TestFormatContext_SinglePassage(t *testing.T) {
	passages := []index.Passage{
		{
			Content:   "the deploy finished",
			ChannelID: "ops",
			UserName:  "carol",
			Timestamp: "Unknown Time",
		},
	}

	got := FormatContext(passages)
	want := "1. carol in #ops (Unknown Time): the deploy finished"
	if got != want {
		t.Errorf("FormatContext() = %q, want %q", got, want)
	}
}
