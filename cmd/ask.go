package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/koopa0/recall/internal/answer"
	"github.com/koopa0/recall/internal/app"
	"github.com/koopa0/recall/internal/config"
)

// runAsk answers one question from the command line and prints the result.
func runAsk() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: recall ask <question>")
	}
	question := strings.Join(os.Args[2:], " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	resp, err := a.Generator.Answer(ctx, answer.Request{
		Query:    question,
		UseCache: true,
	})
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Println(resp.Answer)
	if resp.Cached {
		fmt.Fprintf(os.Stderr, "(cached answer from %s)\n", resp.Timestamp)
	}
	if len(resp.Context) > 0 {
		fmt.Fprintf(os.Stderr, "(grounded on %d retrieved messages)\n", len(resp.Context))
	}
	return nil
}
