// Package cmd provides CLI commands for recall.
//
// Commands:
//   - serve: HTTP API server exposing the answer pipeline
//   - ask: one-shot question from the terminal
//   - index: embed messages that have no embedding yet
//   - sweep: clear expired response cache records
//
// Signal handling and graceful shutdown are implemented for all long-running
// commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/koopa0/recall/internal/log"
)

// Execute is the main entry point for the recall CLI application.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level}))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "ask":
		return runAsk()
	case "index":
		return runIndex()
	case "sweep":
		return runSweep()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Recall - retrieval-augmented chat assistant")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  recall serve [addr]   Start HTTP API server (default: 127.0.0.1:3500)")
	fmt.Println("  recall ask <question> Answer one question from the terminal")
	fmt.Println("  recall index          Embed messages missing an embedding")
	fmt.Println("  recall sweep          Clear expired response cache records")
	fmt.Println("  recall --version      Show version information")
	fmt.Println("  recall --help         Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY        Required for the gemini provider")
	fmt.Println("  OPENAI_API_KEY        Required for the openai provider")
	fmt.Println("  DEBUG                 Optional: enable debug logging")
	fmt.Println()
	fmt.Println("Learn more: https://github.com/koopa0/recall")
}
