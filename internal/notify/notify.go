// Package notify delivers generated answers back into the chat stream by
// inserting bot messages into the messages table. Delivered messages start
// with a NULL embedding and are picked up by the next embedding backfill,
// so answers become retrievable context for future questions.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrChannelNotAllowed indicates a delivery attempt to a channel the
// assistant is not configured to post in. Nothing is written.
var ErrChannelNotAllowed = errors.New("channel not allowed")

// typingIndicator is posted before the answer so channel readers see the
// assistant is working. It stays in the history as an ordinary bot message.
const typingIndicator = "_Thinking..._"

// deliverTimeout bounds one delivery, both inserts included.
const deliverTimeout = 5 * time.Second

// Execer is the subset of pgx operations ChatNotifier needs.
// *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ChatNotifier posts answers as bot messages into a single allowed channel.
type ChatNotifier struct {
	db        Execer
	channelID string
	botName   string
	logger    *slog.Logger
}

// New creates a ChatNotifier restricted to channelID.
func New(db Execer, channelID, botName string, logger *slog.Logger) *ChatNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatNotifier{db: db, channelID: channelID, botName: botName, logger: logger}
}

// ChannelID returns the only channel this notifier posts to.
func (n *ChatNotifier) ChannelID() string {
	return n.channelID
}

// Deliver posts the typing indicator followed by the answer into channelID.
// A channel other than the configured one fails with ErrChannelNotAllowed
// before anything is written. If the indicator lands but the answer insert
// fails, the indicator is left in place; it reads as a stale "thinking"
// message rather than a wrong answer.
func (n *ChatNotifier) Deliver(ctx context.Context, channelID, answer string) error {
	if channelID != n.channelID {
		return fmt.Errorf("%w: %q", ErrChannelNotAllowed, channelID)
	}

	ctx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()

	if err := n.insert(ctx, typingIndicator); err != nil {
		return fmt.Errorf("posting typing indicator: %w", err)
	}
	if err := n.insert(ctx, answer); err != nil {
		return fmt.Errorf("posting answer: %w", err)
	}

	n.logger.Debug("answer delivered", "channel", channelID, "answer_len", len(answer))
	return nil
}

func (n *ChatNotifier) insert(ctx context.Context, content string) error {
	_, err := n.db.Exec(ctx, `
		INSERT INTO messages (id, channel_id, user_name, content, is_bot, created_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW())`,
		uuid.NewString(), n.channelID, n.botName, content)
	return err
}
