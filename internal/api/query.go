package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/koopa0/recall/internal/answer"
	"github.com/koopa0/recall/internal/notify"
)

// maxQueryBodyBytes caps the request body size for POST /api/v1/query.
const maxQueryBodyBytes = 64 << 10

// Answerer runs the retrieval-caching answer pipeline.
// *answer.Generator satisfies it.
type Answerer interface {
	Answer(ctx context.Context, req answer.Request) (*answer.Response, error)
}

// Deliverer posts an answer into a chat channel. *notify.ChatNotifier
// satisfies it.
type Deliverer interface {
	ChannelID() string
	Deliver(ctx context.Context, channelID, answer string) error
}

// queryHandler serves the answer endpoint.
type queryHandler struct {
	generator Answerer
	notifier  Deliverer
	logger    *slog.Logger
}

// queryRequest is the body of POST /api/v1/query.
type queryRequest struct {
	Query      string `json:"query"`
	MaxContext int    `json:"maxContext"`
	UseCache   *bool  `json:"useCache"`   // nil means true
	SendToChat bool   `json:"sendToChat"` // also post the answer into chat
	ChannelID  string `json:"channelId"`  // target channel; empty means the configured one
}

// queryResponse is the body of a successful answer.
type queryResponse struct {
	*answer.Response
	Delivered bool `json:"delivered"`
}

// query handles POST /api/v1/query.
//
// The channel guard runs before any retrieval or generation: a request that
// asks for chat delivery into a disallowed channel is rejected outright
// rather than generating an answer that cannot be delivered.
func (h *queryHandler) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	channelID := req.ChannelID
	if channelID == "" {
		channelID = h.notifier.ChannelID()
	}
	if req.SendToChat && channelID != h.notifier.ChannelID() {
		writeError(w, http.StatusBadRequest, "channel_not_allowed",
			fmt.Sprintf("answers can only be sent to channel %q", h.notifier.ChannelID()))
		return
	}

	useCache := true
	if req.UseCache != nil {
		useCache = *req.UseCache
	}

	resp, err := h.generator.Answer(r.Context(), answer.Request{
		Query:      req.Query,
		MaxContext: req.MaxContext,
		UseCache:   useCache,
	})
	if err != nil {
		h.writeAnswerError(w, r, err)
		return
	}

	delivered := false
	if req.SendToChat {
		if err := h.notifier.Deliver(r.Context(), channelID, resp.Answer); err != nil {
			// The answer itself succeeded; delivery failure degrades, not fails.
			h.logger.Warn("chat delivery failed", "channel", channelID, "error", err)
		} else {
			delivered = true
		}
	}

	writeJSON(w, http.StatusOK, queryResponse{Response: resp, Delivered: delivered})
}

// writeAnswerError maps the answer error taxonomy onto HTTP statuses.
// Validation faults are the client's; retrieval and generation faults are
// upstream dependencies, reported as bad gateway.
func (h *queryHandler) writeAnswerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, answer.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
	case errors.Is(err, notify.ErrChannelNotAllowed):
		writeError(w, http.StatusBadRequest, "channel_not_allowed", err.Error())
	case errors.Is(err, answer.ErrRetrieval):
		h.logger.Error("retrieval failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, "retrieval_failed", "failed to retrieve context")
	case errors.Is(err, answer.ErrGeneration):
		h.logger.Error("generation failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, "generation_failed", "failed to generate answer")
	default:
		h.logger.Error("answer pipeline failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
