package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/airsense/internal/adapters/mq/queue"
	"github.com/okian/airsense/internal/domain/model"
)

// CommandDependencies accepts control commands for the sampling loop.
type CommandDependencies interface {
	Submit(ctx context.Context, c model.Command) error
}

// CommandHandler turns POST requests into sampling loop commands.
type CommandHandler struct {
	deps CommandDependencies
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(deps CommandDependencies) *CommandHandler {
	return &CommandHandler{deps: deps}
}

// HandleRefresh handles POST /refresh requests.
func (h *CommandHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, "api.refresh", model.CommandRefresh)
}

// HandleReinitialize handles POST /reinit requests.
func (h *CommandHandler) HandleReinitialize(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, "api.reinit", model.CommandReinitialize)
}

func (h *CommandHandler) submit(w http.ResponseWriter, r *http.Request, op string, kind model.CommandKind) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	err := h.deps.Submit(r.Context(), model.Command{Kind: kind, Origin: "http"})
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Command: kind.String()})
	case errors.Is(err, queue.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	case errors.Is(err, queue.ErrFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
	default:
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	}
}
