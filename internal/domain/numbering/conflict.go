package numbering

import (
	"context"
	"strings"

	"ordernum/internal/core/apperror"
	"ordernum/pkg/logger"
)

// defaultFailureMessage is shown when the server gave nothing better.
const defaultFailureMessage = "Failed to save the order. Please try again."

// ConflictHandler turns a failed commit into the draft's next state.
type ConflictHandler struct {
	ctrl *Controller
}

// NewConflictHandler creates a handler bound to one draft.
func NewConflictHandler(ctrl *Controller) *ConflictHandler {
	return &ConflictHandler{ctrl: ctrl}
}

// Handle inspects a commit failure.
//
// An allocation conflict marks the draft as conflicted, asks for exactly one
// fresh preview and is returned unchanged so the caller can show the server's
// message. The commit is never retried here.
//
// Anything else returns the draft to editing and comes back as
// SUBMISSION_FAILED carrying the most specific message available.
func (h *ConflictHandler) Handle(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	if apperror.IsAllocationConflict(err) {
		snap := h.ctrl.Snapshot()
		logger.Warn(ctx, "number allocation conflict",
			"number", snap.Number,
			"mode", snap.Mode,
			"period_key", snap.PeriodKey)
		h.ctrl.enterConflict(ctx)
		return err
	}

	h.ctrl.endSubmit(ctx)

	appErr, ok := apperror.AsAppError(err)
	if ok && appErr.Code == apperror.CodeSubmissionFailed && strings.TrimSpace(appErr.Message) != "" {
		return appErr
	}

	status := 0
	message := defaultFailureMessage
	if ok {
		status = appErr.HTTPStatus
		if m := strings.TrimSpace(appErr.Message); m != "" {
			message = m
		}
	}

	logger.Error(ctx, "order submission failed", "error", err)
	return apperror.NewSubmissionFailed(status, message).WithCause(err)
}
