package numbering

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ordernum/internal/core/apperror"
	"ordernum/internal/core/numerator"
	"ordernum/pkg/logger"
)

// DefaultPreviewWait bounds how long a submit waits for an in-flight preview.
const DefaultPreviewWait = 3 * time.Second

// CommitPayload is what a submit sends to the server.
type CommitPayload struct {
	Type         numerator.DocumentType
	Number       string
	ManualNumber bool
	PeriodKey    numerator.PeriodKey
	Date         time.Time
	PartyID      string
	DueDate      *time.Time
	Lines        []Line
	Comment      string
}

// CommitResult is the server's record after a successful commit.
// Its values win over anything held locally.
type CommitResult struct {
	EntityID    string
	Number      string
	Type        numerator.DocumentType
	Manual      bool
	PeriodKey   numerator.PeriodKey
	TotalAmount decimal.Decimal
	Status      string
}

// Coordinator runs the submit action for one draft.
type Coordinator struct {
	ctrl        *Controller
	committer   Committer
	conflicts   *ConflictHandler
	previewWait time.Duration
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithPreviewWait sets the bound on waiting for an in-flight preview.
func WithPreviewWait(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.previewWait = d
		}
	}
}

// NewCoordinator creates a coordinator for the draft owned by ctrl.
func NewCoordinator(ctrl *Controller, committer Committer, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		ctrl:        ctrl,
		committer:   committer,
		conflicts:   NewConflictHandler(ctrl),
		previewWait: DefaultPreviewWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit validates the draft, resolves its number and commits it.
// On success the draft takes the server's values and becomes LOCKED.
// Validation and readiness failures return before any network call.
func (c *Coordinator) Submit(ctx context.Context) (*CommitResult, error) {
	ctx = c.ctrl.Context(ctx)

	st, err := c.ctrl.beginSubmit()
	if err != nil {
		return nil, err
	}

	if err := validate(st.docType, st.mode, st.number, st.date, st.fields); err != nil {
		c.ctrl.endSubmit(ctx)
		return nil, err
	}

	number, err := c.resolveNumber(ctx, st)
	if err != nil {
		c.ctrl.endSubmit(ctx)
		return nil, err
	}
	c.ctrl.setNumber(number, st.periodKey)

	payload := CommitPayload{
		Type:         st.docType,
		Number:       number,
		ManualNumber: st.manual,
		PeriodKey:    st.periodKey,
		Date:         st.date,
		PartyID:      strings.TrimSpace(st.fields.PartyID),
		DueDate:      st.fields.DueDate,
		Lines:        validLines(st.fields.Lines),
		Comment:      st.fields.Comment,
	}

	var result *CommitResult
	if st.entityID != "" {
		result, err = c.committer.Update(ctx, st.entityID, payload)
	} else {
		result, err = c.committer.Create(ctx, payload)
	}
	if err != nil {
		return nil, c.conflicts.Handle(ctx, err)
	}

	if result == nil {
		c.ctrl.endSubmit(ctx)
		return nil, apperror.NewInconsistentState("Server returned no record")
	}
	if result.EntityID == "" {
		result.EntityID = st.entityID
	}
	if result.EntityID == "" {
		c.ctrl.endSubmit(ctx)
		return nil, apperror.NewInconsistentState("Server returned a record without an id")
	}
	if result.Number == "" {
		result.Number = number
	}

	c.ctrl.reconcile(result)
	logger.Info(ctx, "order committed",
		"entity_id", result.EntityID,
		"number", result.Number,
		"manual", payload.ManualNumber)
	return result, nil
}

func (c *Coordinator) resolveNumber(ctx context.Context, st payloadState) (string, error) {
	switch st.mode {
	case ModeLocked:
		if st.entityID == "" || strings.TrimSpace(st.number) == "" {
			return "", apperror.NewInconsistentState("Existing document has no stored number")
		}
		return st.number, nil
	case ModeManual:
		return strings.TrimSpace(st.number), nil
	default:
		return c.resolveAuto(ctx, st.periodKey)
	}
}

// resolveAuto uses the cached preview, else waits for the one in flight,
// else fetches one synchronously. A number is only taken for the period the
// submit started in.
func (c *Coordinator) resolveAuto(ctx context.Context, periodKey numerator.PeriodKey) (string, error) {
	number, pending, current := c.ctrl.numberSource(periodKey)
	if !current {
		logger.Warn(ctx, "period changed during submit", "period_key", periodKey)
		return "", apperror.NewNumberNotReady(periodKey.String())
	}
	if number != "" {
		return number, nil
	}

	if pending != nil {
		waitCtx, cancel := context.WithTimeout(ctx, c.previewWait)
		defer cancel()
		select {
		case <-pending.done:
		case <-waitCtx.Done():
			logger.Warn(ctx, "preview wait exceeded", "period_key", periodKey, "wait", c.previewWait)
			return "", apperror.NewNumberNotReady(periodKey.String())
		}
	} else {
		p := c.ctrl.requestPreview(ctx, periodKey)
		if p == nil {
			return "", apperror.NewNumberNotReady(periodKey.String())
		}
		select {
		case <-p.done:
		case <-ctx.Done():
			return "", apperror.NewNumberNotReady(periodKey.String()).WithCause(ctx.Err())
		}
	}

	if number, _, current = c.ctrl.numberSource(periodKey); !current || number == "" {
		return "", apperror.NewNumberNotReady(periodKey.String())
	}
	return number, nil
}

func validLines(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.Valid() {
			out = append(out, l)
		}
	}
	return out
}
