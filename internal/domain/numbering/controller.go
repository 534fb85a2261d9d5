package numbering

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ordernum/internal/core/apperror"
	appctx "ordernum/internal/core/context"
	"ordernum/internal/core/id"
	"ordernum/internal/core/numerator"
	"ordernum/pkg/logger"
)

// Badge texts shown next to the number field.
const (
	BadgePreview  = "preview, not final"
	BadgeLoading  = "loading preview"
	BadgeConflict = "number taken, new number requested"
	BadgeManual   = "manual"
	BadgeFinal    = "final"
)

// phase overlays the resting state derived from mode and number.
type phase int

const (
	phaseEditing phase = iota
	phaseConflict
	phaseSubmitting
)

// pendingPreview is the future of one preview request.
// done is closed once the fetch returns, whether or not its result was applied.
type pendingPreview struct {
	token     uint64
	periodKey numerator.PeriodKey
	done      chan struct{}
	result    Preview
}

// Snapshot is a consistent copy of the controller state for rendering.
type Snapshot struct {
	DraftID   id.ID
	EntityID  string
	Type      numerator.DocumentType
	State     State
	Mode      Mode
	Number    string
	Suggested string
	Date      time.Time
	PeriodKey numerator.PeriodKey
	// Manual is the persisted manual-number flag sent with every commit.
	Manual bool

	// Version increases with every state change. Subscribers never see
	// a lower Version after a higher one.
	Version uint64

	PreviewLoading bool
	Conflict       bool
	Submitting     bool
	NumberEditable bool
	Badge          string

	Fields Fields
	Total  decimal.Decimal
	Status string
}

// Controller owns one order draft and its number-mode state machine.
// All methods are safe for concurrent use; preview fetches run in their own
// goroutines and report back through resolve.
type Controller struct {
	mu sync.Mutex

	previewer Previewer

	draftID  id.ID
	entityID string
	docType  numerator.DocumentType
	mode     Mode
	manual   bool
	phase    phase

	number    string
	suggested string
	date      time.Time
	periodKey numerator.PeriodKey
	fields    Fields
	total     decimal.Decimal
	status    string

	// token is the latest issued preview token; only its result is applied.
	token   uint64
	pending *pendingPreview

	refreshAfterSubmit bool

	listeners map[uint64]func(Snapshot)
	nextSub   uint64
	version   uint64

	// notifyMu orders delivery; delivered is the last Version handed out.
	notifyMu  sync.Mutex
	delivered uint64
}

// NewController creates a controller for a new document in AUTO mode with an
// empty number. Call Start to fetch the first preview.
func NewController(docType numerator.DocumentType, date time.Time, previewer Previewer) *Controller {
	c := &Controller{
		previewer: previewer,
		draftID:   id.New(),
		docType:   numerator.NormalizeDocumentType(string(docType)),
		mode:      ModeAuto,
		listeners: make(map[uint64]func(Snapshot)),
	}
	c.setDateLocked(date)
	return c
}

// NewLockedController creates a controller for an existing document.
// The number comes from the stored record and is never refetched or edited.
func NewLockedController(existing Existing, previewer Previewer) *Controller {
	c := &Controller{
		previewer: previewer,
		draftID:   id.New(),
		entityID:  existing.ID,
		docType:   numerator.NormalizeDocumentType(string(existing.Type)),
		mode:      ModeLocked,
		manual:    existing.Manual,
		number:    existing.StoredNumber(),
		fields:    existing.Fields.clone(),
		listeners: make(map[uint64]func(Snapshot)),
	}
	c.setDateLocked(existing.Date)
	c.total = c.fields.Total()
	return c
}

// Subscribe registers fn to receive a snapshot after every state change.
// Snapshots arrive in Version order; one overtaken by a newer change is
// skipped. fn must not call methods that change the controller.
// The returned func removes the subscription.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSub++
	key := c.nextSub
	c.listeners[key] = fn
	return func() {
		c.mu.Lock()
		delete(c.listeners, key)
		c.mu.Unlock()
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Context tags ctx with the draft id for logging.
func (c *Controller) Context(ctx context.Context) context.Context {
	return appctx.WithDraftID(ctx, c.draftID.String())
}

// Start fetches the first preview of a new AUTO draft. It is a no-op otherwise.
func (c *Controller) Start(ctx context.Context) {
	c.mutate(func() error {
		if c.mode == ModeAuto && c.isNewLocked() {
			c.requestPreviewLocked(ctx)
		}
		return nil
	})
}

// SetDate changes the business date. For a new AUTO draft the period key is
// recomputed and a fresh preview is requested; a number from a different
// period is discarded right away.
func (c *Controller) SetDate(ctx context.Context, date time.Time) {
	c.mutate(func() error {
		previous := c.periodKey
		c.setDateLocked(date)

		if c.mode != ModeAuto || !c.isNewLocked() {
			return nil
		}
		if c.periodKey != previous {
			c.number = ""
		}
		if c.phase == phaseSubmitting {
			// A fetch for the old period may still be awaited by the submit.
			// Its result no longer applies, but its future still completes.
			if c.pending != nil && c.pending.periodKey != c.periodKey {
				c.invalidatePendingLocked()
			}
			c.refreshAfterSubmit = true
			return nil
		}
		c.requestPreviewLocked(ctx)
		return nil
	})
}

// SwitchToManual moves a new draft from AUTO to MANUAL. The number and the
// conflict indicator are cleared and any in-flight preview is ignored.
// There is no way back to AUTO for this draft.
func (c *Controller) SwitchToManual() error {
	return c.mutate(func() error {
		switch {
		case c.mode == ModeLocked:
			return apperror.NewModeLocked()
		case c.phase == phaseSubmitting:
			return apperror.NewSubmitInProgress()
		case c.mode == ModeManual:
			return nil
		}

		c.mode = ModeManual
		c.manual = true
		c.number = ""
		c.suggested = ""
		c.phase = phaseEditing
		c.invalidatePendingLocked()
		return nil
	})
}

// SetManualNumber stores the user's number. Only allowed in MANUAL mode.
// The value is not checked against any format.
func (c *Controller) SetManualNumber(value string) error {
	return c.mutate(func() error {
		switch c.mode {
		case ModeLocked:
			return apperror.NewModeLocked()
		case ModeAuto:
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"Number is assigned by the system in auto mode")
		}
		if c.phase == phaseSubmitting {
			return apperror.NewSubmitInProgress()
		}
		c.number = value
		return nil
	})
}

// Edit changes the business fields.
func (c *Controller) Edit(fn func(f *Fields)) {
	c.mutate(func() error {
		fn(&c.fields)
		c.total = c.fields.Total()
		return nil
	})
}

// RefreshPreview requests a new preview for a new AUTO draft, for example
// after an earlier preview came back empty.
func (c *Controller) RefreshPreview(ctx context.Context) {
	c.mutate(func() error {
		if c.mode == ModeAuto && c.isNewLocked() && c.phase != phaseSubmitting {
			c.requestPreviewLocked(ctx)
		}
		return nil
	})
}

// --- transitions used by the submission path ---

// beginSubmit gates the submit action and captures the state the payload is
// built from. The conflict indicator is cleared here: it stays visible until
// the next submit attempt.
func (c *Controller) beginSubmit() (payloadState, error) {
	var st payloadState
	err := c.mutate(func() error {
		if c.phase == phaseSubmitting {
			return apperror.NewSubmitInProgress()
		}
		c.phase = phaseSubmitting
		st = c.payloadStateLocked()
		return nil
	})
	return st, err
}

// endSubmit returns to editing after a failed, non-conflict attempt.
func (c *Controller) endSubmit(ctx context.Context) {
	c.mutate(func() error {
		c.phase = phaseEditing
		if c.refreshAfterSubmit {
			c.refreshAfterSubmit = false
			if c.mode == ModeAuto && c.isNewLocked() {
				c.requestPreviewLocked(ctx)
			}
		}
		return nil
	})
}

// enterConflict marks the draft as conflicted and requests exactly one new
// preview for the current period. An AUTO number is dropped because the
// server has just refused it. A locked document keeps its number.
func (c *Controller) enterConflict(ctx context.Context) {
	c.mutate(func() error {
		c.phase = phaseConflict
		c.refreshAfterSubmit = false
		if c.mode == ModeLocked {
			return nil
		}
		if c.mode == ModeAuto {
			c.number = ""
		}
		c.requestPreviewLocked(ctx)
		return nil
	})
}

// numberSource reports what the AUTO path can use right now for periodKey.
// current is false once the draft has moved to another period.
func (c *Controller) numberSource(periodKey numerator.PeriodKey) (number string, pending *pendingPreview, current bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.periodKey != periodKey {
		return "", nil, false
	}
	return c.number, c.pending, true
}

// requestPreview issues a preview request for periodKey from outside the lock.
// It returns nil when the draft is no longer in that period.
func (c *Controller) requestPreview(ctx context.Context, periodKey numerator.PeriodKey) *pendingPreview {
	var p *pendingPreview
	c.mutate(func() error {
		if c.periodKey == periodKey {
			p = c.requestPreviewLocked(ctx)
		}
		return nil
	})
	return p
}

// setNumber records the number that is about to be sent. An AUTO number is
// dropped when the date moved to another period after the submit started.
func (c *Controller) setNumber(number string, periodKey numerator.PeriodKey) {
	c.mutate(func() error {
		if c.mode == ModeAuto && c.periodKey != periodKey {
			return nil
		}
		c.number = number
		return nil
	})
}

// reconcile applies the server's record after a successful commit.
// The document now exists server-side, so the draft becomes LOCKED.
func (c *Controller) reconcile(result *CommitResult) {
	c.mutate(func() error {
		c.entityID = result.EntityID
		c.number = result.Number
		c.mode = ModeLocked
		c.manual = result.Manual
		c.phase = phaseEditing
		c.suggested = ""
		c.refreshAfterSubmit = false
		c.invalidatePendingLocked()
		c.total = result.TotalAmount
		c.status = result.Status
		return nil
	})
}

// payloadState is what the submission path needs to build a commit payload.
type payloadState struct {
	entityID  string
	docType   numerator.DocumentType
	mode      Mode
	manual    bool
	number    string
	date      time.Time
	periodKey numerator.PeriodKey
	fields    Fields
}

func (c *Controller) payloadStateLocked() payloadState {
	return payloadState{
		entityID:  c.entityID,
		docType:   c.docType,
		mode:      c.mode,
		manual:    c.manual,
		number:    c.number,
		date:      c.date,
		periodKey: c.periodKey,
		fields:    c.fields.clone(),
	}
}

// --- internals; callers hold c.mu ---

func (c *Controller) isNewLocked() bool {
	return c.entityID == ""
}

func (c *Controller) setDateLocked(date time.Time) {
	c.date = date
	if date.IsZero() {
		c.periodKey = ""
		return
	}
	c.periodKey = numerator.PeriodKeyFromDate(date)
}

// requestPreviewLocked supersedes any in-flight request and starts a new one.
// Without a period key nothing is requested.
func (c *Controller) requestPreviewLocked(ctx context.Context) *pendingPreview {
	if c.periodKey == "" {
		c.invalidatePendingLocked()
		return nil
	}

	c.token++
	p := &pendingPreview{
		token:     c.token,
		periodKey: c.periodKey,
		done:      make(chan struct{}),
	}
	c.pending = p

	// The fetch outlives the edit that triggered it.
	fetchCtx := context.WithoutCancel(c.Context(ctx))
	docType, previewer := c.docType, c.previewer
	go func() {
		result := previewer.GetPreview(fetchCtx, docType, p.periodKey)
		c.resolve(fetchCtx, p, result)
	}()
	return p
}

func (c *Controller) invalidatePendingLocked() {
	c.token++
	c.pending = nil
}

// resolve applies a finished fetch if it is still the latest one.
func (c *Controller) resolve(ctx context.Context, p *pendingPreview, result Preview) {
	c.mutate(func() error {
		p.result = result
		close(p.done)

		if p.token != c.token || p.periodKey != c.periodKey {
			logger.Debug(ctx, "discarding stale preview",
				"token", p.token,
				"latest", c.token,
				"period_key", p.periodKey,
				"current_period_key", c.periodKey)
			if p.token == c.token {
				c.pending = nil
			}
			return nil
		}

		c.pending = nil
		switch c.mode {
		case ModeAuto:
			c.number = result.Formatted
		case ModeManual:
			c.suggested = result.Formatted
		}
		return nil
	})
}

// mutate runs fn under the lock and notifies subscribers when it succeeds.
func (c *Controller) mutate(fn func() error) error {
	c.mu.Lock()
	if err := fn(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.version++
	snap := c.snapshotLocked()
	listeners := make([]func(Snapshot), 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	c.notify(snap, listeners)
	return nil
}

// notify delivers snap unless a newer snapshot already went out.
func (c *Controller) notify(snap Snapshot, listeners []func(Snapshot)) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if snap.Version <= c.delivered {
		return
	}
	c.delivered = snap.Version
	for _, l := range listeners {
		l(snap)
	}
}

func (c *Controller) stateLocked() State {
	switch {
	case c.phase == phaseSubmitting:
		return StateSubmitting
	case c.phase == phaseConflict:
		return StateConflict
	case c.mode == ModeLocked:
		return StateLocked
	case c.mode == ModeManual:
		return StateManualEntry
	case c.pending != nil:
		return StatePreviewLoading
	case c.number != "":
		return StatePreviewReady
	default:
		return StateIdle
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	state := c.stateLocked()
	return Snapshot{
		DraftID:        c.draftID,
		EntityID:       c.entityID,
		Type:           c.docType,
		State:          state,
		Mode:           c.mode,
		Number:         c.number,
		Suggested:      c.suggested,
		Date:           c.date,
		PeriodKey:      c.periodKey,
		Manual:         c.manual,
		Version:        c.version,
		PreviewLoading: c.pending != nil,
		Conflict:       c.phase == phaseConflict,
		Submitting:     c.phase == phaseSubmitting,
		NumberEditable: c.mode == ModeManual && c.phase != phaseSubmitting,
		Badge:          c.badgeLocked(state),
		Fields:         c.fields.clone(),
		Total:          c.total,
		Status:         c.status,
	}
}

func (c *Controller) badgeLocked(state State) string {
	switch {
	case state == StateConflict:
		return BadgeConflict
	case c.mode == ModeLocked:
		return BadgeFinal
	case c.mode == ModeManual:
		return BadgeManual
	case c.pending != nil:
		return BadgeLoading
	case strings.TrimSpace(c.number) != "":
		return BadgePreview
	}
	return ""
}
