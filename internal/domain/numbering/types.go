// Package numbering coordinates how an order draft acquires, displays and
// commits its document number: preview in AUTO mode, free text in MANUAL mode,
// immutable in LOCKED mode, and recovery from allocation conflicts.
package numbering

import (
	"context"

	"ordernum/internal/core/numerator"
)

// Mode is how the draft's number is sourced.
type Mode string

const (
	// ModeAuto: the system proposes a number via preview; the field is read-only.
	ModeAuto Mode = "AUTO"
	// ModeManual: the user types any non-empty number.
	ModeManual Mode = "MANUAL"
	// ModeLocked: the document exists server-side; its number never changes.
	ModeLocked Mode = "LOCKED"
)

// State is the observable state of a draft's number.
type State int

const (
	StateIdle State = iota
	StatePreviewLoading
	StatePreviewReady
	StateManualEntry
	StateLocked
	StateConflict
	StateSubmitting
)

var stateNames = map[State]string{
	StateIdle:           "Idle",
	StatePreviewLoading: "PreviewLoading",
	StatePreviewReady:   "PreviewReady",
	StateManualEntry:    "ManualEntry",
	StateLocked:         "Locked",
	StateConflict:       "Conflict",
	StateSubmitting:     "Submitting",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Preview is a candidate number. It is not reserved and may be taken by
// another document before commit.
type Preview struct {
	Formatted string `json:"formatted"`
}

// Previewer fetches previews. Implementations never fail: an unavailable
// preview is an empty one.
type Previewer interface {
	GetPreview(ctx context.Context, docType numerator.DocumentType, periodKey numerator.PeriodKey) Preview
}

// Committer persists drafts on the server.
// A number collision must be reported as apperror.CodeAllocationConflict.
type Committer interface {
	Create(ctx context.Context, payload CommitPayload) (*CommitResult, error)
	Update(ctx context.Context, entityID string, payload CommitPayload) (*CommitResult, error)
}
