package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ordernum/internal/core/apperror"
	appctx "ordernum/internal/core/context"
	"ordernum/internal/core/id"
	"ordernum/internal/core/numerator"
	"ordernum/internal/core/tx"
	"ordernum/pkg/logger"
)

// CreateInput is what a client commits for a new order.
// Number is the previewed value in AUTO mode and the user's value in MANUAL mode.
type CreateInput struct {
	Type         numerator.DocumentType
	Number       string
	ManualNumber bool
	PeriodKey    numerator.PeriodKey
	Date         time.Time
	PartyID      string
	DueDate      *time.Time
	Comment      string
	Lines        []Line
}

// UpdateInput replaces the business fields of a stored order.
// A non-empty Number must equal the stored one.
type UpdateInput struct {
	Number  string
	Date    time.Time
	PartyID string
	DueDate *time.Time
	Comment string
	Lines   []Line
}

// Service assigns numbers and stores orders.
type Service struct {
	repo      Repository
	numerator numerator.Generator
	txManager tx.Manager
	opts      *numerator.Options
}

// NewService creates an order service. A nil opts means strict allocation.
func NewService(repo Repository, gen numerator.Generator, txManager tx.Manager, opts *numerator.Options) *Service {
	if opts == nil {
		opts = numerator.DefaultOptions()
	}
	return &Service{
		repo:      repo,
		numerator: gen,
		txManager: txManager,
		opts:      opts,
	}
}

// Preview returns the number the next AUTO order of the type and period would
// receive. No sequence is advanced.
func (s *Service) Preview(ctx context.Context, rawType string, period numerator.PeriodKey) (string, error) {
	docType := numerator.NormalizeDocumentType(rawType)
	if !docType.Known() {
		return "", apperror.NewValidation("unknown document type").WithDetail("type", rawType)
	}
	if period == "" {
		return "", apperror.NewValidation("period is required").WithDetail("field", "date")
	}

	number, err := s.numerator.PeekNextNumber(ctx, numerator.ConfigFor(docType), period.Start())
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("peek number: %w", err))
	}
	return number, nil
}

// Create stores a new order. AUTO orders get a freshly allocated number,
// which may differ from the one the client previewed. MANUAL orders keep the
// given number. A taken number fails with ALLOCATION_CONFLICT.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	o := NewOrder(in.Type, in.Date)
	o.ManualNumber = in.ManualNumber
	o.Number = strings.TrimSpace(in.Number)
	o.PartyID = strings.TrimSpace(in.PartyID)
	o.DueDate = in.DueDate
	o.Comment = in.Comment
	o.CreatedBy = appctx.GetUserID(ctx)
	o.SetLines(in.Lines)

	if err := o.Validate(); err != nil {
		return nil, err
	}
	if in.PeriodKey != "" && in.PeriodKey != o.PeriodKey {
		logger.Warn(ctx, "client period key differs from order date",
			"client_period_key", in.PeriodKey,
			"period_key", o.PeriodKey)
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if !o.ManualNumber {
			number, err := s.numerator.GetNextNumber(ctx, numerator.ConfigFor(o.Type), s.opts, o.PeriodKey.Start())
			if err != nil {
				return fmt.Errorf("allocate number: %w", err)
			}
			o.Number = number
		}

		if err := s.repo.Create(ctx, o); err != nil {
			return err
		}
		return s.repo.SaveLines(ctx, o.ID, o.Lines)
	})
	if err != nil {
		if apperror.IsAllocationConflict(err) {
			logger.Warn(ctx, "order number already taken",
				"type", o.Type,
				"number", o.Number,
				"manual", o.ManualNumber)
		}
		return nil, err
	}

	if !o.ManualNumber && in.Number != "" && in.Number != o.Number {
		logger.Info(ctx, "previewed number superseded",
			"previewed", in.Number,
			"assigned", o.Number)
	}
	logger.Info(ctx, "order created",
		"id", o.ID,
		"type", o.Type,
		"number", o.Number,
		"manual", o.ManualNumber)

	return o, nil
}

// Update replaces the business fields of an order. The number never changes.
func (s *Service) Update(ctx context.Context, orderID id.ID, in UpdateInput) (*Order, error) {
	var o *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := o.CanModify(); err != nil {
			return err
		}
		if n := strings.TrimSpace(in.Number); n != "" && n != o.Number {
			return apperror.NewBusinessRule(apperror.CodeNumberImmutable, "Order number cannot be changed").
				WithDetail("number", o.Number)
		}

		o.Date = in.Date
		o.PartyID = strings.TrimSpace(in.PartyID)
		o.DueDate = in.DueDate
		o.Comment = in.Comment
		o.SetLines(in.Lines)
		if err := o.Validate(); err != nil {
			return err
		}

		if err := s.repo.Update(ctx, o); err != nil {
			return err
		}
		return s.repo.SaveLines(ctx, o.ID, o.Lines)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "order updated", "id", o.ID, "number", o.Number)
	return o, nil
}

// Process applies a lifecycle action.
func (s *Service) Process(ctx context.Context, orderID id.ID, action string) (*Order, error) {
	var o *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := o.Apply(action); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, o); err != nil {
			return err
		}
		o.Lines, err = s.repo.GetLines(ctx, o.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "order processed", "id", o.ID, "action", action, "status", o.Status)
	return o, nil
}

// GetByID loads an order with its lines.
func (s *Service) GetByID(ctx context.Context, orderID id.ID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	o.Lines = lines

	return o, nil
}
