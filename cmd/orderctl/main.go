// Command orderctl drives one order draft against the allocation API:
// it previews a number, submits the draft and prints the committed number.
//
//	orderctl -type SO -date 2025-12-01 -party P1 -line A:2:10.50 [-manual NUMBER] [-id EXISTING] [-retry]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ordernum/internal/config"
	"ordernum/internal/core/apperror"
	appctx "ordernum/internal/core/context"
	"ordernum/internal/core/numerator"
	"ordernum/internal/domain/numbering"
	"ordernum/internal/infrastructure/client/rest"
	"ordernum/internal/infrastructure/client/sequence"
	"ordernum/internal/infrastructure/client/transactions"
	"ordernum/pkg/logger"
)

type lineFlags []numbering.Line

func (l *lineFlags) String() string {
	parts := make([]string, 0, len(*l))
	for _, line := range *l {
		parts = append(parts, fmt.Sprintf("%s:%s:%s", line.ProductID, line.Quantity, line.UnitPrice))
	}
	return strings.Join(parts, ",")
}

func (l *lineFlags) Set(raw string) error {
	line, err := parseLine(raw)
	if err != nil {
		return err
	}
	*l = append(*l, line)
	return nil
}

func parseLine(raw string) (numbering.Line, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return numbering.Line{}, fmt.Errorf("line %q: want product:qty:price", raw)
	}
	qty, err := decimal.NewFromString(parts[1])
	if err != nil {
		return numbering.Line{}, fmt.Errorf("line %q: quantity: %w", raw, err)
	}
	price, err := decimal.NewFromString(parts[2])
	if err != nil {
		return numbering.Line{}, fmt.Errorf("line %q: price: %w", raw, err)
	}
	return numbering.Line{ProductID: parts[0], Quantity: qty, UnitPrice: price}, nil
}

type options struct {
	docType  string
	date     string
	dueDate  string
	party    string
	comment  string
	manual   string
	entityID string
	lines    lineFlags
	retry    bool
	approve  bool
}

func main() {
	var opts options
	flag.StringVar(&opts.docType, "type", "SO", "document type: SO, PO, SALES_ORDER or PURCHASE_ORDER")
	flag.StringVar(&opts.date, "date", time.Now().Format("2006-01-02"), "business date (YYYY-MM-DD)")
	flag.StringVar(&opts.dueDate, "due", "", "due date (YYYY-MM-DD)")
	flag.StringVar(&opts.party, "party", "", "counterparty id")
	flag.StringVar(&opts.comment, "comment", "", "free-text comment")
	flag.StringVar(&opts.manual, "manual", "", "use this number instead of the preview")
	flag.StringVar(&opts.entityID, "id", "", "edit an existing order instead of creating one")
	flag.Var(&opts.lines, "line", "order line as product:qty:price (repeatable)")
	flag.BoolVar(&opts.retry, "retry", false, "resubmit once after an allocation conflict")
	flag.BoolVar(&opts.approve, "approve", false, "approve the order after a successful submit")
	flag.Parse()

	if err := config.LoadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg := config.LoadClient()

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.Development})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	ctx := logger.WithLogger(appctx.EnsureTrace(context.Background()), log)

	if err := run(ctx, cfg, opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		for field, msg := range apperror.FieldErrors(err) {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Client, opts options) error {
	rc := rest.New(cfg.BaseURL, rest.WithToken(cfg.Token), rest.WithTimeout(cfg.RequestTimeout))
	previews := sequence.New(rc)
	committer := transactions.New(rc)

	ctrl, err := newController(ctx, opts, previews, committer)
	if err != nil {
		return err
	}
	ctx = ctrl.Context(ctx)

	unsubscribe := ctrl.Subscribe(func(s numbering.Snapshot) {
		fmt.Printf("  [%s] %s %s\n", s.State, displayNumber(s.Number), s.Badge)
	})
	defer unsubscribe()

	ctrl.Edit(func(f *numbering.Fields) {
		if opts.party != "" {
			f.PartyID = opts.party
		}
		if opts.comment != "" {
			f.Comment = opts.comment
		}
		if len(opts.lines) > 0 {
			f.Lines = opts.lines
		}
		if opts.dueDate != "" {
			if due, err := time.Parse("2006-01-02", opts.dueDate); err == nil {
				f.DueDate = &due
			}
		}
	})

	if opts.manual != "" {
		if err := ctrl.SwitchToManual(); err != nil {
			return err
		}
		if err := ctrl.SetManualNumber(opts.manual); err != nil {
			return err
		}
	} else {
		ctrl.Start(ctx)
	}

	coordinator := numbering.NewCoordinator(ctrl, committer, numbering.WithPreviewWait(cfg.PreviewWait))

	result, err := coordinator.Submit(ctx)
	if err != nil && apperror.IsAllocationConflict(err) {
		s := ctrl.Snapshot()
		fmt.Printf("conflict: %v\n", err)
		if s.Suggested != "" {
			fmt.Printf("suggested number: %s\n", s.Suggested)
		}
		if opts.retry {
			fmt.Println("retrying once")
			result, err = coordinator.Submit(ctx)
		}
	}
	if err != nil {
		return err
	}

	fmt.Printf("committed %s %s (id %s, total %s, status %s)\n",
		result.Type, result.Number, result.EntityID, result.TotalAmount, result.Status)

	if opts.approve {
		approved, err := committer.Process(ctx, result.EntityID, transactions.ActionApprove)
		if err != nil {
			return err
		}
		fmt.Printf("approved %s (status %s)\n", approved.Number, approved.Status)
	}
	return nil
}

func newController(ctx context.Context, opts options, previews numbering.Previewer, committer *transactions.Client) (*numbering.Controller, error) {
	if opts.entityID != "" {
		existing, err := committer.Get(ctx, opts.entityID)
		if err != nil {
			return nil, err
		}
		return numbering.NewLockedController(existing, previews), nil
	}

	date, err := time.Parse("2006-01-02", opts.date)
	if err != nil {
		return nil, errors.New("-date must be YYYY-MM-DD")
	}
	docType := numerator.NormalizeDocumentType(opts.docType)
	if !docType.Known() {
		return nil, fmt.Errorf("unknown document type %q", opts.docType)
	}
	return numbering.NewController(docType, date, previews), nil
}

func displayNumber(n string) string {
	if n == "" {
		return "-"
	}
	return n
}
