package numbering

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ordernum/internal/core/numerator"
)

// previewRequest is one call observed by gatedPreviewer. The call blocks until
// the test sends on reply.
type previewRequest struct {
	docType   numerator.DocumentType
	periodKey numerator.PeriodKey
	reply     chan Preview
}

func (r previewRequest) respond(formatted string) {
	r.reply <- Preview{Formatted: formatted}
}

// gatedPreviewer hands every call to the test and waits for its answer.
type gatedPreviewer struct {
	requests chan previewRequest
}

func newGatedPreviewer() *gatedPreviewer {
	return &gatedPreviewer{requests: make(chan previewRequest, 16)}
}

func (g *gatedPreviewer) GetPreview(_ context.Context, docType numerator.DocumentType, periodKey numerator.PeriodKey) Preview {
	req := previewRequest{docType: docType, periodKey: periodKey, reply: make(chan Preview, 1)}
	g.requests <- req
	return <-req.reply
}

func (g *gatedPreviewer) next(t *testing.T) previewRequest {
	t.Helper()
	select {
	case req := <-g.requests:
		return req
	case <-time.After(time.Second):
		require.FailNow(t, "expected a preview request")
		return previewRequest{}
	}
}

// take collects n requests keyed by period; goroutines may enqueue in any order.
func (g *gatedPreviewer) take(t *testing.T, n int) map[numerator.PeriodKey]previewRequest {
	t.Helper()
	out := make(map[numerator.PeriodKey]previewRequest, n)
	for i := 0; i < n; i++ {
		req := g.next(t)
		out[req.periodKey] = req
	}
	return out
}

func (g *gatedPreviewer) pending() int {
	return len(g.requests)
}

// funcPreviewer answers immediately.
type funcPreviewer struct {
	fn    func(periodKey numerator.PeriodKey) string
	calls atomic.Int32
}

func (f *funcPreviewer) GetPreview(_ context.Context, _ numerator.DocumentType, periodKey numerator.PeriodKey) Preview {
	f.calls.Add(1)
	return Preview{Formatted: f.fn(periodKey)}
}

func fixedPreviewer(formatted string) *funcPreviewer {
	return &funcPreviewer{fn: func(numerator.PeriodKey) string { return formatted }}
}

type mockCommitter struct {
	mock.Mock
}

func (m *mockCommitter) Create(ctx context.Context, payload CommitPayload) (*CommitResult, error) {
	args := m.Called(ctx, payload)
	res, _ := args.Get(0).(*CommitResult)
	return res, args.Error(1)
}

func (m *mockCommitter) Update(ctx context.Context, entityID string, payload CommitPayload) (*CommitResult, error) {
	args := m.Called(ctx, entityID, payload)
	res, _ := args.Get(0).(*CommitResult)
	return res, args.Error(1)
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func fillValid(c *Controller) {
	c.Edit(func(f *Fields) {
		f.PartyID = "P-001"
		f.Lines = []Line{{
			ProductID: "PROD-1",
			Quantity:  decimal.NewFromInt(2),
			UnitPrice: decimal.RequireFromString("10.50"),
		}}
	})
}

func waitState(t *testing.T, c *Controller, want State) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Snapshot().State == want
	}, time.Second, 5*time.Millisecond, "state never became %s", want)
	return c.Snapshot()
}

func waitNumber(t *testing.T, c *Controller, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Snapshot().Number == want
	}, time.Second, 5*time.Millisecond, "number never became %q", want)
}
