package orders

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ordernum/internal/core/apperror"
	appctx "ordernum/internal/core/context"
	"ordernum/internal/core/id"
	"ordernum/internal/core/numerator"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, o *Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *mockRepo) Update(ctx context.Context, o *Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *mockRepo) GetByID(ctx context.Context, orderID id.ID) (*Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(*Order)
	return o, args.Error(1)
}

func (m *mockRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(*Order)
	return o, args.Error(1)
}

func (m *mockRepo) GetLines(ctx context.Context, orderID id.ID) ([]Line, error) {
	args := m.Called(ctx, orderID)
	lines, _ := args.Get(0).([]Line)
	return lines, args.Error(1)
}

func (m *mockRepo) SaveLines(ctx context.Context, orderID id.ID, lines []Line) error {
	return m.Called(ctx, orderID, lines).Error(0)
}

// inlineTx runs fn without a database.
type inlineTx struct{}

func (inlineTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func validInput() CreateInput {
	return CreateInput{
		Type:      "SO",
		Number:    "SO202512-00001",
		PeriodKey: "202512",
		Date:      day("2025-12-01"),
		PartyID:   "P-001",
		Lines: []Line{
			{ProductID: "A", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("10.50")},
			{ProductID: "B", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(4)},
		},
	}
}

func TestService_CreateAllocatesAuthoritativeNumber(t *testing.T) {
	repo := &mockRepo{}
	var gotCfg numerator.Config
	var gotPeriod time.Time
	gen := &numerator.MockGenerator{
		GetNextNumberFunc: func(_ context.Context, cfg numerator.Config, _ *numerator.Options, period time.Time) (string, error) {
			gotCfg, gotPeriod = cfg, period
			return numerator.Format(cfg, period, 2), nil
		},
	}
	repo.On("Create", mock.Anything, mock.AnythingOfType("*orders.Order")).Return(nil).Once()
	repo.On("SaveLines", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u-1"})
	o, err := NewService(repo, gen, inlineTx{}, nil).Create(ctx, validInput())
	require.NoError(t, err)

	assert.Equal(t, "SO202512-00002", o.Number)
	assert.Equal(t, numerator.SalesOrder, o.Type)
	assert.Equal(t, numerator.PeriodKey("202512"), o.PeriodKey)
	assert.Equal(t, "SO", gotCfg.Prefix)
	assert.Equal(t, day("2025-12-01"), gotPeriod)
	assert.True(t, decimal.NewFromInt(25).Equal(o.TotalAmount))
	assert.Equal(t, 2, o.Lines[1].LineNo)
	assert.Equal(t, "u-1", o.CreatedBy)
	assert.Equal(t, StatusDraft, o.Status)
	repo.AssertExpectations(t)
}

func TestService_CreateManualKeepsNumber(t *testing.T) {
	repo := &mockRepo{}
	gen := &numerator.MockGenerator{
		GetNextNumberFunc: func(context.Context, numerator.Config, *numerator.Options, time.Time) (string, error) {
			t.Fatal("manual orders must not consume a sequence value")
			return "", nil
		},
	}
	repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	repo.On("SaveLines", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	in := validInput()
	in.ManualNumber = true
	in.Number = "  CUSTOM-1 "

	o, err := NewService(repo, gen, inlineTx{}, nil).Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "CUSTOM-1", o.Number)
	assert.True(t, o.ManualNumber)
}

func TestService_CreateConflictPassesThrough(t *testing.T) {
	repo := &mockRepo{}
	repo.On("Create", mock.Anything, mock.Anything).
		Return(apperror.NewAllocationConflict("SO202512-00001")).Once()

	_, err := NewService(repo, &numerator.MockGenerator{}, inlineTx{}, nil).Create(context.Background(), validInput())
	require.Error(t, err)
	assert.True(t, apperror.IsAllocationConflict(err))
	repo.AssertNotCalled(t, "SaveLines", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_CreateValidation(t *testing.T) {
	repo := &mockRepo{}
	in := validInput()
	in.Type = "INVOICE"
	in.PartyID = " "
	in.ManualNumber = true
	in.Number = ""
	in.Lines = nil

	_, err := NewService(repo, &numerator.MockGenerator{}, inlineTx{}, nil).Create(context.Background(), in)
	require.Error(t, err)

	fields := apperror.FieldErrors(err)
	assert.Contains(t, fields, "type")
	assert.Contains(t, fields, "party_id")
	assert.Contains(t, fields, "lines")
	assert.Contains(t, fields, "number")
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_Preview(t *testing.T) {
	gen := &numerator.MockGenerator{
		PeekNextNumberFunc: func(_ context.Context, cfg numerator.Config, period time.Time) (string, error) {
			return numerator.Format(cfg, period, 7), nil
		},
	}
	svc := NewService(&mockRepo{}, gen, inlineTx{}, nil)

	got, err := svc.Preview(context.Background(), "purchase_order", "202601")
	require.NoError(t, err)
	assert.Equal(t, "PO202601-00007", got)

	_, err = svc.Preview(context.Background(), "INVOICE", "202601")
	assert.True(t, apperror.IsValidation(err))
}

func storedOrder() *Order {
	o := NewOrder(numerator.SalesOrder, day("2025-12-01"))
	o.Number = "SO202512-00001"
	o.PartyID = "P-001"
	o.SetLines([]Line{{ProductID: "A", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1)}})
	return o
}

func TestService_UpdateKeepsNumber(t *testing.T) {
	stored := storedOrder()
	repo := &mockRepo{}
	repo.On("GetForUpdate", mock.Anything, stored.ID).Return(stored, nil)
	repo.On("Update", mock.Anything, stored).Return(nil).Once()
	repo.On("SaveLines", mock.Anything, stored.ID, mock.Anything).Return(nil).Once()
	svc := NewService(repo, &numerator.MockGenerator{}, inlineTx{}, nil)

	o, err := svc.Update(context.Background(), stored.ID, UpdateInput{
		Number:  "SO202512-00001",
		Date:    day("2025-12-20"),
		PartyID: "P-002",
		Lines:   []Line{{ProductID: "C", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(5)}},
	})
	require.NoError(t, err)
	assert.Equal(t, "SO202512-00001", o.Number)
	assert.Equal(t, "P-002", o.PartyID)
	assert.True(t, decimal.NewFromInt(15).Equal(o.TotalAmount))
}

func TestService_UpdateRejectsNumberChange(t *testing.T) {
	stored := storedOrder()
	repo := &mockRepo{}
	repo.On("GetForUpdate", mock.Anything, stored.ID).Return(stored, nil)

	_, err := NewService(repo, &numerator.MockGenerator{}, inlineTx{}, nil).
		Update(context.Background(), stored.ID, UpdateInput{Number: "SO202512-00099", Date: stored.Date, PartyID: "P-001", Lines: stored.Lines})

	assert.True(t, apperror.HasCode(err, apperror.CodeNumberImmutable))
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestService_Process(t *testing.T) {
	stored := storedOrder()
	repo := &mockRepo{}
	repo.On("GetForUpdate", mock.Anything, stored.ID).Return(stored, nil)
	repo.On("Update", mock.Anything, stored).Return(nil)
	repo.On("GetLines", mock.Anything, stored.ID).Return(stored.Lines, nil)
	svc := NewService(repo, &numerator.MockGenerator{}, inlineTx{}, nil)

	o, err := svc.Process(context.Background(), stored.ID, ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, o.Status)

	_, err = svc.Process(context.Background(), stored.ID, ActionApprove)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidAction))

	o, err = svc.Process(context.Background(), stored.ID, ActionCancel)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)

	_, err = svc.Update(context.Background(), stored.ID, UpdateInput{Date: stored.Date, PartyID: "P", Lines: stored.Lines})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidAction))
}
