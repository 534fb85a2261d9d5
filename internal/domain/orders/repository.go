package orders

import (
	"context"

	"ordernum/internal/core/id"
)

// Repository stores orders.
// Create and Update report a (type, number) collision as apperror.CodeAllocationConflict.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Update(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, orderID id.ID) (*Order, error)
	GetForUpdate(ctx context.Context, orderID id.ID) (*Order, error)

	GetLines(ctx context.Context, orderID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, orderID id.ID, lines []Line) error
}
