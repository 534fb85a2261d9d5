// Package order_repo stores orders and their lines in PostgreSQL.
package order_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"ordernum/internal/core/apperror"
	"ordernum/internal/core/id"
	"ordernum/internal/domain/orders"
	"ordernum/internal/infrastructure/storage/postgres"
)

const (
	ordersTable = "orders"
	linesTable  = "order_lines"

	uniqueViolation  = "23505"
	numberConstraint = "uq_orders_type_number"
)

var (
	orderCols = postgres.ExtractDBColumns[orders.Order]()
	lineCols  = postgres.ExtractDBColumns[orders.Line]()
)

// Repo implements orders.Repository. Queries join the transaction carried by ctx.
type Repo struct {
	txm *postgres.TxManager
}

var _ orders.Repository = (*Repo)(nil)

// New creates an order repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{txm: txm}
}

func (r *Repo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts the order header.
func (r *Repo) Create(ctx context.Context, o *orders.Order) error {
	sql, args, err := r.builder().
		Insert(ordersTable).
		SetMap(postgres.Pick(postgres.StructToMap(o), orderCols)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return mapWriteError(err, o.Number)
	}
	return nil
}

// Update writes the mutable header fields, bumping version.
// A stale version yields CONCURRENT_MODIFICATION.
func (r *Repo) Update(ctx context.Context, o *orders.Order) error {
	data := postgres.Pick(postgres.StructToMap(o), orderCols,
		"id", "doc_type", "number", "manual_number", "period_key",
		"created_by", "created_at", "version", "updated_at")

	sql, args, err := r.builder().
		Update(ordersTable).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": o.ID, "version": o.Version}).
		Suffix("RETURNING version, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	err = r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&o.Version, &o.UpdatedAt)
	if err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewConcurrentModification(ordersTable, o.ID)
		}
		return mapWriteError(err, o.Number)
	}
	return nil
}

// GetByID loads the order header.
func (r *Repo) GetByID(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	return r.get(ctx, orderID, "")
}

// GetForUpdate loads the order header and locks the row until the transaction ends.
func (r *Repo) GetForUpdate(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	return r.get(ctx, orderID, "FOR UPDATE")
}

func (r *Repo) get(ctx context.Context, orderID id.ID, suffix string) (*orders.Order, error) {
	q := r.builder().
		Select(orderCols...).
		From(ordersTable).
		Where(squirrel.Eq{"id": orderID})
	if suffix != "" {
		q = q.Suffix(suffix)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var o orders.Order
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &o, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("order", orderID.String())
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

// GetLines loads the lines of an order in line order.
func (r *Repo) GetLines(ctx context.Context, orderID id.ID) ([]orders.Line, error) {
	sql, args, err := r.builder().
		Select(lineCols...).
		From(linesTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []orders.Line
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	return lines, nil
}

// SaveLines replaces all lines of an order.
func (r *Repo) SaveLines(ctx context.Context, orderID id.ID, lines []orders.Line) error {
	querier := r.txm.GetQuerier(ctx)

	sql, args, err := r.builder().
		Delete(linesTable).
		Where(squirrel.Eq{"order_id": orderID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete lines: %w", err)
	}

	if len(lines) == 0 {
		return nil
	}

	q := r.builder().Insert(linesTable).Columns(lineCols...)
	for _, l := range lines {
		l.OrderID = orderID
		row := postgres.StructToMap(l)
		values := make([]any, 0, len(lineCols))
		for _, c := range lineCols {
			values = append(values, row[c])
		}
		q = q.Values(values...)
	}

	sql, args, err = q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}
	return nil
}

// mapWriteError turns a (type, number) unique violation into ALLOCATION_CONFLICT.
func mapWriteError(err error, number string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == numberConstraint {
		return apperror.NewAllocationConflict(number).WithCause(err)
	}
	return fmt.Errorf("write order: %w", err)
}
