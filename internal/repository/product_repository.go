package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ilondustries/inventario/internal/domain"
)

// ErrInsufficientStock is returned by CheckAndAdjust when the adjustment
// would take on-hand stock below the expected floor.
var ErrInsufficientStock = errors.New("insufficient stock on hand")

// ProductRepository reads catalog rows and adjusts the single mutable
// quantity_on_hand field. Everything else belongs to the catalog.
type ProductRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	// CheckAndAdjust locks the product row, verifies that applying delta
	// keeps quantity_on_hand >= expectedMin, and writes the new quantity.
	// It participates in the caller's transaction: the row lock is held
	// until that transaction commits or rolls back, so two concurrent
	// deliveries cannot both pass the check against stale data.
	CheckAndAdjust(ctx context.Context, id int64, delta int, expectedMin int) (before, after int, err error)
}

type productRepository struct {
	q Querier
}

const productColumns = `id, code, name, description, unit_price, quantity_on_hand, stock_minimum, location, created_at, updated_at`

func (r *productRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id=$1`
	var p domain.Product
	if err := r.q.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Code,
		&p.Name,
		&p.Description,
		&p.UnitPrice,
		&p.QuantityOnHand,
		&p.StockMinimum,
		&p.Location,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepository) CheckAndAdjust(ctx context.Context, id int64, delta int, expectedMin int) (int, int, error) {
	var current int
	err := r.q.QueryRow(ctx,
		`SELECT quantity_on_hand FROM products WHERE id=$1 FOR UPDATE`, id,
	).Scan(&current)
	if err != nil {
		return 0, 0, err
	}

	next := current + delta
	if next < expectedMin {
		return current, current, ErrInsufficientStock
	}

	cmd, err := r.q.Exec(ctx,
		`UPDATE products SET quantity_on_hand=$1, updated_at=NOW() WHERE id=$2`, next, id)
	if err != nil {
		return current, current, err
	}
	if cmd.RowsAffected() == 0 {
		return current, current, pgx.ErrNoRows
	}
	return current, next, nil
}
