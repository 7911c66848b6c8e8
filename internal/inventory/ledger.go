// Package inventory holds the stock ledger. Both operations take an open
// pgx.Tx on purpose: a reservation must commit or roll back together with
// the order rows that caused it, so callers cannot reserve outside a
// transaction.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var ErrInsufficientStock = errors.New("insufficient stock")

// Reserve decrements stock for one product. The floor check and the
// decrement are a single statement, so two concurrent checkouts cannot both
// pass a read-then-write check and oversell.
func Reserve(ctx context.Context, tx pgx.Tx, productID string, qty int) error {
	ct, err := tx.Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2, updated_at = now()
		WHERE id = $1 AND stock_quantity >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %s qty %d", ErrInsufficientStock, productID, qty)
	}
	return nil
}

// Release returns previously reserved stock. Only the cancellation path may
// call it, and only from a state the order can legally be cancelled in, so a
// retried cancel cannot double-release.
func Release(ctx context.Context, tx pgx.Tx, productID string, qty int) error {
	_, err := tx.Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id = $1`, productID, qty)
	return err
}
