package cart

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// GetLines loads the customer's cart joined with current product data.
// A customer with no cart row is treated the same as an empty cart.
func (r *Repo) GetLines(ctx context.Context, customerID string) (cartID string, lines []Line, err error) {
	err = r.DB.QueryRow(ctx, `SELECT id FROM carts WHERE customer_id = $1`, customerID).Scan(&cartID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT ci.id, ci.product_id, ci.quantity,
		       p.name, p.image, p.original_price, p.sale_price, p.stock_quantity, p.is_active
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at`, cartID)
	if err != nil {
		return "", nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var l Line
		l.Item.CartID = cartID
		if err := rows.Scan(
			&l.Item.ID, &l.Item.ProductID, &l.Item.Quantity,
			&l.Product.Name, &l.Product.Image, &l.Product.OriginalPrice,
			&l.Product.SalePrice, &l.Product.StockQuantity, &l.Product.IsActive,
		); err != nil {
			return "", nil, err
		}
		l.Product.ID = l.Item.ProductID
		lines = append(lines, l)
	}
	return cartID, lines, rows.Err()
}
