package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lamvt/go-shop-orders/internal/inventory"
)

var ErrNotFound = errors.New("order not found")

type Repo struct{ DB *pgxpool.Pool }

// nextCodeSeq allocates the daily order code sequence. The upsert is a
// single statement, so concurrent checkouts on the same day get distinct,
// strictly increasing numbers.
func nextCodeSeq(ctx context.Context, tx pgx.Tx, day string) (int, error) {
	var seq int
	err := tx.QueryRow(ctx, `
		INSERT INTO order_code_seqs (seq_date, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (seq_date) DO UPDATE SET last_seq = order_code_seqs.last_seq + 1
		RETURNING last_seq`, day).Scan(&seq)
	return seq, err
}

// CreateOrderTx persists the order, its item snapshots and the stock
// reservations, and clears the cart, all in one transaction. Any failure
// (including an insufficient-stock race lost after validation) rolls the
// whole checkout back.
func (r *Repo) CreateOrderTx(ctx context.Context, o *Order, cartID string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now()
	seq, err := nextCodeSeq(ctx, tx, CodeDay(now))
	if err != nil {
		return err
	}
	o.ID = uuid.NewString()
	o.Code = FormatCode(now, seq)
	o.Status = StatusPending
	o.PaymentStatus = PaymentPending
	o.CreatedAt = now
	o.UpdatedAt = now

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, code, customer_id, subtotal, shipping_fee, discount, total_amount,
		                    status, payment_method, payment_status,
		                    shipping_name, shipping_phone, shipping_address, note,
		                    created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$15)`,
		o.ID, o.Code, o.CustomerID, o.Subtotal, o.ShippingFee, o.Discount, o.TotalAmount,
		o.Status, o.PaymentMethod, o.PaymentStatus,
		o.ShippingName, o.ShippingPhone, o.ShippingAddress, o.Note, now)
	if err != nil {
		return err
	}

	for i := range o.Items {
		it := &o.Items[i]
		if err := inventory.Reserve(ctx, tx, it.ProductID, it.Quantity); err != nil {
			return err
		}
		it.ID = uuid.NewString()
		it.OrderID = o.ID
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, product_image,
			                         quantity, unit_price, total_price)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			it.ID, it.OrderID, it.ProductID, it.ProductName, it.ProductImage,
			it.Quantity, it.UnitPrice, it.TotalPrice)
		if err != nil {
			return err
		}
	}

	// Clear the cart's items, not the cart row itself.
	if cartID != "" {
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

const orderColumns = `id, code, customer_id, subtotal, shipping_fee, discount, total_amount,
	status, payment_method, payment_status, paid_at,
	shipping_name, shipping_phone, shipping_address, note, created_at, updated_at`

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(
		&o.ID, &o.Code, &o.CustomerID, &o.Subtotal, &o.ShippingFee, &o.Discount, &o.TotalAmount,
		&o.Status, &o.PaymentMethod, &o.PaymentStatus, &o.PaidAt,
		&o.ShippingName, &o.ShippingPhone, &o.ShippingAddress, &o.Note, &o.CreatedAt, &o.UpdatedAt)
}

func (r *Repo) FindByCode(ctx context.Context, code string) (*Order, error) {
	var o Order
	err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE code = $1`, code), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, product_name, product_image, quantity, unit_price, total_price
		FROM order_items WHERE order_id = $1`, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.ProductImage,
			&it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

func (r *Repo) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// TransitionTx applies one status transition with a guard on the expected
// current status; the affected-row count decides whether this caller won.
// markPaid covers COD settlement on delivery.
func (r *Repo) TransitionTx(ctx context.Context, orderID string, from, to Status, markPaid bool) (bool, error) {
	var ct int64
	if markPaid {
		tag, err := r.DB.Exec(ctx, `
			UPDATE orders
			SET status = $3, payment_status = 'paid', paid_at = now(), updated_at = now()
			WHERE id = $1 AND status = $2`, orderID, from, to)
		if err != nil {
			return false, err
		}
		ct = tag.RowsAffected()
	} else {
		tag, err := r.DB.Exec(ctx, `
			UPDATE orders SET status = $3, updated_at = now()
			WHERE id = $1 AND status = $2`, orderID, from, to)
		if err != nil {
			return false, err
		}
		ct = tag.RowsAffected()
	}
	return ct == 1, nil
}

// CancelOrderTx flips the order to cancelled and releases the stock of every
// item in the same transaction. The status guard makes a second cancel a
// no-op, so stock is restored at most once. Any pending payment transaction
// of the order is cancelled with it; their request ids come back so the
// caller can drop the cached status views.
func (r *Repo) CancelOrderTx(ctx context.Context, orderID string, from Status) (bool, []string, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE orders SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status = $2`, orderID, from)
	if err != nil {
		return false, nil, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil, nil
	}

	rows, err := tx.Query(ctx, `SELECT product_id, quantity FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return false, nil, err
	}
	type rec struct {
		pid string
		qty int
	}
	var recs []rec
	for rows.Next() {
		var x rec
		if err := rows.Scan(&x.pid, &x.qty); err != nil {
			rows.Close()
			return false, nil, err
		}
		recs = append(recs, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, nil, err
	}

	for _, x := range recs {
		if err := inventory.Release(ctx, tx, x.pid, x.qty); err != nil {
			return false, nil, err
		}
	}

	prows, err := tx.Query(ctx, `
		UPDATE payment_transactions SET status = 'cancelled', updated_at = now()
		WHERE order_id = $1 AND status = 'pending'
		RETURNING request_id`, orderID)
	if err != nil {
		return false, nil, err
	}
	var voided []string
	for prows.Next() {
		var rid string
		if err := prows.Scan(&rid); err != nil {
			prows.Close()
			return false, nil, err
		}
		voided = append(voided, rid)
	}
	prows.Close()
	if err := prows.Err(); err != nil {
		return false, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, nil, err
	}
	return true, voided, nil
}
