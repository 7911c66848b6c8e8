package payments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Create(ctx context.Context, t *Transaction) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO payment_transactions
			(id, request_id, order_id, provider, amount, status, signature_valid, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,false, now(), now())`,
		t.ID, t.RequestID, t.OrderID, t.Provider, t.Amount, t.Status)
	return err
}

const txColumns = `t.id, t.request_id, t.order_id, o.code, t.provider, t.amount, t.status,
	t.signature_valid, t.provider_tx_id, t.provider_response, t.created_at, t.updated_at`

func scanTx(row pgx.Row) (*Transaction, error) {
	var t Transaction
	var providerTxID *string
	err := row.Scan(&t.ID, &t.RequestID, &t.OrderID, &t.OrderCode, &t.Provider, &t.Amount, &t.Status,
		&t.SignatureValid, &providerTxID, &t.ProviderResponse, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	if providerTxID != nil {
		t.ProviderTxID = *providerTxID
	}
	return &t, nil
}

func (r *Repo) FindPendingByOrder(ctx context.Context, orderID string) (*Transaction, error) {
	return scanTx(r.DB.QueryRow(ctx, `
		SELECT `+txColumns+`
		FROM payment_transactions t JOIN orders o ON o.id = t.order_id
		WHERE t.order_id = $1 AND t.status = 'pending'
		ORDER BY t.created_at DESC LIMIT 1`, orderID))
}

func (r *Repo) FindByRequestID(ctx context.Context, requestID string) (*Transaction, error) {
	return scanTx(r.DB.QueryRow(ctx, `
		SELECT `+txColumns+`
		FROM payment_transactions t JOIN orders o ON o.id = t.order_id
		WHERE t.request_id = $1`, requestID))
}

// FindPendingByToken is the tolerant fallback for bank memos wrapped in
// extra text: the newest pending transaction whose request id occurs inside
// the token. strpos keeps the underscores in request ids literal. Scoping to
// pending narrows the ambiguity of substring matching but does not remove it
// entirely.
func (r *Repo) FindPendingByToken(ctx context.Context, token string) (*Transaction, error) {
	return scanTx(r.DB.QueryRow(ctx, `
		SELECT `+txColumns+`
		FROM payment_transactions t JOIN orders o ON o.id = t.order_id
		WHERE t.status = 'pending' AND strpos($1, t.request_id) > 0
		ORDER BY t.created_at DESC LIMIT 1`, token))
}

// SettleTx marks the transaction success and the order paid in one database
// transaction. The WHERE status = 'pending' guard makes concurrent duplicate
// deliveries race safely: exactly one caller sees rows affected = 1.
func (r *Repo) SettleTx(ctx context.Context, txID, orderID, providerTxID string, raw []byte) (bool, error) {
	return r.finishTx(ctx, txID, orderID, providerTxID, raw, StatusSuccess)
}

// FailTx is the same guard with a failed terminal state, used by providers
// that report explicit failures.
func (r *Repo) FailTx(ctx context.Context, txID, orderID, providerTxID string, raw []byte) (bool, error) {
	return r.finishTx(ctx, txID, orderID, providerTxID, raw, StatusFailed)
}

func (r *Repo) finishTx(ctx context.Context, txID, orderID, providerTxID string, raw []byte, to Status) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE payment_transactions
		SET status = $2, signature_valid = true, provider_tx_id = $3,
		    provider_response = $4, updated_at = now()
		WHERE id = $1 AND status = 'pending'`,
		txID, to, nullIfEmpty(providerTxID), raw)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if to == StatusSuccess {
		_, err = tx.Exec(ctx, `
			UPDATE orders SET payment_status = 'paid', paid_at = now(), updated_at = now()
			WHERE id = $1 AND payment_status = 'pending'`, orderID)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE orders SET payment_status = 'failed', updated_at = now()
			WHERE id = $1 AND payment_status = 'pending'`, orderID)
	}
	if err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repo) StatusByRequestID(ctx context.Context, requestID string) (*StatusView, error) {
	var v StatusView
	err := r.DB.QueryRow(ctx, `
		SELECT t.request_id, t.provider, t.status, o.code, o.payment_status, o.paid_at
		FROM payment_transactions t JOIN orders o ON o.id = t.order_id
		WHERE t.request_id = $1`, requestID).
		Scan(&v.RequestID, &v.Provider, &v.Status, &v.OrderCode, &v.PaymentStatus, &v.PaidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
