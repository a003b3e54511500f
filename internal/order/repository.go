package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// Repository is the order store. It is the only writer of order status.
type Repository interface {
	// Upsert replaces the whole row for o.OrderID, creating it if absent.
	Upsert(ctx context.Context, o *Order) error
	// UpdateStatus sets status (and the cancellation reason when non-nil).
	// It returns ErrOrderNotFound when no row matched.
	UpdateStatus(ctx context.Context, orderID string, status OrderStatus, reason *string) error
	GetStatus(ctx context.Context, orderID string) (OrderStatus, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const upsertOrderSQL = `
	INSERT INTO orders (
		order_id, status, cancellation_reason,
		total_amount, subtotal, shipping_amount, tax_amount, currency,
		customer_phone, birthday, gender,
		salesman_identifier, user_confirmation_url, user_cancel_url,
		shipping_info, billing_info, items, discounts, metadata,
		iute_response, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,NOW())
	ON CONFLICT (order_id) DO UPDATE SET
		status = EXCLUDED.status,
		cancellation_reason = EXCLUDED.cancellation_reason,
		total_amount = EXCLUDED.total_amount,
		subtotal = EXCLUDED.subtotal,
		shipping_amount = EXCLUDED.shipping_amount,
		tax_amount = EXCLUDED.tax_amount,
		currency = EXCLUDED.currency,
		customer_phone = EXCLUDED.customer_phone,
		birthday = EXCLUDED.birthday,
		gender = EXCLUDED.gender,
		salesman_identifier = EXCLUDED.salesman_identifier,
		user_confirmation_url = EXCLUDED.user_confirmation_url,
		user_cancel_url = EXCLUDED.user_cancel_url,
		shipping_info = EXCLUDED.shipping_info,
		billing_info = EXCLUDED.billing_info,
		items = EXCLUDED.items,
		discounts = EXCLUDED.discounts,
		metadata = EXCLUDED.metadata,
		iute_response = EXCLUDED.iute_response,
		updated_at = NOW()
`

func (r *PostgresRepository) Upsert(ctx context.Context, o *Order) error {
	_, err := r.db.ExecContext(ctx, upsertOrderSQL,
		o.OrderID,
		string(o.Status),
		o.CancellationReason,
		o.TotalAmount,
		o.Subtotal,
		o.ShippingAmount,
		o.TaxAmount,
		o.Currency,
		o.CustomerPhone,
		o.Birthday,
		o.Gender,
		o.SalesmanIdentifier,
		o.UserConfirmationURL,
		o.UserCancelURL,
		jsonArg(o.ShippingInfo),
		jsonArg(o.BillingInfo),
		jsonArg(o.Items),
		jsonArg(o.Discounts),
		jsonArg(o.Metadata),
		jsonArg(o.GatewayResponse),
	)
	return err
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, orderID string, status OrderStatus, reason *string) error {
	var (
		res sql.Result
		err error
	)
	if reason != nil {
		res, err = r.db.ExecContext(ctx, `
			UPDATE orders
			SET status = $1, cancellation_reason = $2, updated_at = NOW()
			WHERE order_id = $3
		`, string(status), *reason, orderID)
	} else {
		res, err = r.db.ExecContext(ctx, `
			UPDATE orders
			SET status = $1, updated_at = NOW()
			WHERE order_id = $2
		`, string(status), orderID)
	}
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *PostgresRepository) GetStatus(ctx context.Context, orderID string) (OrderStatus, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE order_id = $1`, orderID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", err
	}
	return OrderStatus(status), nil
}

// jsonArg passes JSONB as text; lib/pq would send []byte as bytea.
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
