package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/apperr"
)

// Store is the persistence contract of the order aggregate. Reads return
// apperr.ErrNotFound for absent rows; every other failure wraps
// apperr.ErrPersistence.
type Store interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	DeleteOrder(ctx context.Context, id string) (bool, error)
	UpdateStatus(ctx context.Context, id string, expectedVersion int, to Status) (*Order, error)
	GetPayment(ctx context.Context, orderID string) (*Payment, error)
	SetPaymentToken(ctx context.Context, orderID, token, redirectURL string) error
	ApplyPaymentUpdate(ctx context.Context, u PaymentUpdate) error
}

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

const orderColumns = `id, user_id, total_amount, status, shipping_address, shipping_method,
	payment_method, customer_info, version, created_at, updated_at`

const paymentColumns = `id, order_id, amount, method, status, token, redirect_url, paid_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", apperr.ErrPersistence, op, err)
}

const foreignKeyViolation = "23503"

// insertOrderErr maps a failed order insert; orders.user_id is the only
// foreign key on the row.
func insertOrderErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return apperr.NewValidationError("userId", "unknown user")
	}
	return persistErr("insert order", err)
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	var status string
	err := row.Scan(&o.ID, &o.UserID, &o.TotalAmount, &status, &o.ShippingAddress, &o.ShippingMethod,
		&o.PaymentMethod, &o.CustomerInfo, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	return &o, nil
}

func scanPayment(row rowScanner) (*Payment, error) {
	var p Payment
	var status string
	err := row.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &status, &p.Token, &p.RedirectURL,
		&p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = PaymentStatus(status)
	return &p, nil
}

// CreateOrder inserts the order, its items and its payment in one
// transaction and fills DB-assigned fields back into o.
func (r *Repo) CreateOrder(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return persistErr("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO orders(id, user_id, total_amount, status, shipping_address, shipping_method, payment_method, customer_info)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING version, created_at, updated_at`,
		o.ID, o.UserID, o.TotalAmount, string(o.Status), o.ShippingAddress, o.ShippingMethod, o.PaymentMethod, o.CustomerInfo,
	).Scan(&o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return insertOrderErr(err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		variants := it.Variants
		if variants == nil {
			variants = map[string]string{}
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items(order_id, product_id, quantity, price, variants)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			o.ID, it.ProductID, it.Quantity, it.Price, variants,
		).Scan(&it.ID)
		if err != nil {
			return persistErr("insert order item", err)
		}
	}

	if p := o.Payment; p != nil {
		p.OrderID = o.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO payments(order_id, amount, method, status)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, updated_at`,
			o.ID, p.Amount, p.Method, string(p.Status),
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return persistErr("insert payment", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return persistErr("commit", err)
	}
	return nil
}

// GetOrder returns the order with items (joined to the catalog for display)
// and its payment when one exists.
func (r *Repo) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, persistErr("select order", err)
	}

	rows, err := r.DB.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, oi.variants,
		       COALESCE(p.name, ''), COALESCE(p.image, '')
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id`, id)
	if err != nil {
		return nil, persistErr("select order items", err)
	}
	defer rows.Close()

	o.Items = []OrderItem{}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price, &it.Variants,
			&it.Name, &it.Image); err != nil {
			return nil, persistErr("scan order item", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate order items", err)
	}

	p, err := r.GetPayment(ctx, id)
	switch {
	case err == nil:
		o.Payment = p
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}
	return o, nil
}

func (r *Repo) ListOrders(ctx context.Context) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, persistErr("list orders", err)
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, persistErr("scan order", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate orders", err)
	}
	return out, nil
}

// DeleteOrder removes the order; items and payment go with it (ON DELETE CASCADE).
func (r *Repo) DeleteOrder(ctx context.Context, id string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return false, persistErr("delete order", err)
	}
	return ct.RowsAffected() == 1, nil
}

// UpdateStatus writes the status only if the row still carries
// expectedVersion, bumping the version on success.
func (r *Repo) UpdateStatus(ctx context.Context, id string, expectedVersion int, to Status) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders SET status=$3, version=version+1, updated_at=now()
		WHERE id=$1 AND version=$2
		RETURNING `+orderColumns, id, expectedVersion, string(to)))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, persistErr("update order status", err)
	}
	return nil, r.missOrConflict(ctx, r.DB, id)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *Repo) missOrConflict(ctx context.Context, q querier, id string) error {
	var one int
	err := q.QueryRow(ctx, `SELECT 1 FROM orders WHERE id=$1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return persistErr("probe order", err)
	}
	return apperr.ErrConflict
}

func (r *Repo) GetPayment(ctx context.Context, orderID string) (*Payment, error) {
	p, err := scanPayment(r.DB.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id=$1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, persistErr("select payment", err)
	}
	return p, nil
}

func (r *Repo) SetPaymentToken(ctx context.Context, orderID, token, redirectURL string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE payments SET token=$2, redirect_url=$3, updated_at=now()
		WHERE order_id=$1`, orderID, token, redirectURL)
	if err != nil {
		return persistErr("update payment token", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ApplyPaymentUpdate writes payment status (and optionally order status)
// atomically. The payment write only lands if the row still carries
// u.FromPaymentStatus and the order still carries u.OrderVersion; either
// miss is ErrConflict. The order version is bumped on every applied update.
func (r *Repo) ApplyPaymentUpdate(ctx context.Context, u PaymentUpdate) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return persistErr("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE payments SET status=$2, paid_at=COALESCE($3, paid_at), updated_at=now()
		WHERE order_id=$1 AND status=$4`,
		u.OrderID, string(u.PaymentStatus), u.PaidAt, string(u.FromPaymentStatus))
	if err != nil {
		return persistErr("update payment", err)
	}
	if ct.RowsAffected() == 0 {
		return paymentMissOrConflict(ctx, tx, u.OrderID)
	}

	var status *string
	if u.OrderStatus != nil {
		s := string(*u.OrderStatus)
		status = &s
	}
	ct, err = tx.Exec(ctx, `
		UPDATE orders SET status=COALESCE($3, status), version=version+1, updated_at=now()
		WHERE id=$1 AND version=$2`, u.OrderID, u.OrderVersion, status)
	if err != nil {
		return persistErr("update order", err)
	}
	if ct.RowsAffected() == 0 {
		return r.missOrConflict(ctx, tx, u.OrderID)
	}

	if err := tx.Commit(ctx); err != nil {
		return persistErr("commit", err)
	}
	return nil
}

func paymentMissOrConflict(ctx context.Context, q querier, orderID string) error {
	var one int
	err := q.QueryRow(ctx, `SELECT 1 FROM payments WHERE order_id=$1`, orderID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return persistErr("probe payment", err)
	}
	return apperr.ErrConflict
}
