package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/apperr"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/orders"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/redisx"
)

// Verifier returns the gateway's authoritative status for an order.
type Verifier interface {
	Status(ctx context.Context, orderID string) (*TransactionStatus, error)
}

// Store is the slice of orders.Store reconciliation needs.
type Store interface {
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
	GetPayment(ctx context.Context, orderID string) (*orders.Payment, error)
	ApplyPaymentUpdate(ctx context.Context, u orders.PaymentUpdate) error
}

// Reconciler applies gateway notifications to order and payment state.
// Everything but Store and Gateway is optional.
type Reconciler struct {
	Store     Store
	Gateway   Verifier
	ServerKey string
	Dedup     *redisx.Dedup
	Cache     *redisx.OrderCache
	Publisher orders.Publisher
	Outcomes  *prometheus.CounterVec
	Log       *zap.Logger
	Producer  string
	Now       func() time.Time
}

// Result reports what a notification did. Applied is false when the
// notification was already reflected in stored state.
type Result struct {
	OrderID       string               `json:"orderId"`
	PaymentStatus orders.PaymentStatus `json:"paymentStatus"`
	OrderStatus   orders.Status        `json:"orderStatus"`
	Applied       bool                 `json:"applied"`
}

func (r *Reconciler) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Reconciler) observe(outcome string) {
	if r.Outcomes != nil {
		r.Outcomes.WithLabelValues(outcome).Inc()
	}
}

func dedupID(n *Notification) string {
	return n.OrderID + ":" + n.TransactionStatus
}

// Handle verifies n against the gateway and applies the mapped statuses.
// Re-delivering a notification that was already applied succeeds without
// changing anything.
func (r *Reconciler) Handle(ctx context.Context, n *Notification) (*Result, error) {
	res, err := r.handle(ctx, n)
	switch {
	case err == nil && res.Applied:
		r.observe("applied")
	case err == nil:
		r.observe("unchanged")
	case apperr.IsValidation(err):
		r.observe("invalid")
	case errors.Is(err, apperr.ErrStatusMismatch), errors.Is(err, apperr.ErrInvalidSignature):
		r.observe("rejected")
		r.log().Warn("payment notification rejected",
			zap.String("order_id", n.OrderID),
			zap.String("claimed_status", n.TransactionStatus),
			zap.Error(err),
		)
	case errors.Is(err, apperr.ErrNotFound):
		r.observe("not_found")
	default:
		r.observe("error")
	}
	return res, err
}

func (r *Reconciler) handle(ctx context.Context, n *Notification) (*Result, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	if err := n.VerifySignature(r.ServerKey); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(n.OrderID); err != nil {
		return nil, apperr.ErrNotFound
	}

	if r.Dedup.Seen(ctx, dedupID(n)) {
		r.log().Info("duplicate payment notification", zap.String("order_id", n.OrderID),
			zap.String("status", n.TransactionStatus))
		return r.current(ctx, n.OrderID)
	}

	st, err := r.Gateway.Status(ctx, n.OrderID)
	if err != nil {
		if errors.Is(err, apperr.ErrStatusMismatch) || errors.Is(err, apperr.ErrUpstream) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", apperr.ErrUpstream, err)
	}
	if st.TransactionStatus != n.TransactionStatus {
		return nil, fmt.Errorf("%w: notification says %q, gateway says %q",
			apperr.ErrStatusMismatch, n.TransactionStatus, st.TransactionStatus)
	}

	var res *Result
	for attempt := 1; ; attempt++ {
		res, err = r.apply(ctx, n, st)
		if !errors.Is(err, apperr.ErrConflict) || attempt == maxApplyAttempts {
			break
		}
		r.log().Info("payment update raced, re-reading", zap.String("order_id", n.OrderID), zap.Int("attempt", attempt))
	}
	if err != nil {
		return nil, err
	}
	r.Dedup.Mark(ctx, dedupID(n))
	return res, nil
}

// maxApplyAttempts bounds re-reads when another writer moves the order or
// payment between read and write.
const maxApplyAttempts = 3

// apply reads the stored order and payment, decides the forward moves the
// gateway status allows and writes them guarded by what was read.
func (r *Reconciler) apply(ctx context.Context, n *Notification, st *TransactionStatus) (*Result, error) {
	order, err := r.Store.GetOrder(ctx, n.OrderID)
	if err != nil {
		return nil, err
	}
	pay, err := r.Store.GetPayment(ctx, n.OrderID)
	if err != nil {
		return nil, err
	}
	if amt, _ := ParseAmount(n.GrossAmount); amt != pay.Amount {
		return nil, fmt.Errorf("%w: amount %d does not match payment %d",
			apperr.ErrStatusMismatch, amt, pay.Amount)
	}

	out := MapStatus(st.TransactionStatus)
	res := &Result{OrderID: order.ID, PaymentStatus: pay.Status, OrderStatus: order.Status}

	upd := orders.PaymentUpdate{
		OrderID:           order.ID,
		FromPaymentStatus: pay.Status,
		PaymentStatus:     pay.Status,
		OrderVersion:      order.Version,
	}
	changed := false
	if out.Payment != pay.Status && orders.CanTransitionPayment(pay.Status, out.Payment) {
		upd.PaymentStatus = out.Payment
		changed = true
		if out.Payment == orders.PaymentCompleted {
			paidAt, ok := ParseGatewayTime(st.SettlementTime)
			if !ok {
				paidAt, ok = ParseGatewayTime(n.SettlementTime)
			}
			if !ok {
				paidAt = r.now().UTC()
			}
			upd.PaidAt = &paidAt
		}
	}
	if out.Order != nil && *out.Order != order.Status && orders.CanTransition(order.Status, *out.Order) {
		upd.OrderStatus = out.Order
		changed = true
	}

	if !changed {
		return res, nil
	}
	if err := r.Store.ApplyPaymentUpdate(ctx, upd); err != nil {
		return nil, err
	}

	version := order.Version + 1
	res.PaymentStatus = upd.PaymentStatus
	res.Applied = true
	if upd.OrderStatus != nil {
		res.OrderStatus = *upd.OrderStatus
	}
	r.Cache.SetStatus(ctx, order.ID, string(res.OrderStatus), version, r.now())

	r.log().Info("payment reconciled",
		zap.String("order_id", order.ID),
		zap.String("gateway_status", st.TransactionStatus),
		zap.String("payment_status", string(res.PaymentStatus)),
		zap.String("order_status", string(res.OrderStatus)),
	)
	r.publish(ctx, st.TransactionStatus, order.Status, version, upd, res)
	return res, nil
}

func (r *Reconciler) current(ctx context.Context, orderID string) (*Result, error) {
	order, err := r.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	res := &Result{OrderID: order.ID, OrderStatus: order.Status}
	if order.Payment != nil {
		res.PaymentStatus = order.Payment.Status
	}
	return res, nil
}

func (r *Reconciler) publish(ctx context.Context, gwStatus string, from orders.Status, version int, upd orders.PaymentUpdate, res *Result) {
	if err := orders.PublishEvent(ctx, r.Publisher, r.Producer, orders.TopicPaymentReconciled, orders.EventPaymentReconciled,
		res.OrderID, orders.PaymentReconciledPayload{
			OrderID:       res.OrderID,
			GatewayStatus: gwStatus,
			PaymentStatus: res.PaymentStatus,
			OrderStatus:   res.OrderStatus,
			PaidAt:        upd.PaidAt,
		}); err != nil {
		r.log().Warn("publish payment reconciled", zap.String("order_id", res.OrderID), zap.Error(err))
	}
	if upd.OrderStatus == nil {
		return
	}
	if err := orders.PublishEvent(ctx, r.Publisher, r.Producer, orders.TopicOrderStatusChanged, orders.EventOrderStatusChanged,
		res.OrderID, orders.OrderStatusChangedPayload{
			OrderID: res.OrderID, From: from, To: res.OrderStatus, Version: version, Source: "reconciliation",
		}); err != nil {
		r.log().Warn("publish status changed", zap.String("order_id", res.OrderID), zap.Error(err))
	}
}
