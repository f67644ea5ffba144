package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/apperr"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/validation"
)

// Charger opens a hosted payment session for gateway-backed methods.
type Charger interface {
	CreateTransaction(ctx context.Context, o *Order) (token, redirectURL string, err error)
}

// Service owns order creation and status changes. Publisher and Charger
// are optional.
type Service struct {
	Store     Store
	Publisher Publisher
	Charger   Charger
	Log       *zap.Logger
	Producer  string
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// GatewayBacked reports whether a payment method settles through the
// payment gateway rather than a manual transfer confirmation.
func GatewayBacked(method string) bool {
	switch {
	case method == "gopay", method == "shopeepay":
		return true
	case strings.HasPrefix(method, validation.VirtualAccountPrefix):
		return true
	}
	return false
}

func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	total := req.Total()
	items := make([]OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		pid, ok := it.ID.ID()
		if !ok {
			s.log().Warn("skipping order line with unparseable product id", zap.String("product_ref", string(it.ID)))
			continue
		}
		items = append(items, OrderItem{
			ProductID: pid,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Variants:  it.Variants,
			Name:      it.Name,
			Image:     it.Image,
		})
	}

	address := req.ShippingAddress
	if address == "" {
		address = req.CustomerInfo.Address
	}
	if address == "" {
		address = DefaultShippingAddress
	}
	shipping := req.ShippingMethod
	if shipping == "" {
		shipping = ShippingDelivery
	}

	o := &Order{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		Items:           items,
		TotalAmount:     total,
		Status:          StatusPendingPayment,
		ShippingAddress: address,
		ShippingMethod:  shipping,
		PaymentMethod:   req.PaymentMethod,
		CustomerInfo: CustomerInfo{
			Name:    req.CustomerInfo.Name,
			Email:   req.CustomerInfo.Email,
			Phone:   req.CustomerInfo.Phone,
			Address: req.CustomerInfo.Address,
		},
		Payment: &Payment{
			Amount: total,
			Method: req.PaymentMethod,
			Status: PaymentPending,
		},
	}
	if err := s.Store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	s.log().Info("order created",
		zap.String("order_id", o.ID),
		zap.Int64("total_amount", o.TotalAmount),
		zap.Int("items", len(o.Items)),
		zap.String("payment_method", o.PaymentMethod),
	)

	if s.Charger != nil && GatewayBacked(o.PaymentMethod) {
		s.openGatewaySession(ctx, o)
	}

	prices := make([]ItemPrice, 0, len(o.Items))
	for _, it := range o.Items {
		prices = append(prices, ItemPrice{ProductID: it.ProductID, Qty: it.Quantity, Price: it.Price})
	}
	if err := PublishEvent(ctx, s.Publisher, s.Producer, TopicOrderCreated, EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID:       o.ID,
		UserID:        o.UserID,
		Items:         prices,
		TotalAmount:   o.TotalAmount,
		PaymentMethod: o.PaymentMethod,
	}); err != nil {
		s.log().Warn("publish order created", zap.String("order_id", o.ID), zap.Error(err))
	}

	stored, err := s.Store.GetOrder(ctx, o.ID)
	if err != nil {
		s.log().Warn("re-read created order", zap.String("order_id", o.ID), zap.Error(err))
		return o, nil
	}
	return stored, nil
}

// openGatewaySession is best-effort: the order stands even if the gateway
// is down, the customer can still pay manually.
func (s *Service) openGatewaySession(ctx context.Context, o *Order) {
	token, redirect, err := s.Charger.CreateTransaction(ctx, o)
	if err != nil {
		s.log().Warn("gateway transaction not created", zap.String("order_id", o.ID), zap.Error(err))
		return
	}
	if err := s.Store.SetPaymentToken(ctx, o.ID, token, redirect); err != nil {
		s.log().Warn("store gateway token", zap.String("order_id", o.ID), zap.Error(err))
		return
	}
	o.Payment.Token = &token
	o.Payment.RedirectURL = &redirect
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	if !validID(id) {
		return nil, apperr.ErrNotFound
	}
	return s.Store.GetOrder(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context) ([]Order, error) {
	return s.Store.ListOrders(ctx)
}

func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	if !validID(id) {
		return apperr.ErrNotFound
	}
	ok, err := s.Store.DeleteOrder(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrNotFound
	}
	s.log().Info("order deleted", zap.String("order_id", id))
	return nil
}

// UpdateStatus moves an order along the status graph. Writing the current
// status again is accepted and changes nothing.
func (s *Service) UpdateStatus(ctx context.Context, id string, to Status) (*Order, error) {
	req := UpdateStatusRequest{Status: to}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, apperr.ErrNotFound
	}

	cur, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status == to {
		return cur, nil
	}
	if !CanTransition(cur.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, cur.Status, to)
	}

	updated, err := s.Store.UpdateStatus(ctx, id, cur.Version, to)
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			s.log().Warn("order status update lost race", zap.String("order_id", id))
		}
		return nil, err
	}
	updated.Items = cur.Items
	updated.Payment = cur.Payment

	s.log().Info("order status changed",
		zap.String("order_id", id),
		zap.String("from", string(cur.Status)),
		zap.String("to", string(to)),
	)
	if err := PublishEvent(ctx, s.Publisher, s.Producer, TopicOrderStatusChanged, EventOrderStatusChanged, id,
		OrderStatusChangedPayload{OrderID: id, From: cur.Status, To: to, Version: updated.Version, Source: "admin"}); err != nil {
		s.log().Warn("publish status changed", zap.String("order_id", id), zap.Error(err))
	}
	return updated, nil
}
