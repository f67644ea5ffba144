package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventPaymentReconciled  = "PaymentReconciled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemPrice struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
	Price     int64 `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID       string      `json:"order_id"`
	UserID        *int64      `json:"user_id,omitempty"`
	Items         []ItemPrice `json:"items"`
	TotalAmount   int64       `json:"total_amount"`
	PaymentMethod string      `json:"payment_method"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
	Version int    `json:"version"` // order version after the change
	Source  string `json:"source"`  // admin | reconciliation
}

type PaymentReconciledPayload struct {
	OrderID       string        `json:"order_id"`
	GatewayStatus string        `json:"gateway_status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	OrderStatus   Status        `json:"order_status"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
}

// Publisher is satisfied by the async kafka producer.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// PublishEvent wraps payload in a v1 envelope and hands it to pub.
// A nil publisher drops the event.
func PublishEvent(ctx context.Context, pub Publisher, producer, topic, eventType, orderID string, payload any) error {
	if pub == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: orderID,
		Payload:       raw,
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub.Publish(topic, PartitionKey(orderID), b,
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	return nil
}
