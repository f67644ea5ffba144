// Package orderstest provides an in-memory orders.Store for tests.
package orderstest

import (
	"context"
	"sort"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/apperr"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/orders"
)

type MemStore struct {
	mu       sync.Mutex
	orders   map[string]*orders.Order
	payments map[string]*orders.Payment
	nextID   int64

	// FailCreate, when set, is returned by CreateOrder and nothing is stored.
	FailCreate error
	// Writes counts successful mutating calls.
	Writes int
}

var _ orders.Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		orders:   map[string]*orders.Order{},
		payments: map[string]*orders.Payment{},
	}
}

func (m *MemStore) id() int64 {
	m.nextID++
	return m.nextID
}

func cloneOrder(o *orders.Order) *orders.Order {
	c := *o
	c.Items = append([]orders.OrderItem(nil), o.Items...)
	c.Payment = nil
	return &c
}

func clonePayment(p *orders.Payment) *orders.Payment {
	c := *p
	return &c
}

func (m *MemStore) CreateOrder(_ context.Context, o *orders.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCreate != nil {
		return m.FailCreate
	}
	now := time.Now().UTC()
	o.Version = 1
	o.CreatedAt, o.UpdatedAt = now, now
	for i := range o.Items {
		o.Items[i].ID = m.id()
		o.Items[i].OrderID = o.ID
	}
	m.orders[o.ID] = cloneOrder(o)
	if o.Payment != nil {
		o.Payment.ID = m.id()
		o.Payment.OrderID = o.ID
		o.Payment.CreatedAt, o.Payment.UpdatedAt = now, now
		m.payments[o.ID] = clonePayment(o.Payment)
	}
	m.Writes++
	return nil
}

func (m *MemStore) GetOrder(_ context.Context, id string) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	c := cloneOrder(o)
	if c.Items == nil {
		c.Items = []orders.OrderItem{}
	}
	if p, ok := m.payments[id]; ok {
		c.Payment = clonePayment(p)
	}
	return c, nil
}

func (m *MemStore) ListOrders(_ context.Context) ([]orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]orders.Order, 0, len(m.orders))
	for _, o := range m.orders {
		c := cloneOrder(o)
		c.Items = nil
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) DeleteOrder(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return false, nil
	}
	delete(m.orders, id)
	delete(m.payments, id)
	m.Writes++
	return true, nil
}

func (m *MemStore) UpdateStatus(_ context.Context, id string, expectedVersion int, to orders.Status) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if o.Version != expectedVersion {
		return nil, apperr.ErrConflict
	}
	o.Status = to
	o.Version++
	o.UpdatedAt = time.Now().UTC()
	m.Writes++
	c := cloneOrder(o)
	c.Items = nil
	return c, nil
}

func (m *MemStore) GetPayment(_ context.Context, orderID string) (*orders.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[orderID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return clonePayment(p), nil
}

func (m *MemStore) SetPaymentToken(_ context.Context, orderID, token, redirectURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[orderID]
	if !ok {
		return apperr.ErrNotFound
	}
	p.Token, p.RedirectURL = &token, &redirectURL
	m.Writes++
	return nil
}

func (m *MemStore) ApplyPaymentUpdate(_ context.Context, u orders.PaymentUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[u.OrderID]
	if !ok {
		return apperr.ErrNotFound
	}
	o, ok := m.orders[u.OrderID]
	if !ok {
		return apperr.ErrNotFound
	}
	if p.Status != u.FromPaymentStatus || o.Version != u.OrderVersion {
		return apperr.ErrConflict
	}
	p.Status = u.PaymentStatus
	if u.PaidAt != nil {
		t := *u.PaidAt
		p.PaidAt = &t
	}
	p.UpdatedAt = time.Now().UTC()
	if u.OrderStatus != nil {
		o.Status = *u.OrderStatus
	}
	o.Version++
	o.UpdatedAt = p.UpdatedAt
	m.Writes++
	return nil
}

// RemovePayment drops the payment row of an order, leaving the order.
func (m *MemStore) RemovePayment(orderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.payments, orderID)
}

// Message is one captured Publish call.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Publisher records published events.
type Publisher struct {
	mu       sync.Mutex
	Messages []Message
}

func (p *Publisher) Publish(topic string, key, value []byte, _ ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = append(p.Messages, Message{Topic: topic, Key: key, Value: value})
}

func (p *Publisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.Messages))
	for _, m := range p.Messages {
		out = append(out, m.Topic)
	}
	return out
}
