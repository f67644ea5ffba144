package orders

import "time"

const DefaultShippingAddress = "Alamat akan dikonfirmasi melalui WhatsApp"

const (
	ShippingCOD      = "cod"
	ShippingDelivery = "delivery"
)

// CustomerInfo is the contact snapshot captured at checkout.
type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address,omitempty"`
}

type Order struct {
	ID              string       `json:"id"`
	UserID          *int64       `json:"userId"`
	Items           []OrderItem  `json:"items,omitempty"`
	TotalAmount     int64        `json:"totalAmount"`
	Status          Status       `json:"status"`
	ShippingAddress string       `json:"shippingAddress"`
	ShippingMethod  string       `json:"shippingMethod"`
	PaymentMethod   string       `json:"paymentMethod"`
	CustomerInfo    CustomerInfo `json:"customerInfo"`
	Payment         *Payment     `json:"payment,omitempty"`
	Version         int          `json:"version"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// OrderItem copies the unit price at order time; Name and Image come from
// the catalog join and are display-only.
type OrderItem struct {
	ID        int64             `json:"id"`
	OrderID   string            `json:"orderId"`
	ProductID int64             `json:"productId"`
	Quantity  int               `json:"quantity"`
	Price     int64             `json:"price"`
	Variants  map[string]string `json:"variants,omitempty"`
	Name      string            `json:"name,omitempty"`
	Image     string            `json:"image,omitempty"`
}

type Payment struct {
	ID          int64         `json:"id"`
	OrderID     string        `json:"orderId"`
	Amount      int64         `json:"amount"`
	Method      string        `json:"method"`
	Status      PaymentStatus `json:"status"`
	Token       *string       `json:"token,omitempty"`
	RedirectURL *string       `json:"redirectUrl,omitempty"`
	PaidAt      *time.Time    `json:"paidAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// PaymentUpdate is applied atomically by the reconciliation path.
// FromPaymentStatus and OrderVersion are the values the caller read; the
// update is refused if either moved since. A nil OrderStatus keeps the
// order's status.
type PaymentUpdate struct {
	OrderID           string
	FromPaymentStatus PaymentStatus
	PaymentStatus     PaymentStatus
	PaidAt            *time.Time
	OrderStatus       *Status
	OrderVersion      int
}
