package orders

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/apperr"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/validation"
)

// ProductRef accepts both "12" and 12 on the wire.
type ProductRef string

func (r *ProductRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = ProductRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*r = ProductRef(n.String())
	return nil
}

// ID parses the reference into a catalog id; ok is false for anything
// that is not a positive integer.
func (r ProductRef) ID() (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(string(r)), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Per-line bounds; the validate tags below and in cart.Item repeat them.
const (
	MaxUnitPrice = 1_000_000_000
	MaxQuantity  = 10_000
)

type ItemRequest struct {
	ID       ProductRef        `json:"id" validate:"required"`
	Name     string            `json:"name" validate:"required"`
	Price    int64             `json:"price" validate:"gte=0,lte=1000000000"`
	Quantity int               `json:"quantity" validate:"min=1,max=10000"`
	Image    string            `json:"image,omitempty"`
	Variants map[string]string `json:"variants,omitempty"`
}

type CustomerInfoRequest struct {
	Name    string `json:"name" validate:"required,min=3"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required,min=10"`
	Address string `json:"address,omitempty"`
}

type CreateOrderRequest struct {
	UserID          *int64              `json:"userId,omitempty"`
	Items           []ItemRequest       `json:"items" validate:"required,min=1,dive"`
	CustomerInfo    CustomerInfoRequest `json:"customerInfo"`
	PaymentMethod   string              `json:"paymentMethod" validate:"required,payment_method"`
	ShippingMethod  string              `json:"shippingMethod,omitempty" validate:"omitempty,oneof=cod delivery"`
	ShippingAddress string              `json:"shippingAddress,omitempty"`
}

func (r *CreateOrderRequest) normalize() {
	r.CustomerInfo.Name = strings.TrimSpace(r.CustomerInfo.Name)
	r.CustomerInfo.Email = strings.TrimSpace(r.CustomerInfo.Email)
	r.CustomerInfo.Phone = strings.TrimSpace(r.CustomerInfo.Phone)
	r.CustomerInfo.Address = strings.TrimSpace(r.CustomerInfo.Address)
	r.ShippingAddress = strings.TrimSpace(r.ShippingAddress)
	r.PaymentMethod = strings.ToLower(strings.TrimSpace(r.PaymentMethod))
	r.ShippingMethod = strings.ToLower(strings.TrimSpace(r.ShippingMethod))
}

func (r *CreateOrderRequest) Validate() error {
	r.normalize()
	if err := validation.Struct(r); err != nil {
		return err
	}
	if _, i, ok := sumLines(r.Items); !ok {
		return apperr.NewValidationError(fmt.Sprintf("items[%d].price", i), "order total is too large")
	}
	return nil
}

// sumLines adds price x quantity over items, reporting the first line at
// which the sum would leave int64. Prices and quantities must be
// non-negative.
func sumLines(items []ItemRequest) (total int64, at int, ok bool) {
	for i, it := range items {
		if it.Quantity > 0 && it.Price > math.MaxInt64/int64(it.Quantity) {
			return 0, i, false
		}
		line := it.Price * int64(it.Quantity)
		if total > math.MaxInt64-line {
			return 0, i, false
		}
		total += line
	}
	return total, 0, true
}

// Total is the sum of price x quantity over the submitted lines. Only
// meaningful after Validate, which bounds it.
func (r *CreateOrderRequest) Total() int64 {
	total, _, _ := sumLines(r.Items)
	return total
}

type UpdateStatusRequest struct {
	Status Status `json:"status" validate:"required,oneof=pending-payment processing completed cancelled"`
}

func (r *UpdateStatusRequest) Validate() error {
	return validation.Struct(r)
}
