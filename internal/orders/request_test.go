package orders

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/apperr"
)

func validRequest() CreateOrderRequest {
	return CreateOrderRequest{
		Items: []ItemRequest{{ID: "1", Name: "Kaos", Price: 45000, Quantity: 2}},
		CustomerInfo: CustomerInfoRequest{
			Name:  "Budi Santoso",
			Email: "budi@mail.com",
			Phone: "081234567890",
		},
		PaymentMethod: "qris",
	}
}

func TestCreateOrderRequestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateOrderRequest)
		field  string
	}{
		{"ok", func(*CreateOrderRequest) {}, ""},
		{"no items", func(r *CreateOrderRequest) { r.Items = nil }, "items"},
		{"empty items", func(r *CreateOrderRequest) { r.Items = []ItemRequest{} }, "items"},
		{"zero quantity", func(r *CreateOrderRequest) { r.Items[0].Quantity = 0 }, "items[0].quantity"},
		{"huge quantity", func(r *CreateOrderRequest) { r.Items[0].Quantity = MaxQuantity + 1 }, "items[0].quantity"},
		{"huge price", func(r *CreateOrderRequest) { r.Items[0].Price = 1 << 62 }, "items[0].price"},
		{"negative price", func(r *CreateOrderRequest) { r.Items[0].Price = -1 }, "items[0].price"},
		{"max line", func(r *CreateOrderRequest) { r.Items[0].Price, r.Items[0].Quantity = MaxUnitPrice, MaxQuantity }, ""},
		{"bad email", func(r *CreateOrderRequest) { r.CustomerInfo.Email = "budi" }, "customerInfo.email"},
		{"short phone", func(r *CreateOrderRequest) { r.CustomerInfo.Phone = "0812" }, "customerInfo.phone"},
		{"short name", func(r *CreateOrderRequest) { r.CustomerInfo.Name = "Bu" }, "customerInfo.name"},
		{"unknown payment", func(r *CreateOrderRequest) { r.PaymentMethod = "cash" }, "paymentMethod"},
		{"bare va prefix", func(r *CreateOrderRequest) { r.PaymentMethod = "virtual_account_" }, "paymentMethod"},
		{"va bank", func(r *CreateOrderRequest) { r.PaymentMethod = "virtual_account_bca" }, ""},
		{"bad shipping", func(r *CreateOrderRequest) { r.ShippingMethod = "drone" }, "shippingMethod"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			err := req.Validate()
			if tc.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *apperr.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tc.field)
		})
	}
}

func TestProductRefAcceptsStringAndNumber(t *testing.T) {
	var items []ItemRequest
	require.NoError(t, json.Unmarshal([]byte(`[{"id":"7"},{"id":8},{"id":"abc"}]`), &items))

	id, ok := items[0].ID.ID()
	assert.True(t, ok)
	assert.EqualValues(t, 7, id)

	id, ok = items[1].ID.ID()
	assert.True(t, ok)
	assert.EqualValues(t, 8, id)

	_, ok = items[2].ID.ID()
	assert.False(t, ok)
}

func TestRequestTotal(t *testing.T) {
	req := validRequest()
	req.Items = append(req.Items, ItemRequest{ID: "2", Name: "Topi", Price: 30000, Quantity: 3})
	assert.EqualValues(t, 180000, req.Total())
}

func TestSumLinesStopsAtOverflow(t *testing.T) {
	total, _, ok := sumLines([]ItemRequest{{Price: MaxUnitPrice, Quantity: MaxQuantity}, {Price: 5, Quantity: 2}})
	require.True(t, ok)
	assert.EqualValues(t, int64(MaxUnitPrice)*MaxQuantity+10, total)

	_, at, ok := sumLines([]ItemRequest{{Price: 1, Quantity: 1}, {Price: 1 << 62, Quantity: 2}})
	assert.False(t, ok)
	assert.Equal(t, 1, at)

	_, at, ok = sumLines([]ItemRequest{{Price: math.MaxInt64 - 1, Quantity: 1}, {Price: 2, Quantity: 1}})
	assert.False(t, ok)
	assert.Equal(t, 1, at)
}
