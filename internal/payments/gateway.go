package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/apperr"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/orders"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/validation"
)

// Gateway talks to Midtrans: the Core API status endpoint for
// verification and Snap for hosted checkout sessions.
type Gateway struct {
	ServerKey string
	APIURL    string // e.g. https://api.sandbox.midtrans.com
	SnapURL   string // e.g. https://app.sandbox.midtrans.com/snap
	HTTP      *http.Client
}

var _ orders.Charger = (*Gateway)(nil)

func NewGateway(serverKey, apiURL, snapURL string) *Gateway {
	return &Gateway{
		ServerKey: serverKey,
		APIURL:    strings.TrimRight(apiURL, "/"),
		SnapURL:   strings.TrimRight(snapURL, "/"),
		HTTP:      &http.Client{Timeout: 10 * time.Second},
	}
}

// TransactionStatus is the authoritative record returned by the gateway.
type TransactionStatus struct {
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message"`
	TransactionID     string `json:"transaction_id"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	TransactionStatus string `json:"transaction_status"`
	SettlementTime    string `json:"settlement_time"`
	FraudStatus       string `json:"fraud_status"`
}

func (g *Gateway) client() *http.Client {
	if g.HTTP != nil {
		return g.HTTP
	}
	return http.DefaultClient
}

func (g *Gateway) do(req *http.Request, out any) (int, error) {
	req.SetBasicAuth(g.ServerKey, "")
	req.Header.Set("Accept", "application/json")
	resp, err := g.client().Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: read body: %w", apperr.ErrUpstream, err)
	}
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%w: gateway returned %d", apperr.ErrUpstream, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: decode: %w", apperr.ErrUpstream, err)
	}
	return resp.StatusCode, nil
}

// Status fetches the gateway's own view of an order's transaction. A
// transaction the gateway has never seen is reported as ErrStatusMismatch:
// a notification for it cannot be genuine.
func (g *Gateway) Status(ctx context.Context, orderID string) (*TransactionStatus, error) {
	u := g.APIURL + "/v2/" + url.PathEscape(orderID) + "/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrUpstream, err)
	}
	var st TransactionStatus
	if _, err := g.do(req, &st); err != nil {
		return nil, err
	}
	if st.StatusCode == "404" {
		return nil, fmt.Errorf("%w: transaction %s unknown to gateway", apperr.ErrStatusMismatch, orderID)
	}
	return &st, nil
}

type snapRequest struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	CustomerDetails struct {
		FirstName string `json:"first_name"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
	} `json:"customer_details"`
	EnabledPayments []string `json:"enabled_payments,omitempty"`
}

type snapResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// EnabledPayment maps a checkout payment method to the Snap channel name.
func EnabledPayment(method string) string {
	if bank, ok := strings.CutPrefix(method, validation.VirtualAccountPrefix); ok {
		return bank + "_va"
	}
	return method
}

// CreateTransaction opens a Snap session for the order.
func (g *Gateway) CreateTransaction(ctx context.Context, o *orders.Order) (string, string, error) {
	var body snapRequest
	body.TransactionDetails.OrderID = o.ID
	body.TransactionDetails.GrossAmount = o.TotalAmount
	body.CustomerDetails.FirstName = o.CustomerInfo.Name
	body.CustomerDetails.Email = o.CustomerInfo.Email
	body.CustomerDetails.Phone = o.CustomerInfo.Phone
	body.EnabledPayments = []string{EnabledPayment(o.PaymentMethod)}

	b, err := json.Marshal(body)
	if err != nil {
		return "", "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.SnapURL+"/v1/transactions", bytes.NewReader(b))
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", apperr.ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out snapResponse
	if _, err := g.do(req, &out); err != nil {
		return "", "", err
	}
	if out.Token == "" {
		return "", "", fmt.Errorf("%w: empty snap token", apperr.ErrUpstream)
	}
	return out.Token, out.RedirectURL, nil
}
