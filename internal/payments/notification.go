package payments

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/apperr"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/validation"
)

// Notification is the gateway webhook body. StatusCode, SignatureKey and
// FraudStatus are optional extras Midtrans sends along.
type Notification struct {
	TransactionStatus string `json:"transaction_status" validate:"required"`
	OrderID           string `json:"order_id" validate:"required"`
	PaymentType       string `json:"payment_type" validate:"required"`
	GrossAmount       string `json:"gross_amount" validate:"required"`
	SettlementTime    string `json:"settlement_time,omitempty"`
	StatusCode        string `json:"status_code,omitempty"`
	SignatureKey      string `json:"signature_key,omitempty"`
	FraudStatus       string `json:"fraud_status,omitempty"`
	TransactionID     string `json:"transaction_id,omitempty"`
}

const maxNotificationBytes = 64 << 10

func DecodeNotification(r io.Reader) (*Notification, error) {
	var n Notification
	if err := json.NewDecoder(io.LimitReader(r, maxNotificationBytes)).Decode(&n); err != nil {
		return nil, apperr.NewValidationError("body", "malformed JSON")
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return &n, nil
}

func (n *Notification) Validate() error {
	if err := validation.Struct(n); err != nil {
		return err
	}
	if _, err := ParseAmount(n.GrossAmount); err != nil {
		return apperr.NewValidationError("gross_amount", "must be a number")
	}
	return nil
}

var errAmountRange = errors.New("amount out of range")

// ParseAmount reads gateway amounts such as "90000.00" as whole rupiah.
// NaN, infinities and values beyond int64 are rejected.
func ParseAmount(s string) (int64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	f = math.Round(f)
	if math.IsNaN(f) || math.IsInf(f, 0) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, errAmountRange
	}
	return int64(f), nil
}

// Signature computes the Midtrans notification signature:
// hex(SHA512(order_id + status_code + gross_amount + server_key)).
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature checks the signature when the notification carries one.
// Without a server key there is nothing to verify against.
func (n *Notification) VerifySignature(serverKey string) error {
	if n.SignatureKey == "" || serverKey == "" {
		return nil
	}
	want := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	if subtle.ConstantTimeCompare([]byte(want), []byte(n.SignatureKey)) != 1 {
		return apperr.ErrInvalidSignature
	}
	return nil
}

// gatewayZone is the offset Midtrans timestamps are expressed in (WIB).
var gatewayZone = time.FixedZone("WIB", 7*60*60)

const gatewayTimeLayout = "2006-01-02 15:04:05"

// ParseGatewayTime parses "2006-01-02 15:04:05" in WIB.
func ParseGatewayTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(gatewayTimeLayout, s, gatewayZone)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
