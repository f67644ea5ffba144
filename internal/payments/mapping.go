package payments

import "github.com/ibnuhabibr/kitversity-pm2-sub000/internal/orders"

// Gateway transaction statuses (Midtrans vocabulary).
const (
	GatewayCapture    = "capture"
	GatewaySettlement = "settlement"
	GatewayPending    = "pending"
	GatewayDeny       = "deny"
	GatewayCancel     = "cancel"
	GatewayExpire     = "expire"
)

// Outcome is the internal target state for a gateway status. A nil Order
// leaves the order status unchanged.
type Outcome struct {
	Payment orders.PaymentStatus
	Order   *orders.Status
}

func statusPtr(s orders.Status) *orders.Status { return &s }

// MapStatus translates a verified gateway status into internal statuses.
func MapStatus(gatewayStatus string) Outcome {
	switch gatewayStatus {
	case GatewayCapture, GatewaySettlement:
		return Outcome{Payment: orders.PaymentCompleted, Order: statusPtr(orders.StatusProcessing)}
	case GatewayDeny, GatewayCancel, GatewayExpire:
		return Outcome{Payment: orders.PaymentFailed, Order: statusPtr(orders.StatusCancelled)}
	case GatewayPending:
		return Outcome{Payment: orders.PaymentProcessing}
	default:
		return Outcome{Payment: orders.PaymentPending}
	}
}
