package orders

// Status is the order lifecycle state.
type Status string

const (
	StatusPendingPayment Status = "pending-payment"
	StatusProcessing     Status = "processing"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPendingPayment: {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing:     {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted:      {},
	StatusCancelled:      {},
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// CanTransition reports whether an order may move from -> to.
// Same-status writes are not transitions; callers treat them as no-ops.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// PaymentStatus is the settlement state of an order's payment.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
)

var validPaymentNext = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentPending:    {PaymentProcessing: true, PaymentCompleted: true, PaymentFailed: true},
	PaymentProcessing: {PaymentCompleted: true, PaymentFailed: true},
	PaymentCompleted:  {},
	PaymentFailed:     {},
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	return validPaymentNext[from][to]
}
