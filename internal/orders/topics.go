package orders

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status.changed"
	TopicPaymentReconciled  = "order.payment.reconciled"
)

// Partition key = order id, so every event of one order stays ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
