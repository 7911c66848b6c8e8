package orders

const (
	TopicOrderCreated   = "order.created"
	TopicOrderPaid      = "order.paid"
	TopicOrderCancelled = "order.cancelled"
	TopicOrderStatus    = "order.status.changed"
)

// Partition key = order code, so every event of one order keeps its order.
func PartitionKey(orderCode string) []byte { return []byte(orderCode) }
