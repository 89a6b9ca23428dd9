package orders

const (
	TopicOrderPaid           = "order.paid"
	TopicOrderFulfilled      = "order.fulfilled"
	TopicFulfillmentRejected = "order.fulfillment.rejected"
)

// Partition key = order_id, so all events for one order keep their order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
