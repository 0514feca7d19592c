package orders

const (
	TopicOrderCreated    = "order.created"
	TopicOrderSettled    = "order.settled"
	TopicSettlementShort = "order.settlement.short"
)

// Partition key = order reference, so every event of one order keeps its order.
func PartitionKey(orderRef string) []byte { return []byte(orderRef) }
