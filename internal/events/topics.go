package events

// Topic constants for domain events emitted by the checkout service.
const (
	TopicOrderFulfilled = "order.fulfilled"
	TopicOrderFailed    = "order.failed"
	TopicOrderRejected  = "order.rejected"
	// TopicOrderReconcile asks a worker to re-run payment confirmation for an order.
	TopicOrderReconcile = "order.reconcile"
)

// DefaultTopics returns the topics a worker subscribes to.
func DefaultTopics() []string {
	return []string{
		TopicOrderFulfilled,
		TopicOrderFailed,
		TopicOrderRejected,
		TopicOrderReconcile,
	}
}

// TopicForStatus maps a terminal order status to its event topic.
func TopicForStatus(status string) (string, bool) {
	switch status {
	case "FULFILLED":
		return TopicOrderFulfilled, true
	case "FAILED":
		return TopicOrderFailed, true
	case "REJECTED":
		return TopicOrderRejected, true
	default:
		return "", false
	}
}
