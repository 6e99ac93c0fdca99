package auction

const (
	TopicBidAccepted      = "auction.bid.accepted"
	TopicLifecycleChanged = "auction.lifecycle.changed"
)

// PartitionKey keys kafka messages by auction so every event of one auction
// stays on one partition, preserving its commit order.
func PartitionKey(auctionID string) []byte { return []byte(auctionID) }

// TopicFor maps an event type to its kafka topic.
func TopicFor(eventType string) string {
	if eventType == EventLifecycleChanged {
		return TopicLifecycleChanged
	}
	return TopicBidAccepted
}
