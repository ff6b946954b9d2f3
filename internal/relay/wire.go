package relay

import "wclink/internal/domain"

// Relay RPC method names.
const (
	MethodSubscribe    = "irn_subscribe"
	MethodUnsubscribe  = "irn_unsubscribe"
	MethodPublish      = "irn_publish"
	MethodSubscription = "irn_subscription"
)

// SubscribeParams asks the relay to deliver messages for a topic.
type SubscribeParams struct {
	Topic domain.Topic `json:"topic"`
}

// UnsubscribeParams tears down one subscription.
type UnsubscribeParams struct {
	ID    string       `json:"id"`
	Topic domain.Topic `json:"topic"`
}

// PublishParams sends an opaque message to a topic. TTL is in seconds and is
// enforced server-side; the client never re-delivers.
type PublishParams struct {
	Topic   domain.Topic `json:"topic"`
	Message string       `json:"message"`
	TTL     int64        `json:"ttl"`
	Tag     int          `json:"tag,omitempty"`
	Prompt  bool         `json:"prompt,omitempty"`
}

// SubscriptionData is the payload of an inbound irn_subscription request.
type SubscriptionData struct {
	Topic   domain.Topic `json:"topic"`
	Message string       `json:"message"`
}

// SubscriptionParams wraps a delivery with its subscription id.
type SubscriptionParams struct {
	ID   string           `json:"id"`
	Data SubscriptionData `json:"data"`
}
