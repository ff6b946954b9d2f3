package domain

import (
	"context"
	"time"
)

// Keychain is a secure byte store for raw key material. Implementations are
// expected to be process-local and synchronous; Get reports presence
// explicitly so a missing key is not an error.
type Keychain interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// KeyValueStore persists pairing and session rows. Keys lists stored keys
// under a prefix so stores can enumerate their rows.
type KeyValueStore interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Keys(prefix string) ([]string, error)
}

// RelayPublishOptions carry the per-protocol-method publish parameters.
type RelayPublishOptions struct {
	TTL    time.Duration
	Tag    int
	Prompt bool
}

// RelayMessage is one inbound payload delivered for a subscribed topic.
type RelayMessage struct {
	Topic   Topic
	Message string
}

// RelayTransport is the duplex connection to a relay endpoint. Publish blocks
// until the relay acknowledges acceptance (the network-level ack); the
// protocol-level ack is the application response handled by the interactor.
type RelayTransport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Subscribe(ctx context.Context, topic Topic) (string, error)
	Unsubscribe(ctx context.Context, topic Topic, subscriptionID string) error
	Publish(ctx context.Context, topic Topic, message string, opts RelayPublishOptions) error
	SetMessageHandler(fn func(RelayMessage))
}

// EthereumCaller performs a read-only eth_call against a chain. Used by
// EIP-1271 verification only.
type EthereumCaller interface {
	Call(ctx context.Context, chainID, to string, data []byte) ([]byte, error)
}
