// Package relay implements the domain.RelayTransport capability: one logical
// duplex connection to a relay endpoint with subscribe, unsubscribe and
// publish primitives.
//
// The relay speaks JSON-RPC over a websocket. Client-issued calls
// (irn_subscribe, irn_unsubscribe, irn_publish) are acknowledged by the relay
// at the network level; inbound irn_subscription requests deliver messages
// for subscribed topics and are acked back. This network-level acknowledgment
// is distinct from the protocol-level response a peer eventually sends.
//
// The package also provides an in-process Broker/MemoryTransport pair with
// the same contract, used by tests and local tooling.
package relay
