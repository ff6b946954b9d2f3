// Package network is the single choke point for encrypted request/response
// traffic over the relay.
//
// Outbound requests are serialized, published with their protocol method's
// tag/TTL/prompt, and tracked in a pending correlation table until the
// matching response arrives on any subscribed topic or the method TTL lapses.
// Inbound traffic is demultiplexed by topic and protocol method into bounded
// subscriber streams; a full stream drops its oldest entry rather than block
// the relay receive path.
package network
