// Package rpc defines the JSON-RPC 2.0 envelope carried over the relay, the
// correlation id generator, and the protocol-method registry mapping each
// method name to its publish tags, TTL and prompt flag.
package rpc
