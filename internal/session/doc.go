// Package session implements the session lifecycle on top of pairings:
// proposal, settlement, acknowledgment, namespace updates, expiry extension,
// scoped request/response routing, events and deletion.
//
// The namespace grant invariant holds at every transition: a settled or
// updated namespace set must be a superset of what the originating proposal
// required, per chain, method and event.
package session
