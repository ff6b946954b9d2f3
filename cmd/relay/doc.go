// Package main runs the in-memory websocket relay used by wclink during
// development and tests. It fans published messages out to topic subscribers
// and queues them for absent subscribers until the publish TTL lapses.
//
// Wire protocol
//
// JSON-RPC 2.0 over a websocket at /ws:
//
//	irn_subscribe    {topic}                       -> subscription id
//	irn_unsubscribe  {topic, id}                   -> true
//	irn_publish      {topic, message, ttl, tag}    -> true
//	irn_subscription {id, data:{topic, message}}   <- server push, client acks
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - The relay never sees plaintext; messages are opaque envelopes.
//   - The default listen address is :8080.
package main
