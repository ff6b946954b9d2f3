// Package codec seals and opens sealboxes: authenticated symmetric encryption
// of envelope payloads.
//
// A sealbox starts with a version byte:
//
//	1  legacy AES-256-CBC with an independent HMAC-SHA256 (MAC-then-encrypt era)
//	2  ChaCha20-Poly1305 AEAD
//
// New traffic always seals with version 2; version 1 is kept for decoding (and
// re-encoding toward) peers on the old envelope generation. The package is
// stateless and safely reentrant across concurrent calls with different keys.
package codec
