// Package pairing implements the pairing lifecycle: proposed on URI creation,
// active after the first successful handshake, expired or deleted as terminal
// states.
//
// Expiry is evaluated lazily: any read of a pairing past its expiry date
// transitions it to expired, fires the expiration callback once, and removes
// the row together with its agreement secret.
package pairing
