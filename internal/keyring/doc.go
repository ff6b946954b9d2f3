// Package keyring owns all key material: X25519 key pairs, symmetric keys and
// per-topic agreement secrets, persisted only through the injected
// domain.Keychain capability.
//
// Raw private keys never escape the package beyond the single DH computation
// that consumes them. Deleting an agreement secret is immediate and
// irreversible; there is no deferred cleanup.
package keyring
