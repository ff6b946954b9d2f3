// Package crypto exposes the minimal primitives used by wclink.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519, DH)
//   - Shared-secret to symmetric-key derivation via HKDF-SHA256 (DeriveSymKey)
//   - Deterministic topic derivation from key material (DeriveTopic)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//
// All functions return fixed-size array types defined in internal/domain to
// avoid accidental reallocations. Callers should treat returned secrets as
// sensitive and rely on Wipe when practical to reduce lifetime in memory.
package crypto
