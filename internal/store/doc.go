// Package store provides the persistence implementations behind the client:
// a file-backed and an in-memory key-value store satisfying the
// domain.KeyValueStore and domain.Keychain capabilities, plus typed wrappers
// for pairing and session rows keyed by topic.
//
// File writes go through a temp file and an atomic rename so a crash never
// leaves a half-written store on disk.
package store
