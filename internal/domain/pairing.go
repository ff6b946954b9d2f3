package domain

import "time"

// RelayOptions selects the relay protocol for a pairing or session.
type RelayOptions struct {
	Protocol string `json:"protocol"`
	Data     string `json:"data,omitempty"`
}

// DefaultRelay is the relay protocol used when a URI does not name one.
var DefaultRelay = RelayOptions{Protocol: "irn"}

// AppMetadata describes a peer application, exchanged during pairing and
// session settlement.
type AppMetadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Icons       []string `json:"icons"`
}

// Pairing is a long-lived encrypted channel used to bootstrap sessions.
// The associated agreement secret lives in the keyring, keyed by Topic.
type Pairing struct {
	Topic        Topic        `json:"topic"`
	Expiry       time.Time    `json:"expiry"`
	Active       bool         `json:"active"`
	PeerMetadata *AppMetadata `json:"peerMetadata,omitempty"`
	Relay        RelayOptions `json:"relay"`
	Methods      []string     `json:"methods,omitempty"`
}

// Expired reports whether the pairing's expiry has passed at now.
func (p Pairing) Expired(now time.Time) bool { return now.After(p.Expiry) }
