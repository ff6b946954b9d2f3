package domain

import (
	"encoding/json"
	"time"
)

// Participant identifies one side of a session by its X25519 public key hex
// plus application metadata.
type Participant struct {
	PublicKey string      `json:"publicKey"`
	Metadata  AppMetadata `json:"metadata"`
}

// Namespace is a CAIP-2-scoped grant of chains, RPC methods, and events.
// Accounts (CAIP-10) are present only on settled namespaces.
type Namespace struct {
	Chains   []string `json:"chains,omitempty"`
	Accounts []string `json:"accounts,omitempty"`
	Methods  []string `json:"methods"`
	Events   []string `json:"events"`
}

// SessionProposal is the payload of wc_sessionPropose.
type SessionProposal struct {
	ProposerPublicKey  string               `json:"proposerPublicKey"`
	ProposerMetadata   AppMetadata          `json:"proposerMetadata"`
	RequiredNamespaces map[string]Namespace `json:"requiredNamespaces"`
	Relay              RelayOptions         `json:"relay"`
	PairingTopic       Topic                `json:"-"`
}

// Session is an authorized, namespace-scoped channel settled on top of a
// pairing. Namespaces must be supersets of the originating proposal's
// RequiredNamespaces.
type Session struct {
	Topic              Topic                `json:"topic"`
	PairingTopic       Topic                `json:"pairingTopic"`
	Relay              RelayOptions         `json:"relay"`
	Self               Participant          `json:"self"`
	Peer               Participant          `json:"peer"`
	Controller         bool                 `json:"controller"`
	RequiredNamespaces map[string]Namespace `json:"requiredNamespaces"`
	Namespaces         map[string]Namespace `json:"namespaces"`
	Expiry             time.Time            `json:"expiry"`
	Acknowledged       bool                 `json:"acknowledged"`
}

// Expired reports whether the session's expiry has passed at now.
func (s Session) Expired(now time.Time) bool { return now.After(s.Expiry) }

// SessionRequest is an application-level JSON-RPC call routed over a session
// topic, scoped to one chain.
type SessionRequest struct {
	ChainID string          `json:"chainId"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// SessionEvent is emitted over a session topic, scoped to one chain.
type SessionEvent struct {
	ChainID string          `json:"chainId"`
	Name    string          `json:"name"`
	Data    json.RawMessage `json:"data"`
}
