package session

import (
	"encoding/json"

	"wclink/internal/domain"
)

// Wire payloads for the session protocol methods.

type proposeParams struct {
	Relay              domain.RelayOptions         `json:"relay"`
	Proposer           domain.Participant          `json:"proposer"`
	RequiredNamespaces map[string]domain.Namespace `json:"requiredNamespaces"`
}

type proposeResult struct {
	Relay              domain.RelayOptions `json:"relay"`
	ResponderPublicKey string              `json:"responderPublicKey"`
}

type settleParams struct {
	Relay      domain.RelayOptions         `json:"relay"`
	Controller domain.Participant          `json:"controller"`
	Namespaces map[string]domain.Namespace `json:"namespaces"`
	Expiry     int64                       `json:"expiry"`
}

type updateParams struct {
	Namespaces map[string]domain.Namespace `json:"namespaces"`
}

type extendParams struct {
	Expiry int64 `json:"expiry"`
}

type requestParams struct {
	ChainID string         `json:"chainId"`
	Request requestPayload `json:"request"`
}

type requestPayload struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type eventParams struct {
	ChainID string       `json:"chainId"`
	Event   eventPayload `json:"event"`
}

type eventPayload struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

type deleteParams struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
