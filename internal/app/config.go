package app

import (
	"net/http"

	"wclink/internal/domain"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home     string              // config directory, e.g. $HOME/.wclink
	RelayURL string              // relay websocket URL, e.g. ws://127.0.0.1:8080/ws
	Metadata domain.AppMetadata  // published to peers during pairing and settlement
	ChainRPC map[string]string   // CAIP-2 chain id -> JSON-RPC endpoint, for contract signature checks
	HTTP     *http.Client        // optional; defaults to http.DefaultClient

	// Transport overrides the websocket relay client when set. Used by
	// in-process setups and tests.
	Transport domain.RelayTransport
}
