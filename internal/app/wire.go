package app

import (
	"net/http"

	"wclink/internal/domain"
	"wclink/internal/keyring"
	"wclink/internal/network"
	"wclink/internal/pairing"
	"wclink/internal/relay"
	"wclink/internal/serializer"
	"wclink/internal/session"
	"wclink/internal/store"
	"wclink/internal/verify"
)

// Wire bundles all stores, services and clients for the CLI.
type Wire struct {
	Keys      *keyring.Service
	Transport domain.RelayTransport
	Network   *network.Interactor
	Pairings  *pairing.Service
	Sessions  *session.Service
	Verifier  *verify.Verifier
	HTTP      *http.Client
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config, opts session.Options) (*Wire, error) {
	// File-based stores
	keychain := store.NewFileStore(cfg.Home, "keychain")
	pairingStore := store.NewPairingStore(store.NewFileStore(cfg.Home, "pairings"))
	sessionStore := store.NewFileStore(cfg.Home, "sessions")

	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	transport := cfg.Transport
	if transport == nil {
		transport = relay.NewClient(cfg.RelayURL, relay.Options{})
	}

	keys := keyring.New(keychain)
	interactor := network.NewInteractor(transport, serializer.New(keys), network.Options{})

	pairingSvc := pairing.NewService(keys, interactor, pairingStore, pairing.Options{
		Metadata: cfg.Metadata,
	})
	if opts.Metadata.Name == "" {
		opts.Metadata = cfg.Metadata
	}
	sessionSvc := session.NewService(keys, interactor, store.NewSessionStore(sessionStore), pairingSvc, opts)

	return &Wire{
		Keys:      keys,
		Transport: transport,
		Network:   interactor,
		Pairings:  pairingSvc,
		Sessions:  sessionSvc,
		Verifier:  verify.New(verify.NewRPCCaller(cfg.ChainRPC, httpClient)),
		HTTP:      httpClient,
	}, nil
}
