package session_test

import (
	"errors"
	"testing"

	"wclink/internal/domain"
	"wclink/internal/session"
)

func eip155(chains, methods, events []string) map[string]domain.Namespace {
	return map[string]domain.Namespace{
		"eip155": {Chains: chains, Methods: methods, Events: events},
	}
}

func TestValidateProposal(t *testing.T) {
	cases := []struct {
		name     string
		required map[string]domain.Namespace
		wantErr  error
	}{
		{
			name:     "valid",
			required: eip155([]string{"eip155:1", "eip155:137"}, []string{"eth_sign"}, []string{"chainChanged"}),
		},
		{
			name:     "empty proposal",
			required: map[string]domain.Namespace{},
			wantErr:  session.ErrMalformedNamespaces,
		},
		{
			name:     "namespace without chains",
			required: eip155(nil, []string{"eth_sign"}, nil),
			wantErr:  session.ErrMalformedNamespaces,
		},
		{
			name:     "malformed chain id",
			required: eip155([]string{"eip155"}, nil, nil),
			wantErr:  session.ErrMalformedNamespaces,
		},
		{
			name:     "chain outside namespace key",
			required: eip155([]string{"cosmos:hub-4"}, nil, nil),
			wantErr:  session.ErrMalformedNamespaces,
		},
		{
			name:     "empty method name",
			required: eip155([]string{"eip155:1"}, []string{""}, nil),
			wantErr:  session.ErrMalformedNamespaces,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := session.ValidateProposal(tc.required)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidateGrant_SupersetAllowed(t *testing.T) {
	required := eip155([]string{"eip155:1"}, []string{"eth_sign"}, []string{"chainChanged"})
	granted := eip155(
		[]string{"eip155:1", "eip155:137"},
		[]string{"eth_sign", "eth_sendTransaction"},
		[]string{"chainChanged", "accountsChanged"},
	)
	if err := session.ValidateGrant(required, granted); err != nil {
		t.Fatalf("superset grant rejected: %v", err)
	}
}

func TestValidateGrant_NarrowerRejected(t *testing.T) {
	required := eip155([]string{"eip155:1", "eip155:137"}, []string{"eth_sign"}, nil)

	missingChain := eip155([]string{"eip155:1"}, []string{"eth_sign"}, nil)
	if err := session.ValidateGrant(required, missingChain); !errors.Is(err, session.ErrNamespacesMismatch) {
		t.Fatalf("missing chain: want ErrNamespacesMismatch, got %v", err)
	}

	missingMethod := eip155([]string{"eip155:1", "eip155:137"}, nil, nil)
	if err := session.ValidateGrant(required, missingMethod); !errors.Is(err, session.ErrNamespacesMismatch) {
		t.Fatalf("missing method: want ErrNamespacesMismatch, got %v", err)
	}

	if err := session.ValidateGrant(required, map[string]domain.Namespace{}); !errors.Is(err, session.ErrNamespacesMismatch) {
		t.Fatalf("missing namespace: want ErrNamespacesMismatch, got %v", err)
	}
}

func TestValidateGrant_AccountsImplyChains(t *testing.T) {
	required := eip155([]string{"eip155:1"}, []string{"eth_sign"}, nil)
	granted := map[string]domain.Namespace{
		"eip155": {
			Accounts: []string{"eip155:1:0xab16a96d359ec26a11e2c2b3d8f8b8942d5bfcdb"},
			Methods:  []string{"eth_sign"},
		},
	}
	if err := session.ValidateGrant(required, granted); err != nil {
		t.Fatalf("account-implied chain rejected: %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	granted := map[string]domain.Namespace{
		"eip155": {
			Accounts: []string{"eip155:1:0xab16a96d359ec26a11e2c2b3d8f8b8942d5bfcdb"},
			Chains:   []string{"eip155:137"},
			Methods:  []string{"eth_sign"},
			Events:   []string{"chainChanged"},
		},
	}

	if err := session.Authorize(granted, "eip155:1", "eth_sign"); err != nil {
		t.Fatalf("authorized call rejected: %v", err)
	}
	if err := session.Authorize(granted, "eip155:137", "eth_sign"); err != nil {
		t.Fatalf("explicit chain rejected: %v", err)
	}
	if err := session.Authorize(granted, "eip155:1", "eth_sendTransaction"); !errors.Is(err, session.ErrUnauthorizedMethod) {
		t.Fatalf("want ErrUnauthorizedMethod, got %v", err)
	}
	if err := session.Authorize(granted, "cosmos:hub-4", "eth_sign"); !errors.Is(err, session.ErrUnauthorizedChain) {
		t.Fatalf("want ErrUnauthorizedChain, got %v", err)
	}

	if err := session.AuthorizeEvent(granted, "eip155:1", "chainChanged"); err != nil {
		t.Fatalf("authorized event rejected: %v", err)
	}
	if err := session.AuthorizeEvent(granted, "eip155:1", "accountsChanged"); !errors.Is(err, session.ErrUnauthorizedMethod) {
		t.Fatalf("want ErrUnauthorizedMethod, got %v", err)
	}
}
