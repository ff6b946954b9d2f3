package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"wclink/internal/domain"
)

var (
	// ErrMalformedNamespaces indicates an invalid proposal, rejected before
	// any network call.
	ErrMalformedNamespaces = errors.New("session: malformed namespaces")
	// ErrNamespacesMismatch indicates a grant narrower than the proposal
	// required. Grants are never silently narrowed.
	ErrNamespacesMismatch = errors.New("session: namespaces mismatch")
	// ErrUnauthorizedMethod indicates a request method outside the grant.
	ErrUnauthorizedMethod = errors.New("session: unauthorized method")
	// ErrUnauthorizedChain indicates a request chain outside the grant.
	ErrUnauthorizedChain = errors.New("session: unauthorized chain")
)

// CAIP-2: namespace:reference.
var chainIDPattern = regexp.MustCompile(`^[a-z0-9-]{3,8}:[-_a-zA-Z0-9]{1,32}$`)

// ValidChainID reports whether s is a CAIP-2 chain identifier.
func ValidChainID(s string) bool { return chainIDPattern.MatchString(s) }

// ValidateProposal checks required namespaces before they leave the client:
// every namespace needs at least one well-formed chain, and method/event
// names must be non-empty.
func ValidateProposal(required map[string]domain.Namespace) error {
	if len(required) == 0 {
		return fmt.Errorf("%w: empty proposal", ErrMalformedNamespaces)
	}
	for key, ns := range required {
		if len(ns.Chains) == 0 {
			return fmt.Errorf("%w: namespace %q has no chains", ErrMalformedNamespaces, key)
		}
		for _, c := range ns.Chains {
			if !ValidChainID(c) {
				return fmt.Errorf("%w: bad chain id %q in %q", ErrMalformedNamespaces, c, key)
			}
			if !strings.HasPrefix(c, key+":") && c != key {
				return fmt.Errorf("%w: chain %q outside namespace %q", ErrMalformedNamespaces, c, key)
			}
		}
		for _, m := range ns.Methods {
			if m == "" {
				return fmt.Errorf("%w: empty method in %q", ErrMalformedNamespaces, key)
			}
		}
		for _, e := range ns.Events {
			if e == "" {
				return fmt.Errorf("%w: empty event in %q", ErrMalformedNamespaces, key)
			}
		}
	}
	return nil
}

// ValidateGrant enforces the superset invariant: for every namespace the
// proposal required, the grant's chains, methods and events must each contain
// all required entries.
func ValidateGrant(required, granted map[string]domain.Namespace) error {
	for key, req := range required {
		grant, ok := granted[key]
		if !ok {
			return fmt.Errorf("%w: namespace %q not granted", ErrNamespacesMismatch, key)
		}
		grantChains := grantedChains(grant)
		for _, c := range req.Chains {
			if !contains(grantChains, c) {
				return fmt.Errorf("%w: chain %q missing from grant %q", ErrNamespacesMismatch, c, key)
			}
		}
		for _, m := range req.Methods {
			if !contains(grant.Methods, m) {
				return fmt.Errorf("%w: method %q missing from grant %q", ErrNamespacesMismatch, m, key)
			}
		}
		for _, e := range req.Events {
			if !contains(grant.Events, e) {
				return fmt.Errorf("%w: event %q missing from grant %q", ErrNamespacesMismatch, e, key)
			}
		}
	}
	return nil
}

// Authorize checks a request's chain/method pair against the granted
// namespaces. The chain must be covered before the method is considered.
func Authorize(granted map[string]domain.Namespace, chainID, method string) error {
	chainCovered := false
	for _, ns := range granted {
		if !contains(grantedChains(ns), chainID) {
			continue
		}
		chainCovered = true
		if contains(ns.Methods, method) {
			return nil
		}
	}
	if !chainCovered {
		return fmt.Errorf("%w: %s", ErrUnauthorizedChain, chainID)
	}
	return fmt.Errorf("%w: %s on %s", ErrUnauthorizedMethod, method, chainID)
}

// AuthorizeEvent checks an event name/chain pair against the grant.
func AuthorizeEvent(granted map[string]domain.Namespace, chainID, event string) error {
	chainCovered := false
	for _, ns := range granted {
		if !contains(grantedChains(ns), chainID) {
			continue
		}
		chainCovered = true
		if contains(ns.Events, event) {
			return nil
		}
	}
	if !chainCovered {
		return fmt.Errorf("%w: %s", ErrUnauthorizedChain, chainID)
	}
	return fmt.Errorf("%w: event %s on %s", ErrUnauthorizedMethod, event, chainID)
}

// grantedChains returns the chains a namespace covers, either listed
// explicitly or implied by its CAIP-10 accounts (namespace:reference:address).
func grantedChains(ns domain.Namespace) []string {
	chains := append([]string(nil), ns.Chains...)
	for _, acc := range ns.Accounts {
		parts := strings.SplitN(acc, ":", 3)
		if len(parts) == 3 {
			chains = append(chains, parts[0]+":"+parts[1])
		}
	}
	return chains
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
