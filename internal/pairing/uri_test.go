package pairing_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"wclink/internal/crypto"
	"wclink/internal/domain"
	"wclink/internal/pairing"
)

func TestURI_RoundTrip(t *testing.T) {
	key, err := crypto.RandomSymKey()
	if err != nil {
		t.Fatalf("RandomSymKey: %v", err)
	}
	u := pairing.URI{
		Topic:   crypto.DeriveTopic(key.Slice()),
		Version: pairing.Version,
		SymKey:  key,
		Relay:   domain.RelayOptions{Protocol: "irn"},
		Expiry:  time.Unix(1700000000, 0).UTC(),
		Methods: []string{"wc_sessionPropose", "wc_authRequest"},
	}

	s := u.String()
	if !strings.HasPrefix(s, "wc:") || !strings.Contains(s, "@2?") {
		t.Fatalf("unexpected rendering: %s", s)
	}

	parsed, err := pairing.ParseURI(s)
	if err != nil {
		t.Fatalf("ParseURI: %v", err)
	}
	if parsed.String() != s {
		t.Fatalf("round trip changed uri:\n  in:  %s\n  out: %s", s, parsed.String())
	}
	if parsed.Topic != u.Topic || parsed.SymKey != u.SymKey || !parsed.Expiry.Equal(u.Expiry) {
		t.Fatalf("fields lost: %+v", parsed)
	}
	if len(parsed.Methods) != 2 || parsed.Methods[0] != "wc_sessionPropose" {
		t.Fatalf("methods lost: %v", parsed.Methods)
	}
}

func TestURI_MinimalRoundTrip(t *testing.T) {
	key, _ := crypto.RandomSymKey()
	u := pairing.URI{
		Topic:   crypto.DeriveTopic(key.Slice()),
		Version: pairing.Version,
		SymKey:  key,
		Relay:   domain.DefaultRelay,
	}
	parsed, err := pairing.ParseURI(u.String())
	if err != nil {
		t.Fatalf("ParseURI: %v", err)
	}
	if parsed.String() != u.String() {
		t.Fatalf("round trip changed minimal uri")
	}
}

func TestParseURI_Malformed(t *testing.T) {
	key, _ := crypto.RandomSymKey()
	topic := crypto.DeriveTopic(key.Slice())

	for _, bad := range []string{
		"",
		"http://example.com",
		"wc:tooshort@2?symKey=00",
		"wc:" + string(topic) + "?symKey=" + key.Hex(),       // no version
		"wc:" + string(topic) + "@2?symKey=zz",               // bad key hex
		"wc:" + string(topic) + "@x?symKey=" + key.Hex(),     // bad version
	} {
		if _, err := pairing.ParseURI(bad); !errors.Is(err, pairing.ErrMalformedURI) {
			t.Fatalf("%q: want ErrMalformedURI, got %v", bad, err)
		}
	}
}

func TestParseURI_LegacyVersionRejected(t *testing.T) {
	key, _ := crypto.RandomSymKey()
	topic := crypto.DeriveTopic(key.Slice())

	for _, bad := range []string{
		"wc:" + string(topic) + "@1?bridge=https%3A%2F%2Fb&key=" + key.Hex(),
		"wc:" + string(topic) + "@2?key=" + key.Hex() + "&symKey=" + key.Hex(),
	} {
		if _, err := pairing.ParseURI(bad); !errors.Is(err, pairing.ErrUnsupportedURIVersion) {
			t.Fatalf("%q: want ErrUnsupportedURIVersion, got %v", bad, err)
		}
	}
}
