package pairing

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wclink/internal/domain"
)

// Version is the only pairing URI version this client speaks.
const Version = 2

var (
	// ErrMalformedURI indicates a string that is not a wc: pairing URI.
	ErrMalformedURI = errors.New("pairing: malformed uri")
	// ErrUnsupportedURIVersion indicates a legacy v1 URI (key/bridge fields).
	ErrUnsupportedURIVersion = errors.New("pairing: unsupported uri version")
)

// URI is the shareable pairing bootstrap:
// wc:<topic>@2?relay-protocol=<p>&symKey=<hex>&expiryTimestamp=<unix>&methods=<csv>.
// Parse and String round-trip losslessly.
type URI struct {
	Topic   domain.Topic
	Version int
	SymKey  domain.SymmetricKey
	Relay   domain.RelayOptions
	Expiry  time.Time // zero when the URI carries no expiryTimestamp
	Methods []string
}

// ParseURI validates and decodes a wc: URI.
func ParseURI(s string) (URI, error) {
	rest, ok := strings.CutPrefix(s, "wc:")
	if !ok {
		return URI{}, fmt.Errorf("%w: missing wc: scheme", ErrMalformedURI)
	}
	head, query, _ := strings.Cut(rest, "?")
	topicPart, versionPart, ok := strings.Cut(head, "@")
	if !ok {
		return URI{}, fmt.Errorf("%w: missing version", ErrMalformedURI)
	}

	topic := domain.Topic(topicPart)
	if !topic.Valid() {
		return URI{}, fmt.Errorf("%w: bad topic %q", ErrMalformedURI, topicPart)
	}
	version, err := strconv.Atoi(versionPart)
	if err != nil {
		return URI{}, fmt.Errorf("%w: bad version %q", ErrMalformedURI, versionPart)
	}

	params, err := url.ParseQuery(query)
	if err != nil {
		return URI{}, fmt.Errorf("%w: %v", ErrMalformedURI, err)
	}
	if version != Version {
		return URI{}, fmt.Errorf("%w: %d", ErrUnsupportedURIVersion, version)
	}
	if params.Has("key") || params.Has("bridge") {
		return URI{}, fmt.Errorf("%w: legacy key/bridge fields", ErrUnsupportedURIVersion)
	}

	keyHex := params.Get("symKey")
	raw, err := hex.DecodeString(keyHex)
	if err != nil || len(raw) != 32 {
		return URI{}, fmt.Errorf("%w: bad symKey", ErrMalformedURI)
	}
	var symKey domain.SymmetricKey
	copy(symKey[:], raw)

	u := URI{
		Topic:   topic,
		Version: version,
		SymKey:  symKey,
		Relay:   domain.RelayOptions{Protocol: params.Get("relay-protocol"), Data: params.Get("relay-data")},
	}
	if u.Relay.Protocol == "" {
		u.Relay.Protocol = domain.DefaultRelay.Protocol
	}
	if ts := params.Get("expiryTimestamp"); ts != "" {
		sec, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return URI{}, fmt.Errorf("%w: bad expiryTimestamp", ErrMalformedURI)
		}
		u.Expiry = time.Unix(sec, 0).UTC()
	}
	if csv := params.Get("methods"); csv != "" {
		u.Methods = strings.Split(csv, ",")
	}
	return u, nil
}

// String renders the URI with a fixed parameter order so parse and format
// round-trip byte for byte.
func (u URI) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "wc:%s@%d?relay-protocol=%s", u.Topic, u.Version, url.QueryEscape(u.Relay.Protocol))
	if u.Relay.Data != "" {
		fmt.Fprintf(&b, "&relay-data=%s", url.QueryEscape(u.Relay.Data))
	}
	fmt.Fprintf(&b, "&symKey=%s", u.SymKey.Hex())
	if !u.Expiry.IsZero() {
		fmt.Fprintf(&b, "&expiryTimestamp=%d", u.Expiry.Unix())
	}
	if len(u.Methods) > 0 {
		fmt.Fprintf(&b, "&methods=%s", strings.Join(u.Methods, ","))
	}
	return b.String()
}
