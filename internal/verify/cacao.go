package verify

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"wclink/internal/domain"
)

// Verifier dispatches signature checks by type. The caller is only needed
// for EIP-1271; a nil caller rejects contract signatures.
type Verifier struct {
	caller domain.EthereumCaller
}

func New(caller domain.EthereumCaller) *Verifier {
	return &Verifier{caller: caller}
}

// Verify checks a signature of the given type over message for the claimed
// address on chainID.
func (v *Verifier) Verify(ctx context.Context, sig domain.CacaoSignature, message, address, chainID string) error {
	raw, err := decodeSignature(sig.Sig)
	if err != nil {
		return err
	}
	switch sig.Type {
	case domain.SignatureEIP191:
		return VerifyEIP191(raw, []byte(message), address)
	case domain.SignatureEIP1271:
		if v.caller == nil {
			return fmt.Errorf("%w: no ethereum caller configured", ErrInvalidSignature)
		}
		return VerifyEIP1271(ctx, v.caller, raw, HashPersonalMessage([]byte(message)), address, chainID)
	default:
		return fmt.Errorf("%w: unknown signature type %q", ErrInvalidSignature, sig.Type)
	}
}

// VerifyCacao reconstructs the exact sign-in message from the payload and
// verifies the signature against the account named in iss. Any formatting
// drift between signer and verifier invalidates the signature.
func (v *Verifier) VerifyCacao(ctx context.Context, c domain.Cacao) error {
	chainID, address, err := ParseIss(c.Payload.Iss)
	if err != nil {
		return err
	}
	message, err := FormatMessage(c.Payload, address)
	if err != nil {
		return err
	}
	return v.Verify(ctx, c.Signature, message, address, chainID)
}

// ParseIss splits a did:pkh issuer into its CAIP-2 chain id and address, for
// example did:pkh:eip155:1:0xab... into ("eip155:1", "0xab...").
func ParseIss(iss string) (chainID, address string, err error) {
	parts := strings.Split(iss, ":")
	if len(parts) != 5 || parts[0] != "did" || parts[1] != "pkh" {
		return "", "", fmt.Errorf("verify: malformed issuer %q", iss)
	}
	return parts[2] + ":" + parts[3], parts[4], nil
}

// FormatMessage renders the CAIP-122 sign-in string for a payload. The
// format is position and whitespace exact.
func FormatMessage(p domain.CacaoPayload, address string) (string, error) {
	_, chainRef, ok := strings.Cut(chainFromIss(p.Iss), ":")
	if !ok {
		return "", fmt.Errorf("verify: malformed issuer %q", p.Iss)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s wants you to sign in with your Ethereum account:\n%s\n\n", p.Domain, address)
	if p.Statement != "" {
		b.WriteString(p.Statement)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nURI: %s\nVersion: %s\nChain ID: %s\nNonce: %s\nIssued At: %s",
		p.Aud, p.Version, chainRef, p.Nonce, p.Iat)
	if p.Exp != "" {
		fmt.Fprintf(&b, "\nExpiration Time: %s", p.Exp)
	}
	if p.Nbf != "" {
		fmt.Fprintf(&b, "\nNot Before: %s", p.Nbf)
	}
	if p.RequestID != "" {
		fmt.Fprintf(&b, "\nRequest ID: %s", p.RequestID)
	}
	if len(p.Resources) > 0 {
		b.WriteString("\nResources:")
		for _, r := range p.Resources {
			fmt.Fprintf(&b, "\n- %s", r)
		}
	}
	return b.String(), nil
}

func chainFromIss(iss string) string {
	parts := strings.Split(iss, ":")
	if len(parts) != 5 {
		return ""
	}
	return parts[2] + ":" + parts[3]
}

func decodeSignature(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return raw, nil
}
