package domain

// CacaoHeader carries the CAIP-74 container type, currently always "eip4361".
type CacaoHeader struct {
	Type string `json:"t"`
}

// CacaoPayload is the structured sign-in message (CAIP-74). Field names follow
// the wire format; timestamps are RFC 3339 strings.
type CacaoPayload struct {
	Iss       string   `json:"iss"`
	Domain    string   `json:"domain"`
	Aud       string   `json:"aud"`
	Version   string   `json:"version"`
	Nonce     string   `json:"nonce"`
	Iat       string   `json:"iat"`
	Nbf       string   `json:"nbf,omitempty"`
	Exp       string   `json:"exp,omitempty"`
	Statement string   `json:"statement,omitempty"`
	RequestID string   `json:"requestId,omitempty"`
	Resources []string `json:"resources,omitempty"`
}

// CacaoSignature holds the signature and its verification method.
type CacaoSignature struct {
	Type  SignatureType `json:"t"`
	Sig   string        `json:"s"`
	Extra string        `json:"m,omitempty"`
}

// Cacao is a signed, structured sign-in message proving account ownership.
// Immutable once produced; consumed solely by the verify package.
type Cacao struct {
	Header    CacaoHeader    `json:"h"`
	Payload   CacaoPayload   `json:"p"`
	Signature CacaoSignature `json:"s"`
}

// SignatureType selects the verification method for a Cacao signature.
type SignatureType string

const (
	// SignatureEIP191 is recovery-based verification for externally-owned accounts.
	SignatureEIP191 SignatureType = "eip191"
	// SignatureEIP1271 is contract-based verification for smart-contract accounts.
	SignatureEIP1271 SignatureType = "eip1271"
)
