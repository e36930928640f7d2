// Package x402 defines the wire types of the x402-style payment gate: the
// 402 requirements body a resource server advertises, the signed payment
// payload a consumer attaches on retry, and the facilitator verify/settle
// responses. It also builds and signs the EIP-3009 transfer authorizations
// that back "exact"-scheme payments.
package x402

import "errors"

// Version is the protocol version spoken by this SDK.
const Version = 1

// SchemeExact is the only payment scheme currently supported: a signed
// authorization for the exact advertised amount.
const SchemeExact = "exact"

// HTTP headers carrying payment data.
const (
	// PaymentHeader carries the base64-encoded PaymentPayload on the retried
	// request.
	PaymentHeader = "X-Payment"
	// SettlementHeader carries the base64-encoded SettleResponse on the
	// final response, for consumer-side analytics.
	SettlementHeader = "X-Payment-Response"
)

var (
	ErrUnknownNetwork      = errors.New("unknown payment network")
	ErrUnsupportedVersion  = errors.New("unsupported x402 protocol version")
	ErrMalformedHeader     = errors.New("malformed payment header")
	ErrNoMatchingScheme    = errors.New("server offers no payment scheme matching the configured network")
	ErrMissingRequirements = errors.New("402 response carries no payment requirements")
)

// PaymentRequirements is one acceptable payment option for a protected
// route: an element of the "accepts" array in the 402 body.
type PaymentRequirements struct {
	// Scheme is the payment scheme identifier; always "exact" today.
	Scheme string `json:"scheme"`
	// Network is the settlement network identifier (e.g., "base-sepolia").
	Network string `json:"network"`
	// Price is the human-readable price in "$<amount>" form.
	Price string `json:"price"`
	// MaxAmountRequired is the price in USDC atomic units as a decimal string.
	MaxAmountRequired string `json:"maxAmountRequired"`
	// Asset is the USDC token contract address on Network.
	Asset string `json:"asset"`
	// PayTo is the creator's receiving address.
	PayTo string `json:"payTo"`
	// MaxTimeoutSeconds bounds the validity window of the authorization.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds"`
	// Resource is the URL of the gated route.
	Resource string `json:"resource,omitempty"`
	// Description is the skill's human-readable description.
	Description string `json:"description,omitempty"`
}

// PaymentRequired is the JSON body of a 402 response.
type PaymentRequired struct {
	X402Version int                   `json:"x402Version"`
	Error       string                `json:"error,omitempty"`
	Accepts     []PaymentRequirements `json:"accepts"`
}

// PaymentPayload is the signed proof a consumer attaches to the retried
// request via PaymentHeader.
type PaymentPayload struct {
	X402Version int        `json:"x402Version"`
	Scheme      string     `json:"scheme"`
	Network     string     `json:"network"`
	Payload     EVMPayload `json:"payload"`
}

// EVMPayload carries the EIP-3009 authorization and its signature.
type EVMPayload struct {
	// Signature is the 0x-prefixed hex EIP-712 signature.
	Signature     string           `json:"signature"`
	Authorization EVMAuthorization `json:"authorization"`
}

// EVMAuthorization mirrors the transferWithAuthorization parameters. All
// numeric fields are decimal strings; Nonce is a 0x-prefixed 32-byte hex.
type EVMAuthorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// VerifyResponse is the facilitator's answer to a verification request.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleResponse is the facilitator's answer to a settlement request.
type SettleResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network,omitempty"`
	Payer       string `json:"payer,omitempty"`
}

// SelectRequirement picks the "exact"-scheme entry matching the given
// network from a 402 body. Returns ErrNoMatchingScheme when the server's
// offer excludes the configured network.
func SelectRequirement(required *PaymentRequired, network string) (*PaymentRequirements, error) {
	if required == nil || len(required.Accepts) == 0 {
		return nil, ErrMissingRequirements
	}
	for i := range required.Accepts {
		r := &required.Accepts[i]
		if r.Scheme == SchemeExact && r.Network == network {
			return r, nil
		}
	}
	return nil, ErrNoMatchingScheme
}
