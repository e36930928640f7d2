// Package wallet resolves wallet specifications (raw address, hex private key
// or a pre-built signer) into a canonical Ethereum address and, when a key is
// available, a signing capability for EIP-191 messages and EIP-712 typed data.
// Private keys are read-only after resolution and are never logged in full;
// use MaskKey for any user-facing output.
package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Environment fallbacks consulted by ResolveAddress, in priority order after
// the explicit argument.
const (
	EnvWalletAddress = "SKILLMESH_WALLET_ADDRESS"
	EnvPrivateKey    = "SKILLMESH_PRIVATE_KEY"
)

const (
	addressHexLen = 42 // "0x" + 40 hex chars
	keyHexLen     = 66 // "0x" + 64 hex chars
)

// MaskedPlaceholder replaces keys too short to mask meaningfully.
const MaskedPlaceholder = "****"

var (
	ErrNoWallet = fmt.Errorf("no wallet configured: pass an address or key explicitly, or set %s or %s", EnvWalletAddress, EnvPrivateKey)
	// ErrInvalidFormat covers values that are neither a 42-character address
	// nor a 66-character private key, or that lack the 0x prefix.
	ErrInvalidFormat     = errors.New(`invalid wallet value: expected a 0x-prefixed 42-character address or 66-character private key`)
	ErrInvalidPrivateKey = errors.New("invalid private key: not a valid 0x-prefixed 64-character hex string")
)

// Signer is the signing capability the payment and auth layers depend on.
// It is intentionally narrow: derive an address once, sign raw messages
// (EIP-191 personal sign) and sign EIP-712 typed data.
type Signer interface {
	Address() common.Address
	SignMessage(message []byte) ([]byte, error)
	SignTypedData(data apitypes.TypedData) ([]byte, error)
}

// Wallet is a resolved wallet: a canonical address plus an optional signer.
// When constructed from an address only, signing methods fail.
type Wallet struct {
	address common.Address
	key     *ecdsa.PrivateKey
	signer  Signer
}

// LookupFunc abstracts environment lookups so that the resolution precedence
// is unit-testable without mutating the process environment.
type LookupFunc func(key string) string

// ResolveAddress resolves a wallet specification to its canonical address
// using the process environment for fallbacks. See ResolveAddressFrom for
// the precedence rules.
func ResolveAddress(input string) (common.Address, error) {
	return ResolveAddressFrom(input, os.Getenv)
}

// ResolveAddressFrom resolves a wallet specification to an address with an
// explicit precedence chain: the input argument, then EnvWalletAddress, then
// EnvPrivateKey (deriving the address from the key). Returns ErrNoWallet when
// all three are absent. Resolution is pure: the same input always yields the
// same address.
func ResolveAddressFrom(input string, lookup LookupFunc) (common.Address, error) {
	candidate := strings.TrimSpace(input)
	if candidate == "" {
		candidate = strings.TrimSpace(lookup(EnvWalletAddress))
	}
	if candidate == "" {
		candidate = strings.TrimSpace(lookup(EnvPrivateKey))
	}
	if candidate == "" {
		return common.Address{}, ErrNoWallet
	}

	if !strings.HasPrefix(candidate, "0x") {
		return common.Address{}, ErrInvalidFormat
	}

	switch len(candidate) {
	case addressHexLen:
		if !common.IsHexAddress(candidate) {
			return common.Address{}, ErrInvalidFormat
		}
		return common.HexToAddress(candidate), nil
	case keyHexLen:
		w, err := Resolve(candidate)
		if err != nil {
			return common.Address{}, err
		}
		return w.Address(), nil
	default:
		return common.Address{}, ErrInvalidFormat
	}
}

// Resolve parses a hex private key and returns a Wallet able to sign. When
// privateKey is empty, the EnvPrivateKey environment variable is consulted.
func Resolve(privateKey string) (*Wallet, error) {
	raw := strings.TrimSpace(privateKey)
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv(EnvPrivateKey))
	}
	if raw == "" {
		return nil, ErrNoWallet
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return nil, ErrInvalidPrivateKey
	}

	return &Wallet{
		address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}, nil
}

// NewFromAddress builds a wallet around a bare address. The result carries no
// signing capability; SignMessage and SignTypedData return an error.
func NewFromAddress(addr common.Address) *Wallet {
	return &Wallet{address: addr}
}

// NewFromSigner wraps a pre-built external signer (the third arm of the
// wallet tagged union). All signing calls delegate to it.
func NewFromSigner(s Signer) *Wallet {
	return &Wallet{address: s.Address(), signer: s}
}

// Address returns the canonical wallet address.
func (w *Wallet) Address() common.Address {
	return w.address
}

// CanSign reports whether the wallet holds a signing capability.
func (w *Wallet) CanSign() bool {
	return w.key != nil || w.signer != nil
}

// SignMessage produces an EIP-191 personal-sign signature over message:
// keccak256("\x19Ethereum Signed Message:\n" + len(hash) || keccak256(message)).
// Returns the 65-byte R||S||V signature.
func (w *Wallet) SignMessage(message []byte) ([]byte, error) {
	if w.signer != nil {
		return w.signer.SignMessage(message)
	}
	if w.key == nil {
		return nil, errors.New("wallet has no signing key: resolved from address only")
	}

	inner := crypto.Keccak256(message)
	hash := crypto.Keccak256(
		[]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(inner))),
		inner,
	)
	return crypto.Sign(hash, w.key)
}

// SignTypedData signs the EIP-712 digest of the given typed data and returns
// the 65-byte signature with the recovery id normalized to 27/28 as expected
// by on-chain verifiers.
func (w *Wallet) SignTypedData(data apitypes.TypedData) ([]byte, error) {
	if w.signer != nil {
		return w.signer.SignTypedData(data)
	}
	if w.key == nil {
		return nil, errors.New("wallet has no signing key: resolved from address only")
	}

	domainSeparator, err := data.HashStruct("EIP712Domain", data.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hash EIP-712 domain: %w", err)
	}
	messageHash, err := data.HashStruct(data.PrimaryType, data.Message)
	if err != nil {
		return nil, fmt.Errorf("hash EIP-712 message: %w", err)
	}

	raw := append([]byte{0x19, 0x01}, append(domainSeparator, messageHash...)...)
	signature, err := crypto.Sign(crypto.Keccak256(raw), w.key)
	if err != nil {
		return nil, fmt.Errorf("sign typed data: %w", err)
	}
	signature[64] += 27
	return signature, nil
}

// MaskKey renders a private key for display, showing the first 6 and last 4
// characters. Keys shorter than 20 characters are replaced entirely by
// MaskedPlaceholder so that no original character leaks.
func MaskKey(key string) string {
	if len(key) < 20 {
		return MaskedPlaceholder
	}
	return key[:6] + "..." + key[len(key)-4:]
}

// Match is the result of comparing two wallet specifications.
type Match struct {
	Match    bool
	Address1 common.Address
	Address2 common.Address
}

// VerifyMatch resolves both wallet specifications to addresses and compares
// them case-insensitively. It is used to catch a creator registering under
// one wallet while serving payments to another.
func VerifyMatch(a, b string) (Match, error) {
	addr1, err := ResolveAddress(a)
	if err != nil {
		return Match{}, fmt.Errorf("first wallet: %w", err)
	}
	addr2, err := ResolveAddress(b)
	if err != nil {
		return Match{}, fmt.Errorf("second wallet: %w", err)
	}
	return Match{
		Match:    addr1 == addr2, // common.Address comparison is canonical
		Address1: addr1,
		Address2: addr2,
	}, nil
}
