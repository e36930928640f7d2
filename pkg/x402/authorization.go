package x402

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/skillmesh/skillmesh-sdk-go/pkg/wallet"
)

// clockSkewGrace backdates validAfter so that a facilitator with a slightly
// earlier clock still accepts a freshly signed authorization.
const clockSkewGrace = 10 * time.Second

// Authorization is a not-yet-signed EIP-3009 transfer authorization binding
// payer, payee, amount and a validity window.
type Authorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
}

// NewAuthorization builds an authorization valid from now (minus a small
// clock-skew grace) until now plus timeoutSeconds, with a random 32-byte
// nonce to prevent replay.
func NewAuthorization(from, to common.Address, value *big.Int, timeoutSeconds int) (*Authorization, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate authorization nonce: %w", err)
	}

	now := time.Now()
	return &Authorization{
		From:        from,
		To:          to,
		Value:       value,
		ValidAfter:  big.NewInt(now.Add(-clockSkewGrace).Unix()),
		ValidBefore: big.NewInt(now.Unix() + int64(timeoutSeconds)),
		Nonce:       nonce,
	}, nil
}

// typedData builds the EIP-712 TransferWithAuthorization structure for the
// USDC contract of the given network.
func (a *Authorization) typedData(networkName string) (apitypes.TypedData, error) {
	n, ok := networks[networkName]
	if !ok {
		return apitypes.TypedData{}, ErrUnknownNetwork
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": []apitypes.Type{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              n.domainName,
			Version:           n.domainVersion,
			ChainId:           (*math.HexOrDecimal256)(big.NewInt(n.chainID)),
			VerifyingContract: n.usdcAsset,
		},
		Message: apitypes.TypedDataMessage{
			"from":        a.From.Hex(),
			"to":          a.To.Hex(),
			"value":       (*math.HexOrDecimal256)(a.Value),
			"validAfter":  (*math.HexOrDecimal256)(a.ValidAfter),
			"validBefore": (*math.HexOrDecimal256)(a.ValidBefore),
			"nonce":       common.BytesToHash(a.Nonce[:]).Hex(),
		},
	}, nil
}

// Sign produces the payment payload for this authorization using the wallet's
// typed-data capability and the EIP-712 domain of the given network.
func (a *Authorization) Sign(signer wallet.Signer, networkName string) (*PaymentPayload, error) {
	td, err := a.typedData(networkName)
	if err != nil {
		return nil, err
	}

	signature, err := signer.SignTypedData(td)
	if err != nil {
		return nil, fmt.Errorf("sign transfer authorization: %w", err)
	}

	return &PaymentPayload{
		X402Version: Version,
		Scheme:      SchemeExact,
		Network:     networkName,
		Payload: EVMPayload{
			Signature: "0x" + hex.EncodeToString(signature),
			Authorization: EVMAuthorization{
				From:        a.From.Hex(),
				To:          a.To.Hex(),
				Value:       a.Value.String(),
				ValidAfter:  a.ValidAfter.String(),
				ValidBefore: a.ValidBefore.String(),
				Nonce:       common.BytesToHash(a.Nonce[:]).Hex(),
			},
		},
	}, nil
}
