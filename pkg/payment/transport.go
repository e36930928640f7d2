// Package payment implements the consumer side of the payment gate: an
// http.RoundTripper that intercepts 402 Payment Required responses, signs a
// transfer authorization with the consumer's wallet, and retries the request
// exactly once with the payment proof attached.
package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/skillmesh/skillmesh-sdk-go/pkg/wallet"
	"github.com/skillmesh/skillmesh-sdk-go/pkg/x402"
)

// ErrPaymentFailed marks failures of the payment itself (signing, declined
// authorization) as opposed to ordinary transport failures. Branch with
// errors.Is / errors.As on *Error.
var ErrPaymentFailed = errors.New("payment failed")

// Error wraps a payment-path failure so callers can distinguish "payment
// declined" from "network error".
type Error struct {
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("payment failed: %s: %v", e.Reason, e.cause)
	}
	return "payment failed: " + e.Reason
}

func (e *Error) Unwrap() error { return ErrPaymentFailed }

// Cause returns the underlying error, if any.
func (e *Error) Cause() error { return e.cause }

// Observer receives best-effort notification after a paid retry completes.
// Panics are swallowed; an observer can never affect the call.
type Observer func(requirement *x402.PaymentRequirements, settlement *x402.SettleResponse)

// Transport is an http.RoundTripper wrapping a base transport with the
// single-retry 402 protocol. Any response other than 402 is returned
// unchanged from the first attempt.
type Transport struct {
	// Base is the underlying transport; http.DefaultTransport when nil.
	Base http.RoundTripper
	// Wallet must carry a signing capability.
	Wallet *wallet.Wallet
	// Network is the settlement network this consumer pays on.
	Network string
	// OnPayment, when set, observes settled payments.
	OnPayment Observer
}

// Option customizes the paying transport built by NewClient.
type Option func(*Transport)

// WithObserver attaches a settlement observer.
func WithObserver(obs Observer) Option {
	return func(t *Transport) { t.OnPayment = obs }
}

// WithBase replaces the underlying transport.
func WithBase(base http.RoundTripper) Option {
	return func(t *Transport) { t.Base = base }
}

// NewClient builds an http.Client whose transport pays for 402-gated
// resources automatically.
func NewClient(w *wallet.Wallet, network string, opts ...Option) *http.Client {
	t := &Transport{Wallet: w, Network: network}
	for _, opt := range opts {
		opt(t)
	}
	return &http.Client{Transport: t}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	// Buffer the body so the request can be replayed on the paid retry.
	var bodyCopy []byte
	if req.Body != nil {
		var err error
		bodyCopy, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(bodyCopy))
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	required, err := parseRequirements(resp)
	if err != nil {
		return nil, err
	}

	requirement, err := x402.SelectRequirement(required, t.Network)
	if err != nil {
		return nil, err
	}

	header, err := t.buildPaymentHeader(requirement)
	if err != nil {
		return nil, err
	}

	retry := req.Clone(req.Context())
	if bodyCopy != nil {
		retry.Body = io.NopCloser(bytes.NewReader(bodyCopy))
	}
	retry.Header.Set(x402.PaymentHeader, header)

	zap.L().Debug("retrying with payment",
		zap.String("url", req.URL.String()),
		zap.String("network", requirement.Network),
		zap.String("amount", requirement.MaxAmountRequired))

	// Single retry; whatever comes back is final.
	paid, err := base.RoundTrip(retry)
	if err != nil {
		return nil, err
	}

	if t.OnPayment != nil {
		settlement := x402.DecodeSettlement(paid.Header.Get(x402.SettlementHeader))
		notify(t.OnPayment, requirement, settlement)
	}
	return paid, nil
}

// buildPaymentHeader constructs and signs the transfer authorization for the
// selected requirement.
func (t *Transport) buildPaymentHeader(requirement *x402.PaymentRequirements) (string, error) {
	if t.Wallet == nil || !t.Wallet.CanSign() {
		return "", &Error{Reason: "wallet has no signing capability"}
	}

	value, ok := new(big.Int).SetString(requirement.MaxAmountRequired, 10)
	if !ok {
		return "", &Error{Reason: "requirement carries a non-numeric amount: " + requirement.MaxAmountRequired}
	}

	auth, err := x402.NewAuthorization(
		t.Wallet.Address(),
		common.HexToAddress(requirement.PayTo),
		value,
		requirement.MaxTimeoutSeconds,
	)
	if err != nil {
		return "", &Error{Reason: "build authorization", cause: err}
	}

	payload, err := auth.Sign(t.Wallet, t.Network)
	if err != nil {
		return "", &Error{Reason: "sign authorization", cause: err}
	}

	header, err := x402.EncodePayment(payload)
	if err != nil {
		return "", &Error{Reason: "encode payment header", cause: err}
	}
	return header, nil
}

// parseRequirements decodes and drains the 402 response body.
func parseRequirements(resp *http.Response) (*x402.PaymentRequired, error) {
	defer resp.Body.Close()
	var required x402.PaymentRequired
	if err := json.NewDecoder(resp.Body).Decode(&required); err != nil {
		return nil, fmt.Errorf("parse 402 payment requirements: %w", err)
	}
	return &required, nil
}

// notify invokes an observer, swallowing panics.
func notify(obs Observer, requirement *x402.PaymentRequirements, settlement *x402.SettleResponse) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Debug("payment observer panicked", zap.Any("panic", r))
		}
	}()
	obs(requirement, settlement)
}
