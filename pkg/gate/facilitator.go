// Package gate implements the creator side of the payment gate: a route
// table of payment requirements derived from the skill catalog, a client for
// the external verification/settlement facilitator, and gin middleware that
// blocks unpaid calls with a machine-readable 402.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/skillmesh/skillmesh-sdk-go/pkg/x402"
)

// Facilitator verifies and settles payment proofs on behalf of the resource
// server. It is a plain REST client; the settlement protocol itself is the
// facilitator's business.
type Facilitator struct {
	client *resty.Client
}

// NewFacilitator builds a facilitator client for the given base URL.
func NewFacilitator(baseURL string, timeout time.Duration) *Facilitator {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &Facilitator{client: client}
}

// checkRequest is the body of both /verify and /settle calls.
type checkRequest struct {
	X402Version         int                       `json:"x402Version"`
	PaymentPayload      *x402.PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements *x402.PaymentRequirements `json:"paymentRequirements"`
}

// Verify checks a payment proof against the route's requirements without
// executing the transfer.
func (f *Facilitator) Verify(ctx context.Context, payload *x402.PaymentPayload, requirements *x402.PaymentRequirements) (*x402.VerifyResponse, error) {
	var out x402.VerifyResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(checkRequest{X402Version: x402.Version, PaymentPayload: payload, PaymentRequirements: requirements}).
		SetResult(&out).
		Post("/verify")
	if err != nil {
		return nil, fmt.Errorf("facilitator verify: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("facilitator verify: %s: %s", resp.Status(), resp.String())
	}
	return &out, nil
}

// Settle executes the transfer for a verified payment and returns the
// settlement metadata (payer, transaction reference).
func (f *Facilitator) Settle(ctx context.Context, payload *x402.PaymentPayload, requirements *x402.PaymentRequirements) (*x402.SettleResponse, error) {
	var out x402.SettleResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(checkRequest{X402Version: x402.Version, PaymentPayload: payload, PaymentRequirements: requirements}).
		SetResult(&out).
		Post("/settle")
	if err != nil {
		return nil, fmt.Errorf("facilitator settle: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("facilitator settle: %s: %s", resp.Status(), resp.String())
	}
	return &out, nil
}
