package x402

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// EncodePayment renders a PaymentPayload as base64(JSON) for the
// PaymentHeader value.
func EncodePayment(payload *PaymentPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payment payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodePayment parses a PaymentHeader value. It validates the protocol
// version and returns ErrMalformedHeader for undecodable input.
func DecodePayment(encoded string) (*PaymentPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrMalformedHeader
	}
	var payload PaymentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrMalformedHeader
	}
	if payload.X402Version != Version {
		return nil, ErrUnsupportedVersion
	}
	return &payload, nil
}

// EncodeSettlement renders a SettleResponse as base64(JSON) for the
// SettlementHeader value.
func EncodeSettlement(settlement *SettleResponse) (string, error) {
	data, err := json.Marshal(settlement)
	if err != nil {
		return "", fmt.Errorf("marshal settlement: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeSettlement parses a SettlementHeader value. A missing or undecodable
// header yields nil without error; settlement reporting is best-effort.
func DecodeSettlement(encoded string) *SettleResponse {
	if encoded == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}
	var settlement SettleResponse
	if err := json.Unmarshal(raw, &settlement); err != nil {
		return nil
	}
	return &settlement
}
