// Package auth implements the registry's challenge-response authentication:
// fetch a signing challenge for an address, sign it with the wallet's
// message-signing capability, exchange the signature for a bearer token, and
// refresh the token before it expires. Refresh is caller-driven; the SDK
// never refreshes autonomously.
package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/skillmesh/skillmesh-sdk-go/pkg/config"
	"github.com/skillmesh/skillmesh-sdk-go/pkg/model"
	"github.com/skillmesh/skillmesh-sdk-go/pkg/wallet"
)

var (
	ErrChallengeRequest     = errors.New("challenge request failed")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRefreshFailed        = errors.New("token refresh failed")
	ErrNoSigner             = errors.New("wallet has no signing capability; authentication requires a private key")
)

// Authenticator performs the challenge-response flow against a registry API.
type Authenticator struct {
	http *resty.Client
}

// New builds an authenticator for the given API root, enforcing the HTTPS
// rule (loopback excepted).
func New(apiURL string, timeout time.Duration) (*Authenticator, error) {
	if err := config.RequireHTTPS(apiURL); err != nil {
		return nil, err
	}
	client := resty.New().
		SetBaseURL(apiURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &Authenticator{http: client}, nil
}

type challengeResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type verifyResponse struct {
	model.AuthResult
	Error string `json:"error,omitempty"`
}

// Authenticate runs the full flow: request a challenge for the wallet's
// address, sign the challenge message, and exchange the signature for a
// bearer token. Server-provided error text is surfaced on failure.
func (a *Authenticator) Authenticate(ctx context.Context, w *wallet.Wallet) (*model.AuthResult, error) {
	if !w.CanSign() {
		return nil, ErrNoSigner
	}
	address := w.Address().Hex()

	var challenge challengeResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"address": address}).
		SetResult(&challenge).
		SetError(&challenge).
		Post("/auth/challenge")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChallengeRequest, err)
	}
	if resp.IsError() {
		return nil, serverError(ErrChallengeRequest, resp, challenge.Error)
	}
	if challenge.Message == "" {
		return nil, fmt.Errorf("%w: empty challenge message", ErrChallengeRequest)
	}

	signature, err := w.SignMessage([]byte(challenge.Message))
	if err != nil {
		return nil, fmt.Errorf("sign challenge: %w", err)
	}

	var verified verifyResponse
	resp, err = a.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"address":   address,
			"signature": "0x" + hex.EncodeToString(signature),
		}).
		SetResult(&verified).
		SetError(&verified).
		Post("/auth/verify")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	if resp.IsError() {
		return nil, serverError(ErrAuthenticationFailed, resp, verified.Error)
	}
	if verified.Token == "" {
		return nil, fmt.Errorf("%w: server returned no token", ErrAuthenticationFailed)
	}

	zap.L().Debug("authenticated with registry", zap.String("address", address))
	return &verified.AuthResult, nil
}

type refreshResponse struct {
	model.RefreshResult
	Error string `json:"error,omitempty"`
}

// Refresh exchanges a refresh token for a new bearer token.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (*model.RefreshResult, error) {
	var refreshed refreshResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"refreshToken": refreshToken}).
		SetResult(&refreshed).
		SetError(&refreshed).
		Post("/auth/refresh")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if resp.IsError() {
		return nil, serverError(ErrRefreshFailed, resp, refreshed.Error)
	}
	if refreshed.Token == "" {
		return nil, fmt.Errorf("%w: server returned no token", ErrRefreshFailed)
	}
	return &refreshed.RefreshResult, nil
}

// serverError wraps a sentinel with the server's own error text when it
// provided one.
func serverError(sentinel error, resp *resty.Response, serverText string) error {
	if serverText != "" {
		return fmt.Errorf("%w: %s", sentinel, serverText)
	}
	return fmt.Errorf("%w: %s", sentinel, resp.Status())
}
