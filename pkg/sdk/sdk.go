// Package sdk exposes the high-level SkillMesh entry points. It wires
// together wallet resolution, the registry client, challenge-response
// authentication, the payment-gated consumer transport and the skill server
// shell behind a single validated configuration.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/skillmesh/skillmesh-sdk-go/pkg/auth"
	"github.com/skillmesh/skillmesh-sdk-go/pkg/config"
	"github.com/skillmesh/skillmesh-sdk-go/pkg/model"
	"github.com/skillmesh/skillmesh-sdk-go/pkg/payment"
	"github.com/skillmesh/skillmesh-sdk-go/pkg/registry"
	"github.com/skillmesh/skillmesh-sdk-go/pkg/server"
	"github.com/skillmesh/skillmesh-sdk-go/pkg/wallet"
)

// init configures a default global zap logger for the SDK. Applications may
// replace it with zap.ReplaceGlobals(...) if they need custom logging.
func init() {
	c := zap.Config{
		Level:            zap.NewAtomicLevelAt(zap.InfoLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := c.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}

// ErrNoPrivateKey is returned by consumer-side operations when the
// configuration carries only a receiving address.
var ErrNoPrivateKey = errors.New("operation requires a private key; config has a wallet address only")

// Core is the concrete SDK implementation.
type Core struct {
	*config.Config

	wallet   *wallet.Wallet
	registry *registry.Client
	auth     *auth.Authenticator
}

// NewSDK validates the configuration, applies environment fallbacks and
// builds the shared clients. A wallet address alone is sufficient for
// serving and registering; paying and authenticating need a private key.
func NewSDK(cfg *config.Config) (*Core, error) {
	if err := cfg.FromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var w *wallet.Wallet
	if cfg.PrivateKey != "" {
		resolved, err := wallet.Resolve(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		w = resolved
	} else {
		addr, err := wallet.ResolveAddress(cfg.WalletAddress)
		if err != nil {
			return nil, err
		}
		w = wallet.NewFromAddress(addr)
	}

	registryClient, err := registry.NewClient(cfg.APIURL, registry.Credentials{APIKey: cfg.APIKey}, cfg.Timeouts.Registry)
	if err != nil {
		return nil, err
	}
	authenticator, err := auth.New(cfg.APIURL, cfg.Timeouts.Auth)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("sdk initialized",
		zap.String("address", w.Address().Hex()),
		zap.String("network", cfg.Network),
		zap.Bool("canSign", w.CanSign()),
	)
	return &Core{
		Config:   cfg,
		wallet:   w,
		registry: registryClient,
		auth:     authenticator,
	}, nil
}

// Wallet returns the resolved wallet.
func (c *Core) Wallet() *wallet.Wallet {
	return c.wallet
}

// Registry returns the shared registry client.
func (c *Core) Registry() *registry.Client {
	return c.registry
}

// NewServer builds a skill server wired to this core's configuration, with
// usage reporting attached.
func (c *Core) NewServer(skills model.Skills, opts ...server.Option) (*server.Server, error) {
	opts = append([]server.Option{server.WithRegistry(c.registry)}, opts...)
	return server.New(c.Config, skills, opts...)
}

// NewConsumerClient returns an http.Client whose transport answers 402
// challenges by paying them. Requires a private key.
func (c *Core) NewConsumerClient(opts ...payment.Option) (*http.Client, error) {
	if !c.wallet.CanSign() {
		return nil, ErrNoPrivateKey
	}
	return payment.NewClient(c.wallet, c.Network, opts...), nil
}

// Register publishes the skill catalog to the registry under this core's
// payout address.
func (c *Core) Register(ctx context.Context, skills model.Skills, opts registry.RegisterOptions) ([]model.RegistrationResult, error) {
	if opts.PaymentAddress == "" {
		opts.PaymentAddress = c.wallet.Address().Hex()
	}
	return c.registry.Register(ctx, skills, opts)
}

// Authenticate runs the challenge-response flow and stores the bearer token
// on the registry client for subsequent authenticated calls.
func (c *Core) Authenticate(ctx context.Context) (*model.AuthResult, error) {
	if !c.wallet.CanSign() {
		return nil, ErrNoPrivateKey
	}
	result, err := c.auth.Authenticate(ctx, c.wallet)
	if err != nil {
		return nil, err
	}
	c.registry.SetToken(result.Token)
	return result, nil
}

// RefreshToken exchanges a refresh token for a new bearer token and stores it.
func (c *Core) RefreshToken(ctx context.Context, refreshToken string) (*model.RefreshResult, error) {
	result, err := c.auth.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	c.registry.SetToken(result.Token)
	return result, nil
}

// CallResult is the decoded response envelope of a paid skill call.
type CallResult struct {
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result"`
	Error     string          `json:"error,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// Call POSTs input to endpoint/<skill> through the paying transport and
// decodes the response envelope. A handler-side failure surfaces as an error
// carrying the envelope's error text.
func (c *Core) Call(ctx context.Context, endpoint, skill string, input map[string]any) (*CallResult, error) {
	client, err := c.NewConsumerClient()
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}
	url := strings.TrimSuffix(endpoint, "/") + "/" + skill
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result CallResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !result.Success {
		return &result, fmt.Errorf("skill %q failed: %s", skill, result.Error)
	}
	return &result, nil
}
