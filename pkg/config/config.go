// Package config defines the runtime configuration for the SDK: target
// payment network, wallet source, registry and facilitator endpoints, and
// per-operation timeouts. Configuration is built once at startup and passed
// explicitly into each component; the process environment is consulted only
// as a fallback via FromEnv.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"

	"github.com/skillmesh/skillmesh-sdk-go/pkg/x402"
)

// Default endpoints applied by Validate when unset.
const (
	DefaultRegistryURL    = "https://registry.skillmesh.io"
	DefaultAPIURL         = "https://api.skillmesh.io/v1"
	DefaultFacilitatorURL = "https://facilitator.skillmesh.io"
)

// envPrefix namespaces the environment fallbacks (SKILLMESH_NETWORK,
// SKILLMESH_API_KEY, ...).
const envPrefix = "SKILLMESH"

var (
	ErrNoWalletSource = errors.New("config requires a wallet source: set WalletAddress or PrivateKey")
	// ErrHTTPSRequired is returned for plain-http endpoints whose host is not
	// loopback. The localhost exception exists for development only.
	ErrHTTPSRequired = errors.New("endpoint must use https (plain http is allowed only for localhost)")
	ErrBadEndpoint   = errors.New("endpoint is not a valid URL")
)

// Config holds all SDK settings. Use Validate to fill defaults and check
// required fields, and FromEnv to apply environment fallbacks for fields left
// empty.
type Config struct {
	// Network selects the settlement network (e.g., "base", "base-sepolia").
	Network string `json:"network" yaml:"network" envconfig:"NETWORK"`
	// WalletAddress is the creator's receiving address. Sufficient for
	// serving and registering skills.
	WalletAddress string `json:"wallet_address" yaml:"wallet_address" envconfig:"WALLET_ADDRESS"`
	// PrivateKey is a hex-encoded key. Required only for consumer-side
	// payment signing and challenge-response authentication. Never logged
	// in full.
	PrivateKey string `json:"private_key,omitempty" yaml:"private_key,omitempty" envconfig:"PRIVATE_KEY"`
	// APIKey authenticates registry write operations.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" envconfig:"API_KEY"`
	// RegistryURL is the marketplace base URL used to build skill endpoints.
	RegistryURL string `json:"registry_url" yaml:"registry_url" envconfig:"REGISTRY_URL"`
	// APIURL is the marketplace REST API root.
	APIURL string `json:"api_url" yaml:"api_url" envconfig:"API_URL"`
	// FacilitatorURL is the payment verification/settlement service.
	FacilitatorURL string `json:"facilitator_url" yaml:"facilitator_url" envconfig:"FACILITATOR_URL"`
	// Development enables verbose logging and full error messages in skill
	// responses. Production responses mask handler errors.
	Development bool `json:"development" yaml:"development" envconfig:"DEV"`
	// Timeouts configures per-operation deadlines. See Timeouts.WithDefaults.
	Timeouts Timeouts `json:"timeouts,omitempty" yaml:"timeouts,omitempty" ignored:"true"`
}

// Timeouts controls SDK operation deadlines. Zero values are replaced by
// WithDefaults.
type Timeouts struct {
	// HTTP bounds consumer-side skill calls (excluding handler runtime).
	HTTP time.Duration `json:"http,omitempty" yaml:"http,omitempty"`
	// Facilitator bounds verify/settle calls.
	Facilitator time.Duration `json:"facilitator,omitempty" yaml:"facilitator,omitempty"`
	// Registry bounds single registry REST calls (one attempt).
	Registry time.Duration `json:"registry,omitempty" yaml:"registry,omitempty"`
	// Auth bounds each step of the challenge-response flow.
	Auth time.Duration `json:"auth,omitempty" yaml:"auth,omitempty"`
}

// WithDefaults returns a copy of t with zero values replaced:
//
//	HTTP:        60s
//	Facilitator: 15s
//	Registry:    10s
//	Auth:        10s
func (t Timeouts) WithDefaults() Timeouts {
	tt := t
	if tt.HTTP == 0 {
		tt.HTTP = 60 * time.Second
	}
	if tt.Facilitator == 0 {
		tt.Facilitator = 15 * time.Second
	}
	if tt.Registry == 0 {
		tt.Registry = 10 * time.Second
	}
	if tt.Auth == 0 {
		tt.Auth = 10 * time.Second
	}
	return tt
}

// Validate normalizes the configuration: applies endpoint and network
// defaults, fills timeout defaults, and verifies that a wallet source and a
// supported network are present. Endpoints are checked against the HTTPS
// rule.
func (c *Config) Validate() error {
	if c.Network == "" {
		c.Network = x402.DefaultNetwork
	}
	if !x402.IsSupported(c.Network) {
		return fmt.Errorf("%w: %q (supported: %v)", x402.ErrUnknownNetwork, c.Network, x402.Networks())
	}

	if c.RegistryURL == "" {
		c.RegistryURL = DefaultRegistryURL
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.FacilitatorURL == "" {
		c.FacilitatorURL = DefaultFacilitatorURL
	}

	for _, endpoint := range []string{c.RegistryURL, c.APIURL, c.FacilitatorURL} {
		if err := RequireHTTPS(endpoint); err != nil {
			return err
		}
	}

	if c.WalletAddress == "" && c.PrivateKey == "" {
		return ErrNoWalletSource
	}

	c.Timeouts = c.Timeouts.WithDefaults()
	return nil
}

// FromEnv fills empty fields from SKILLMESH_* environment variables. Explicit
// values always win; the environment is a fallback, never an override.
func (c *Config) FromEnv() error {
	var env Config
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	if c.Network == "" {
		c.Network = env.Network
	}
	if c.WalletAddress == "" {
		c.WalletAddress = env.WalletAddress
	}
	if c.PrivateKey == "" {
		c.PrivateKey = env.PrivateKey
	}
	if c.APIKey == "" {
		c.APIKey = env.APIKey
	}
	if c.RegistryURL == "" {
		c.RegistryURL = env.RegistryURL
	}
	if c.APIURL == "" {
		c.APIURL = env.APIURL
	}
	if c.FacilitatorURL == "" {
		c.FacilitatorURL = env.FacilitatorURL
	}
	if !c.Development {
		c.Development = env.Development
	}
	return nil
}

// RequireHTTPS enforces the transport rule for remote endpoints: https
// always passes; plain http passes only when the host is loopback
// (localhost, 127.0.0.1, ::1).
func RequireHTTPS(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrBadEndpoint, rawURL)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host == "localhost" || host == "127.0.0.1" || host == "::1" {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrHTTPSRequired, rawURL)
	default:
		return fmt.Errorf("%w: %q", ErrBadEndpoint, rawURL)
	}
}

// Load reads a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration as YAML with owner-only permissions, since
// the file may carry a private key or API key.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
