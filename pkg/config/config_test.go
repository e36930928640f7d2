package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/skillmesh/skillmesh-sdk-go/pkg/x402"
)

// TestValidate_AppliesDefaults verifies that Validate fills endpoint,
// network and timeout defaults when they are not explicitly set.
func TestValidate_AppliesDefaults(t *testing.T) {
	cfg := &Config{WalletAddress: "0x94d04332C4f5273feF69c4a52D24f42a3aF1F207"}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if cfg.Network != x402.DefaultNetwork {
		t.Fatalf("network = %q, want default %q", cfg.Network, x402.DefaultNetwork)
	}
	if cfg.RegistryURL != DefaultRegistryURL || cfg.APIURL != DefaultAPIURL || cfg.FacilitatorURL != DefaultFacilitatorURL {
		t.Fatalf("endpoint defaults not applied: %+v", cfg)
	}
	if cfg.Timeouts.Facilitator != 15*time.Second {
		t.Fatalf("timeout defaults not applied: %+v", cfg.Timeouts)
	}
}

// TestValidate_RequiresWalletSource verifies that a config without any
// wallet source is rejected.
func TestValidate_RequiresWalletSource(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); !errors.Is(err, ErrNoWalletSource) {
		t.Fatalf("error = %v, want ErrNoWalletSource", err)
	}
}

// TestValidate_RejectsUnknownNetwork verifies the network guard.
func TestValidate_RejectsUnknownNetwork(t *testing.T) {
	cfg := &Config{Network: "dogechain", WalletAddress: "0x94d04332C4f5273feF69c4a52D24f42a3aF1F207"}
	if err := cfg.Validate(); !errors.Is(err, x402.ErrUnknownNetwork) {
		t.Fatalf("error = %v, want ErrUnknownNetwork", err)
	}
}

// TestRequireHTTPS verifies the https rule and its loopback exception.
func TestRequireHTTPS(t *testing.T) {
	tests := []struct {
		url     string
		wantErr error
	}{
		{url: "https://registry.example.com"},
		{url: "http://localhost:8080"},
		{url: "http://127.0.0.1:3000"},
		{url: "http://registry.example.com", wantErr: ErrHTTPSRequired},
		{url: "ftp://registry.example.com", wantErr: ErrBadEndpoint},
		{url: "not a url", wantErr: ErrBadEndpoint},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := RequireHTTPS(tt.url)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("RequireHTTPS(%q) returned error: %v", tt.url, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("RequireHTTPS(%q) error = %v, want %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

// TestFromEnv_FallbackOnly verifies that environment values fill only empty
// fields and never override explicit configuration.
func TestFromEnv_FallbackOnly(t *testing.T) {
	t.Setenv("SKILLMESH_NETWORK", "base")
	t.Setenv("SKILLMESH_API_KEY", "env-key")

	cfg := &Config{Network: "base-sepolia"}
	if err := cfg.FromEnv(); err != nil {
		t.Fatalf("FromEnv returned error: %v", err)
	}
	if cfg.Network != "base-sepolia" {
		t.Fatalf("explicit network overridden: %q", cfg.Network)
	}
	if cfg.APIKey != "env-key" {
		t.Fatalf("env fallback not applied: %q", cfg.APIKey)
	}
}

// TestLoadSave verifies the YAML round trip.
func TestLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skillmesh.yaml")
	cfg := &Config{
		Network:       "base",
		WalletAddress: "0x94d04332C4f5273feF69c4a52D24f42a3aF1F207",
		APIKey:        "secret",
	}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.Network != cfg.Network || loaded.WalletAddress != cfg.WalletAddress || loaded.APIKey != cfg.APIKey {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}
