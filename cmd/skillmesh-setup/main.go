// Command skillmesh-setup interactively writes a skillmesh.yaml config.
// Prompts accept empty input to keep defaults; the private key is echoed
// masked and never printed in full.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/skillmesh/skillmesh-sdk-go/pkg/config"
	"github.com/skillmesh/skillmesh-sdk-go/pkg/wallet"
	"github.com/skillmesh/skillmesh-sdk-go/pkg/x402"
)

func main() {
	out := flag.String("o", "skillmesh.yaml", "output config path")
	flag.Parse()

	in := bufio.NewReader(os.Stdin)
	cfg := &config.Config{}

	cfg.Network = prompt(in, fmt.Sprintf("Network %v", x402.Networks()), x402.DefaultNetwork)

	address := prompt(in, "Wallet address (blank to derive from key)", "")
	if address != "" {
		addr, err := wallet.ResolveAddress(address)
		if err != nil {
			log.Fatalf("invalid wallet address: %v", err)
		}
		cfg.WalletAddress = addr.Hex()
	}

	key := prompt(in, "Private key (blank for serve-only setup)", "")
	if key != "" {
		w, err := wallet.Resolve(key)
		if err != nil {
			log.Fatalf("invalid private key: %v", err)
		}
		cfg.PrivateKey = key
		fmt.Printf("  using key %s for address %s\n", wallet.MaskKey(key), w.Address().Hex())
		if cfg.WalletAddress == "" {
			cfg.WalletAddress = w.Address().Hex()
		}
	}

	cfg.APIKey = prompt(in, "Registry API key (optional)", "")
	cfg.RegistryURL = prompt(in, "Registry URL", config.DefaultRegistryURL)
	cfg.APIURL = prompt(in, "API URL", config.DefaultAPIURL)
	cfg.FacilitatorURL = prompt(in, "Facilitator URL", config.DefaultFacilitatorURL)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("configuration invalid: %v", err)
	}
	if err := cfg.Save(*out); err != nil {
		log.Fatalf("write config: %v", err)
	}
	fmt.Printf("wrote %s\n", *out)
}

// prompt reads one trimmed line, returning def on empty input.
func prompt(in *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return def
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}
