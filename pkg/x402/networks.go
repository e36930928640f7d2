package x402

import "math/big"

// network describes a supported settlement network: its chain id, the USDC
// token contract on it, and the token's EIP-712 domain parameters.
type network struct {
	chainID       int64
	usdcAsset     string
	domainName    string
	domainVersion string
}

// Supported network identifiers.
const (
	NetworkBase        = "base"
	NetworkBaseSepolia = "base-sepolia"
)

// DefaultNetwork is used when configuration does not name one.
const DefaultNetwork = NetworkBaseSepolia

var networks = map[string]network{
	NetworkBase: {
		chainID:       8453,
		usdcAsset:     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		domainName:    "USD Coin",
		domainVersion: "2",
	},
	NetworkBaseSepolia: {
		chainID:       84532,
		usdcAsset:     "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		domainName:    "USDC",
		domainVersion: "2",
	},
}

// ChainID returns the EIP-155 chain id of a supported network.
func ChainID(name string) (*big.Int, error) {
	n, ok := networks[name]
	if !ok {
		return nil, ErrUnknownNetwork
	}
	return big.NewInt(n.chainID), nil
}

// USDCAsset returns the USDC token contract address on a supported network.
func USDCAsset(name string) (string, error) {
	n, ok := networks[name]
	if !ok {
		return "", ErrUnknownNetwork
	}
	return n.usdcAsset, nil
}

// IsSupported reports whether the network identifier is known.
func IsSupported(name string) bool {
	_, ok := networks[name]
	return ok
}

// Networks lists the supported network identifiers.
func Networks() []string {
	out := make([]string, 0, len(networks))
	for name := range networks {
		out = append(out, name)
	}
	return out
}
