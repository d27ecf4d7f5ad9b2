package entity

import (
	"math/big"
	"sort"
	"strings"

	"chainstack-provider/internal/domain"
	"chainstack-provider/internal/pkg/apperrors"
)

// UnknownNetworkName is the name given to networks resolved from an unregistered chain ID.
const UnknownNetworkName = "unknown"

// Network is the canonical identity of a blockchain network.
type Network struct {
	Name    string `json:"name"`
	ChainID uint64 `json:"chainId"`
}

// IsUnknown reports whether the network was resolved from an unregistered chain ID.
func (n Network) IsUnknown() bool {
	return n.Name == UnknownNetworkName
}

type networkDef struct {
	network Network
	aliases []string
}

var networkDefs = []networkDef{ //nolint:gochecknoglobals // static registry
	{Network{Name: "mainnet", ChainID: 1}, []string{"ethereum", "homestead"}},
	{Network{Name: "sepolia", ChainID: 11155111}, nil},
	{Network{Name: "holesky", ChainID: 17000}, nil},
	{Network{Name: "polygon", ChainID: 137}, []string{"matic"}},
	{Network{Name: "bsc", ChainID: 56}, []string{"bnb"}},
	{Network{Name: "avalanche", ChainID: 43114}, []string{"avax"}},
	{Network{Name: "arbitrum", ChainID: 42161}, []string{"arbitrum-one"}},
	// Chainstack's "scroll" endpoint serves the Sepolia testnet.
	{Network{Name: "scroll", ChainID: 534351}, []string{"scroll-sepolia"}},
	{Network{Name: "fantom", ChainID: 250}, []string{"ftm"}},
	{Network{Name: "optimism", ChainID: 10}, nil},
	{Network{Name: "base", ChainID: 8453}, nil},
	{Network{Name: "gnosis", ChainID: 100}, []string{"xdai"}},
	{Network{Name: "linea", ChainID: 59144}, nil},
	{Network{Name: "zksync", ChainID: 324}, nil},
}

var (
	networksByName    = make(map[string]Network) //nolint:gochecknoglobals // built once from networkDefs
	networksByChainID = make(map[uint64]Network) //nolint:gochecknoglobals // built once from networkDefs
)

func init() {
	for _, def := range networkDefs {
		networksByName[def.network.Name] = def.network
		networksByChainID[def.network.ChainID] = def.network
		for _, alias := range def.aliases {
			networksByName[alias] = def.network
		}
	}
}

// NetworkByName looks up a registered network by its canonical name or an alias.
func NetworkByName(name string) (Network, bool) {
	n, ok := networksByName[strings.ToLower(strings.TrimSpace(name))]
	return n, ok
}

// NetworkByChainID looks up a registered network by chain ID.
func NetworkByChainID(chainID uint64) (Network, bool) {
	n, ok := networksByChainID[chainID]
	return n, ok
}

// KnownNetworks returns all registered networks ordered by chain ID.
func KnownNetworks() []Network {
	out := make([]Network, 0, len(networkDefs))
	for _, def := range networkDefs {
		out = append(out, def.network)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

// NetworkFrom resolves a loose network specifier into a canonical Network.
//
// Accepted forms are a name or alias, a chain ID as any integer type or *big.Int,
// and Network values. Unregistered chain IDs resolve to a network named "unknown";
// unregistered names are an error.
func NetworkFrom(v any) (Network, error) {
	switch n := v.(type) {
	case nil:
		return Network{}, apperrors.NewArgumentError(domain.ErrUnknownNetwork, "network", nil)
	case Network:
		return n, nil
	case *Network:
		if n == nil {
			return Network{}, apperrors.NewArgumentError(domain.ErrUnknownNetwork, "network", nil)
		}
		return *n, nil
	case string:
		if network, ok := NetworkByName(n); ok {
			return network, nil
		}
		return Network{}, apperrors.NewArgumentError(domain.ErrUnknownNetwork, "network", n)
	case uint64:
		return networkFromChainID(n), nil
	case uint:
		return networkFromChainID(uint64(n)), nil
	case uint32:
		return networkFromChainID(uint64(n)), nil
	case int:
		return networkFromSigned(int64(n))
	case int32:
		return networkFromSigned(int64(n))
	case int64:
		return networkFromSigned(n)
	case *big.Int:
		if n == nil || n.Sign() < 0 || !n.IsUint64() {
			return Network{}, apperrors.NewArgumentError(domain.ErrUnknownNetwork, "chainId", n)
		}
		return networkFromChainID(n.Uint64()), nil
	default:
		return Network{}, apperrors.NewArgumentError(domain.ErrUnknownNetwork, "network", v)
	}
}

func networkFromSigned(id int64) (Network, error) {
	if id < 0 {
		return Network{}, apperrors.NewArgumentError(domain.ErrUnknownNetwork, "chainId", id)
	}
	return networkFromChainID(uint64(id)), nil
}

func networkFromChainID(id uint64) Network {
	if network, ok := networksByChainID[id]; ok {
		return network
	}
	return Network{Name: UnknownNetworkName, ChainID: id}
}
