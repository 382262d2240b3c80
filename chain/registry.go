package chain

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-yaml/yaml"
	"github.com/gyber/go-custody"
)

// Network is an EVM network the backend can sign for
type Network struct {
	Name     string                `yaml:"name" json:"name"`
	RPCURL   string                `yaml:"rpc_url" json:"rpc_url"`
	ChainID  int64                 `yaml:"chain_id" json:"chain_id"`
	Standard custody.TokenStandard `yaml:"token_standard" json:"token_standard"`
}

// Supports reports whether transfers of standard can be sent on the network
func (n Network) Supports(standard custody.TokenStandard) bool {
	if standard == "" || standard == custody.StandardNative {
		return true
	}
	return n.Standard == standard
}

// Registry is the table of available networks, keyed by name
type Registry struct {
	networks map[string]Network
}

var _ custody.NetworkCatalog = (*Registry)(nil)

// DefaultNetworks are used when no networks file is configured
func DefaultNetworks() []Network {
	return []Network{
		{Name: "eth-mainnet", RPCURL: "https://ethereum-rpc.publicnode.com", ChainID: 1, Standard: custody.StandardERC20},
		{Name: "bsc-mainnet", RPCURL: "https://bsc-dataseed.bnbchain.org", ChainID: 56, Standard: custody.StandardBEP20},
		{Name: "matic-mainnet", RPCURL: "https://polygon-rpc.com", ChainID: 137, Standard: custody.StandardERC20},
	}
}

// NewRegistry validates networks and indexes them by name
func NewRegistry(networks ...Network) (*Registry, error) {
	r := &Registry{networks: make(map[string]Network, len(networks))}
	for _, n := range networks {
		n.Name = strings.TrimSpace(n.Name)
		if n.Name == "" {
			return nil, fmt.Errorf("chain: network name is required")
		}
		if n.ChainID <= 0 {
			return nil, fmt.Errorf("chain: network %s: chain_id must be positive", n.Name)
		}
		if _, ok := r.networks[n.Name]; ok {
			return nil, fmt.Errorf("chain: duplicate network %s", n.Name)
		}
		if n.Standard == "" {
			n.Standard = custody.StandardERC20
		}
		r.networks[n.Name] = n
	}
	return r, nil
}

type registryFile struct {
	Networks []Network `yaml:"networks"`
}

// LoadRegistry reads a YAML networks file. An empty path loads DefaultNetworks.
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return NewRegistry(DefaultNetworks()...)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("chain: read networks: %w", err)
	}

	return ParseRegistry(raw)
}

// ParseRegistry decodes a YAML document with a top level networks list
func ParseRegistry(raw []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("chain: decode networks: %w", err)
	}
	return NewRegistry(file.Networks...)
}

func (r *Registry) Has(network string) bool {
	_, ok := r.networks[network]
	return ok
}

// Names returns the network names in sorted order
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.networks))
	for name := range r.networks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Get(network string) (Network, bool) {
	n, ok := r.networks[network]
	return n, ok
}
