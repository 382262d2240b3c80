package custody

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// ChainPreferences maps a network name to the gas price, in gwei, the
// user wants to pay on that network.
type ChainPreferences map[string]float64

// Add sets the gas preference for network
func (c *ChainPreferences) Add(network string, gas float64) {
	if *c == nil {
		*c = ChainPreferences{}
	}
	(*c)[network] = gas
}

// Remove drops network and reports whether it was present
func (c ChainPreferences) Remove(network string) bool {
	if _, ok := c[network]; !ok {
		return false
	}
	delete(c, network)
	return true
}

// Has reports whether network was added
func (c ChainPreferences) Has(network string) bool {
	_, ok := c[network]
	return ok
}

// Gas returns the preference for network, zero when absent
func (c ChainPreferences) Gas(network string) float64 {
	return c[network]
}

// Networks returns the added networks sorted by name
func (c ChainPreferences) Networks() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy
func (c ChainPreferences) Clone() ChainPreferences {
	out := make(ChainPreferences, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Value stores the mapping as a JSON object
func (c ChainPreferences) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]float64(c))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads a JSON object, NULL and empty values become an empty mapping
func (c *ChainPreferences) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = ChainPreferences{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("chain preferences: unsupported type %T", src)
	}

	if len(raw) == 0 {
		*c = ChainPreferences{}
		return nil
	}

	out := ChainPreferences{}
	if err := json.Unmarshal(raw, (*map[string]float64)(&out)); err != nil {
		return fmt.Errorf("chain preferences: %w", err)
	}
	*c = out
	return nil
}
