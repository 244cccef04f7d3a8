package feeds

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed coins.yaml
var defaultCoins []byte

type Coin struct {
	Symbol      string `yaml:"symbol"`
	CoinGeckoID string `yaml:"coingecko_id"`
}

type coinsFile struct {
	Coins []Coin `yaml:"coins"`
}

// Registry maps ticker symbols to CoinGecko ids.
type Registry struct {
	ids map[string]string
}

// DefaultRegistry is the built-in coin list.
func DefaultRegistry() *Registry {
	r, err := parseRegistry(defaultCoins)
	if err != nil {
		panic(fmt.Sprintf("embedded coins.yaml: %v", err))
	}
	return r
}

// LoadRegistry reads a coin list from path, relative to the working
// directory when not absolute. An empty path yields the default registry.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}
	if !filepath.IsAbs(path) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		path = filepath.Join(wd, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}
	return parseRegistry(data)
}

func parseRegistry(data []byte) (*Registry, error) {
	var f coinsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unable to parse coin list: %w", err)
	}
	r := &Registry{ids: make(map[string]string, len(f.Coins))}
	for i, c := range f.Coins {
		if c.Symbol == "" {
			return nil, fmt.Errorf("coin at index %d missing symbol", i)
		}
		if c.CoinGeckoID == "" {
			return nil, fmt.Errorf("coin at index %d missing coingecko_id", i)
		}
		r.ids[strings.ToUpper(c.Symbol)] = c.CoinGeckoID
	}
	return r, nil
}

func (r *Registry) ID(symbol string) (string, bool) {
	id, ok := r.ids[strings.ToUpper(symbol)]
	return id, ok
}

// Symbols returns the registered symbols in sorted order.
func (r *Registry) Symbols() []string {
	out := make([]string, 0, len(r.ids))
	for s := range r.ids {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
