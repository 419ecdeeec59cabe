// Package catalog holds the fixed set of electrical symbols a user can
// place on a diagram.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"

	"blueprint-editor/domain/core/valueobjects"

	"gopkg.in/yaml.v3"
)

//go:embed symbols.yaml
var builtinYAML []byte

// Catalog is an immutable, ordered set of symbols keyed by id
type Catalog struct {
	symbols []valueobjects.Symbol
	byID    map[string]int
}

type catalogFile struct {
	Symbols []valueobjects.Symbol `yaml:"symbols"`
}

// Default returns the built-in catalog. It panics if the embedded file is
// malformed, which is a build defect.
func Default() *Catalog {
	c, err := Parse(builtinYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded symbols are invalid: %v", err))
	}
	return c
}

// Parse decodes a YAML symbol file
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode symbols: %w", err)
	}
	return New(f.Symbols)
}

// New builds a catalog, rejecting invalid or duplicate symbols
func New(symbols []valueobjects.Symbol) (*Catalog, error) {
	c := &Catalog{
		symbols: make([]valueobjects.Symbol, 0, len(symbols)),
		byID:    make(map[string]int, len(symbols)),
	}
	for _, s := range symbols {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate symbol id %q", s.ID)
		}
		c.byID[s.ID] = len(c.symbols)
		c.symbols = append(c.symbols, s)
	}
	return c, nil
}

// Lookup finds a symbol by id
func (c *Catalog) Lookup(id string) (valueobjects.Symbol, bool) {
	i, ok := c.byID[id]
	if !ok {
		return valueobjects.Symbol{}, false
	}
	return c.symbols[i], true
}

// All returns the symbols in catalog order
func (c *Catalog) All() []valueobjects.Symbol {
	out := make([]valueobjects.Symbol, len(c.symbols))
	copy(out, c.symbols)
	return out
}

// IDs returns the symbol ids sorted alphabetically
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of symbols
func (c *Catalog) Len() int { return len(c.symbols) }
