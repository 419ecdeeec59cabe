package valueobjects

import "errors"

// Symbol is a placeable electrical glyph from the catalog.
// The SVG markup is drawn inside a 40x20 viewBox.
type Symbol struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	SVG         string `json:"svg" yaml:"svg"`
	Description string `json:"description" yaml:"description"`
}

// Validate checks the symbol carries an id and markup
func (s Symbol) Validate() error {
	if s.ID == "" {
		return errors.New("symbol id cannot be empty")
	}
	if s.SVG == "" {
		return errors.New("symbol svg cannot be empty")
	}
	return nil
}

// IsZero reports whether s is the empty symbol
func (s Symbol) IsZero() bool {
	return s == Symbol{}
}
