package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultDomainConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*DomainConfig)
	}{
		{"no accepted types", func(c *DomainConfig) { c.AcceptedTypes = nil }},
		{"type without media type", func(c *DomainConfig) {
			c.AcceptedTypes = []AcceptedType{{Pattern: "*.png"}}
		}},
		{"zero upload limit", func(c *DomainConfig) { c.MaxUploadBytes = 0 }},
		{"zero glyph", func(c *DomainConfig) { c.GlyphSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDomainConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
