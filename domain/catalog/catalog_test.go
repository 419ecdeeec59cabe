package catalog

import (
	"strings"
	"testing"

	"blueprint-editor/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	require.Equal(t, 20, c.Len())

	first := c.All()[0]
	assert.Equal(t, "resistor", first.ID)
	assert.Equal(t, "Resistor", first.Name)

	for _, s := range c.All() {
		assert.True(t, strings.HasPrefix(s.SVG, "<svg"), s.ID)
		assert.Contains(t, s.SVG, `viewBox="0 0 40 20"`, s.ID)
		assert.NotEmpty(t, s.Description, s.ID)
	}
}

func TestLookup(t *testing.T) {
	c := Default()

	s, ok := c.Lookup("op-amp")
	require.True(t, ok)
	assert.Equal(t, "Op-Amp", s.Name)

	_, ok = c.Lookup("flux-capacitor")
	assert.False(t, ok)
}

func TestNewRejectsDuplicates(t *testing.T) {
	s := valueobjects.Symbol{ID: "a", Name: "A", SVG: "<svg/>"}
	_, err := New([]valueobjects.Symbol{s, s})
	assert.Error(t, err)

	_, err = New([]valueobjects.Symbol{{ID: "b"}})
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
symbols:
  - id: lamp
    name: Lamp
    svg: '<svg viewBox="0 0 40 20"></svg>'
    description: A lamp
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"lamp"}, c.IDs())

	_, err = Parse([]byte("symbols: [::"))
	assert.Error(t, err)
}

func TestAllReturnsCopy(t *testing.T) {
	c := Default()
	all := c.All()
	all[0].Name = "changed"
	s, _ := c.Lookup("resistor")
	assert.Equal(t, "Resistor", s.Name)
}
