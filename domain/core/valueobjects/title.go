package valueobjects

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"blueprint-editor/domain/config"
	pkgerrors "blueprint-editor/pkg/errors"
)

// Title is a trimmed, length-limited diagram title
type Title struct {
	value string
}

// NewTitle creates a title using the default configuration
func NewTitle(raw string) (Title, error) {
	return NewTitleWithConfig(raw, config.DefaultDomainConfig())
}

// NewTitleWithConfig creates a title, falling back to the configured
// default when raw is blank
func NewTitleWithConfig(raw string, cfg *config.DomainConfig) (Title, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = cfg.DefaultTitle
	}

	if utf8.RuneCountInString(raw) > cfg.MaxTitleLength {
		return Title{}, pkgerrors.NewValidationError(
			fmt.Sprintf("title exceeds maximum length of %d characters", cfg.MaxTitleLength))
	}

	return Title{value: raw}, nil
}

// String returns the title text
func (t Title) String() string { return t.value }

// TitleFromStorage wraps a stored title without validation
func TitleFromStorage(raw string) Title {
	return Title{value: raw}
}
