package config

import "time"

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Diagram constraints
	MaxNodesPerDiagram int
	MaxTitleLength     int
	DefaultTitle       string

	// Upload constraints
	MaxUploadBytes    int64
	MaxFilesPerUpload int
	AcceptedTypes     []AcceptedType
	GeneratedNameLen  int

	// Rendering
	GlyphSize   float64
	GridSpacing float64

	// Time constraints
	SessionTimeout  time.Duration
	DiagramCacheTTL time.Duration
	ListCacheTTL    time.Duration
}

// AcceptedType pairs a file name pattern with the media type the file's
// content must sniff as
type AcceptedType struct {
	Pattern   string
	MediaType string
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxNodesPerDiagram: 5000,
		MaxTitleLength:     256,
		DefaultTitle:       "Untitled blueprint",

		// 4MB, one image per request, png or jpeg
		MaxUploadBytes:    4 << 20,
		MaxFilesPerUpload: 1,
		AcceptedTypes: []AcceptedType{
			{Pattern: "*.png", MediaType: "image/png"},
			{Pattern: "*.{jpg,jpeg}", MediaType: "image/jpeg"},
		},
		GeneratedNameLen: 28,

		GlyphSize:   40,
		GridSpacing: 20,

		SessionTimeout:  24 * time.Hour,
		DiagramCacheTTL: 5 * time.Minute,
		ListCacheTTL:    30 * time.Second,
	}
}

// Validate checks that the configuration is internally consistent
func (c *DomainConfig) Validate() error {
	if c.MaxUploadBytes <= 0 {
		return errInvalid("MaxUploadBytes must be positive")
	}
	if c.MaxFilesPerUpload <= 0 {
		return errInvalid("MaxFilesPerUpload must be positive")
	}
	if len(c.AcceptedTypes) == 0 {
		return errInvalid("at least one accepted upload type is required")
	}
	for _, t := range c.AcceptedTypes {
		if t.Pattern == "" || t.MediaType == "" {
			return errInvalid("accepted upload types need a pattern and a media type")
		}
	}
	if c.GlyphSize <= 0 {
		return errInvalid("GlyphSize must be positive")
	}
	if c.MaxTitleLength <= 0 {
		return errInvalid("MaxTitleLength must be positive")
	}
	return nil
}

type configError string

func (e configError) Error() string { return "domain config: " + string(e) }

func errInvalid(msg string) error { return configError(msg) }
