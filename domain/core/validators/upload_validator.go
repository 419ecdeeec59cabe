package validators

import (
	"mime"
	"net/http"
	"path"
	"strings"

	"blueprint-editor/domain/config"
	"blueprint-editor/pkg/errors"

	"github.com/bmatcuk/doublestar/v4"
)

// UploadValidator enforces the blueprint upload rules
type UploadValidator struct {
	maxBytes int64
	maxFiles int
	accepted []config.AcceptedType
}

// NewUploadValidator creates a validator from domain configuration
func NewUploadValidator(cfg *config.DomainConfig) *UploadValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	accepted := make([]config.AcceptedType, len(cfg.AcceptedTypes))
	for i, t := range cfg.AcceptedTypes {
		accepted[i] = config.AcceptedType{
			Pattern:   strings.ToLower(t.Pattern),
			MediaType: strings.ToLower(t.MediaType),
		}
	}
	return &UploadValidator{
		maxBytes: cfg.MaxUploadBytes,
		maxFiles: cfg.MaxFilesPerUpload,
		accepted: accepted,
	}
}

// MaxBytes returns the per-file size limit
func (v *UploadValidator) MaxBytes() int64 { return v.maxBytes }

// ValidateCount rejects requests carrying more files than allowed
func (v *UploadValidator) ValidateCount(n int) error {
	if n == 0 {
		return errors.NewNoFileError()
	}
	if n > v.maxFiles {
		return errors.NewTooManyFilesError(n, v.maxFiles)
	}
	return nil
}

// ValidateSize rejects files above the size limit
func (v *UploadValidator) ValidateSize(name string, size int64) error {
	if size > v.maxBytes {
		return errors.NewFileTooLargeError(name, size, v.maxBytes)
	}
	return nil
}

// ValidateType matches the file name against the accepted patterns and
// requires the sniffed content type to be the media type paired with that
// pattern. It returns the media type that will be stored.
func (v *UploadValidator) ValidateType(name string, head []byte) (string, error) {
	base := strings.ToLower(path.Base(name))
	want, ok := v.mediaTypeFor(base)
	if !ok {
		return "", errors.NewInvalidFileTypeError(name, mime.TypeByExtension(path.Ext(base)))
	}

	sniffed := http.DetectContentType(head)
	mediaType, _, err := mime.ParseMediaType(sniffed)
	if err != nil {
		return "", errors.NewInvalidFileTypeError(name, sniffed)
	}
	if mediaType != want {
		return "", errors.NewInvalidFileTypeError(name, mediaType)
	}
	return mediaType, nil
}

// mediaTypeFor returns the media type paired with the first pattern that
// matches base
func (v *UploadValidator) mediaTypeFor(base string) (string, bool) {
	for _, t := range v.accepted {
		if ok, err := doublestar.Match(t.Pattern, base); err == nil && ok {
			return t.MediaType, true
		}
	}
	return "", false
}
