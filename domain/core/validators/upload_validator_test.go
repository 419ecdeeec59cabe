package validators

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"blueprint-editor/domain/config"
	"blueprint-editor/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))))
	return buf.Bytes()
}

func TestUploadValidator_Count(t *testing.T) {
	v := NewUploadValidator(config.DefaultDomainConfig())

	assert.NoError(t, v.ValidateCount(1))

	err := v.ValidateCount(2)
	require.Error(t, err)
	assert.Equal(t, errors.CodeTooManyFiles, errors.GetAppError(err).Code)

	err = v.ValidateCount(0)
	require.Error(t, err)
	assert.Equal(t, errors.CodeNoFile, errors.GetAppError(err).Code)
}

func TestUploadValidator_Size(t *testing.T) {
	v := NewUploadValidator(config.DefaultDomainConfig())

	assert.NoError(t, v.ValidateSize("plan.png", 4<<20))

	err := v.ValidateSize("plan.png", 4<<20+1)
	require.Error(t, err)
	assert.Equal(t, errors.CodeFileTooLarge, errors.GetAppError(err).Code)
	assert.True(t, errors.IsUploadRejection(err))
}

func TestUploadValidator_Type(t *testing.T) {
	v := NewUploadValidator(config.DefaultDomainConfig())
	img := pngBytes(t)

	tests := []struct {
		name     string
		file     string
		head     []byte
		wantType string
		wantErr  bool
	}{
		{"png accepted", "plan.png", img, "image/png", false},
		{"upper case extension", "PLAN.PNG", img, "image/png", false},
		{"jpeg extension with png bytes", "plan.jpeg", img, "", true},
		{"gif name rejected", "plan.gif", img, "", true},
		{"png name with text body", "plan.png", []byte("hello world"), "", true},
		{"no extension", "plan", img, "", true},
		{"jpg extension with png bytes", "plan.jpg", img, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt, err := v.ValidateType(tt.file, tt.head)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.CodeFileInvalidType, errors.GetAppError(err).Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, mt)
		})
	}
}

func TestUploadValidator_JPEGPattern(t *testing.T) {
	v := NewUploadValidator(config.DefaultDomainConfig())
	// JPEG SOI marker followed by an APP0 segment header
	jpegHead := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

	for _, name := range []string{"site.jpg", "site.jpeg"} {
		mt, err := v.ValidateType(name, jpegHead)
		require.NoError(t, err, name)
		assert.Equal(t, "image/jpeg", mt)
	}
}

func TestUploadValidator_PNGPatternRejectsJPEGBytes(t *testing.T) {
	v := NewUploadValidator(config.DefaultDomainConfig())
	jpegHead := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

	_, err := v.ValidateType("site.png", jpegHead)
	require.Error(t, err)
	appErr := errors.GetAppError(err)
	assert.Equal(t, errors.CodeFileInvalidType, appErr.Code)
}

func TestUploadValidator_CustomTypes(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.AcceptedTypes = []config.AcceptedType{{Pattern: "*.PNG", MediaType: "IMAGE/PNG"}}
	v := NewUploadValidator(cfg)

	mt, err := v.ValidateType("plan.png", pngBytes(t))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mt)

	_, err = v.ValidateType("plan.jpg", pngBytes(t))
	require.Error(t, err)
}
