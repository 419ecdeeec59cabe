package files

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestGenerateName(t *testing.T) {
	name, err := GenerateName(28)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[a-z0-9]{28}$`), name)

	other, err := GenerateName(28)
	require.NoError(t, err)
	assert.NotEqual(t, name, other)

	_, err = GenerateName(0)
	assert.Error(t, err)
}

func TestPathname(t *testing.T) {
	assert.Equal(t, "abc.png", Pathname("abc", "Plan.PNG"))
	assert.Equal(t, "abc.jpg", Pathname("abc", "site.jpeg"))
	assert.Equal(t, "abc.jpg", Pathname("abc", "site.JPG"))
}

func TestChecksum(t *testing.T) {
	a, err := Checksum(strings.NewReader("blueprint"))
	require.NoError(t, err)
	b, err := Checksum(strings.NewReader("blueprint"))
	require.NoError(t, err)
	c, err := Checksum(strings.NewReader("blueprint2"))
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestDimensions(t *testing.T) {
	w, h, err := Dimensions(bytes.NewReader(pngBytes(t, 64, 32)))
	require.NoError(t, err)
	assert.Equal(t, 64, w)
	assert.Equal(t, 32, h)

	_, _, err = Dimensions(strings.NewReader("not an image"))
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	img, err := Preview(bytes.NewReader(pngBytes(t, 400, 100)), 200)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())

	small, err := Preview(bytes.NewReader(pngBytes(t, 10, 10)), 200)
	require.NoError(t, err)
	assert.Equal(t, 10, small.Bounds().Dx())
}
