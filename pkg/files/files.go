// Package files holds helpers for uploaded blueprint images: generated
// names, content checksums, header dimensions and preview scaling.
package files

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg" // register the jpeg decoder
	"image/png"
	"io"
	"math/big"
	"path"
	"strings"

	"golang.org/x/image/draw"
	"lukechampine.com/blake3"
)

const nameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateName returns a random lowercase name of n characters
func GenerateName(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("name length must be positive, got %d", n)
	}
	max := big.NewInt(int64(len(nameAlphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate name: %w", err)
		}
		b.WriteByte(nameAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

// Pathname builds the stored name for an upload: a generated base plus the
// original file's lowercased extension
func Pathname(generated, original string) string {
	ext := strings.ToLower(path.Ext(original))
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	return generated + ext
}

// Checksum returns the hex BLAKE3-256 digest of r
func Checksum(r io.Reader) (string, error) {
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Dimensions reads the pixel size from an image header
func Dimensions(r io.Reader) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, fmt.Errorf("read image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// Preview decodes an image and scales it down so neither side exceeds
// maxSide. Images already small enough are returned unscaled.
func Preview(r io.Reader, maxSide int) (image.Image, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return src, nil
	}

	scale := float64(maxSide) / float64(w)
	if h > w {
		scale = float64(maxSide) / float64(h)
	}
	dw, dh := int(float64(w)*scale), int(float64(h)*scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst, nil
}

// EncodePNG writes img as PNG
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
