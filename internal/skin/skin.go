// Package skin checks skin textures before they are uploaded.
package skin

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/quasar/mcauth/internal/core"
)

// MaxFileSize is the size of a raw 64x64 RGBA bitmap. Anything at or above
// it is not a skin.
const MaxFileSize = 64 * 64 * 4

var (
	ErrTooLarge   = errors.New("skin file is too large")
	ErrNotPNG     = errors.New("skin is not a PNG image")
	ErrDimensions = errors.New("skin must be 64x64 or 64x32 pixels")
)

// Texture is a validated skin.
type Texture struct {
	// Data is the file as read, which is what gets uploaded.
	Data []byte
	// Image is the decoded texture, with transparency applied.
	Image *image.NRGBA
	// ID is the hex SHA-256 of the pixels, stable across encodings.
	ID string
}

// Height returns 32 for legacy skins and 64 otherwise.
func (t *Texture) Height() int {
	return t.Image.Bounds().Dy()
}

// LoadFile reads and validates a skin from disk.
func LoadFile(path string) (*Texture, error) {
	if strings.ToLower(filepath.Ext(path)) != ".png" {
		return nil, ErrNotPNG
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading skin: %w", err)
	}
	if info.Size() >= MaxFileSize {
		return nil, ErrTooLarge
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading skin: %w", err)
	}
	return Validate(data)
}

// Validate decodes data as a skin texture. An image without an alpha
// channel gets one: every pixel matching the top-left pixel becomes
// transparent.
func Validate(data []byte) (*Texture, error) {
	if len(data) >= MaxFileSize {
		return nil, ErrTooLarge
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPNG, err)
	}

	b := img.Bounds()
	if b.Dx() != 64 || (b.Dy() != 32 && b.Dy() != 64) {
		return nil, fmt.Errorf("%w: got %dx%d", ErrDimensions, b.Dx(), b.Dy())
	}

	nrgba := toNRGBA(img)
	if !hasAlphaChannel(img) {
		maskColor(nrgba, nrgba.NRGBAAt(0, 0))
	}

	return &Texture{Data: data, Image: nrgba, ID: Hash(nrgba)}, nil
}

// Hash returns the texture id: SHA-256 over RGBA bytes column by column,
// with fully transparent pixels hashed as zeros.
func Hash(img *image.NRGBA) string {
	h := sha256.New()
	var zero [4]byte
	b := img.Bounds()
	for x := b.Min.X; x < b.Max.X; x++ {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			c := img.NRGBAAt(x, y)
			if c.A == 0 {
				h.Write(zero[:])
				continue
			}
			h.Write([]byte{c.R, c.G, c.B, c.A})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.SetNRGBA(x-b.Min.X, y-b.Min.Y, c)
		}
	}
	return out
}

// hasAlphaChannel reports whether the PNG was stored with transparency,
// whether or not any pixel uses it.
func hasAlphaChannel(img image.Image) bool {
	switch img := img.(type) {
	case *image.NRGBA, *image.NRGBA64:
		return true
	case *image.Paletted:
		for _, c := range img.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}

func maskColor(img *image.NRGBA, key color.NRGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.NRGBAAt(x, y)
			if c.R == key.R && c.G == key.G && c.B == key.B {
				c.A = 0
			} else {
				c.A = 0xff
			}
			img.SetNRGBA(x, y, c)
		}
	}
}

// ParseModel reads a model name as typed by a user.
func ParseModel(s string) (core.SkinModel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "classic", "wide", "steve", "":
		return core.SkinClassic, nil
	case "slim", "alex":
		return core.SkinSlim, nil
	}
	return "", fmt.Errorf("unknown skin model %q (want classic or slim)", s)
}
