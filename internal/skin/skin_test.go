package skin

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quasar/mcauth/internal/core"
)

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// opaqueSkin has a white background and one red pixel.
func opaqueSkin(h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, h))
	for y := 0; y < h; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.White)
		}
	}
	img.Set(10, 10, color.RGBA{R: 255, A: 255})
	return img
}

func TestValidate_SynthesizesAlpha(t *testing.T) {
	tex, err := Validate(encode(t, opaqueSkin(64)))
	require.NoError(t, err)

	assert.Equal(t, 64, tex.Height())
	assert.Equal(t, uint8(0), tex.Image.NRGBAAt(0, 0).A)
	assert.Equal(t, uint8(0), tex.Image.NRGBAAt(63, 63).A)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, tex.Image.NRGBAAt(10, 10))
	assert.Len(t, tex.ID, 64)
}

func TestValidate_KeepsExistingAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 32))
	img.SetNRGBA(0, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	tex, err := Validate(encode(t, img))
	require.NoError(t, err)

	assert.Equal(t, 32, tex.Height())
	// The top-left colour is not masked out when the image has alpha.
	assert.Equal(t, uint8(255), tex.Image.NRGBAAt(1, 0).A)
}

func TestValidate_SameTextureSameID(t *testing.T) {
	// An opaque image and the equivalent image with explicit alpha hash
	// the same once transparency is applied.
	opaque, err := Validate(encode(t, opaqueSkin(64)))
	require.NoError(t, err)

	explicit := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	explicit.SetNRGBA(10, 10, color.NRGBA{R: 255, A: 255})
	// Transparent pixels with garbage colour still hash as zero.
	explicit.SetNRGBA(20, 20, color.NRGBA{R: 9, G: 9, B: 9, A: 0})
	withAlpha, err := Validate(encode(t, explicit))
	require.NoError(t, err)

	assert.Equal(t, opaque.ID, withAlpha.ID)
}

func TestValidate_HashIsColumnMajor(t *testing.T) {
	a := image.NewNRGBA(image.Rect(0, 0, 64, 32))
	a.SetNRGBA(1, 0, color.NRGBA{R: 255, A: 255})
	b := image.NewNRGBA(image.Rect(0, 0, 64, 32))
	b.SetNRGBA(0, 1, color.NRGBA{R: 255, A: 255})

	assert.NotEqual(t, Hash(a), Hash(b))
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"too large", make([]byte, MaxFileSize), ErrTooLarge},
		{"not png", []byte("GIF89a"), ErrNotPNG},
		{"wrong width", encode(t, image.NewNRGBA(image.Rect(0, 0, 32, 32))), ErrDimensions},
		{"wrong height", encode(t, image.NewNRGBA(image.Rect(0, 0, 64, 48))), ErrDimensions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.data)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "steve.png")
	require.NoError(t, os.WriteFile(path, encode(t, opaqueSkin(32)), 0644))

	tex, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 32, tex.Height())

	txt := filepath.Join(dir, "steve.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0644))
	_, err = LoadFile(txt)
	assert.ErrorIs(t, err, ErrNotPNG)
}

func TestParseModel(t *testing.T) {
	m, err := ParseModel("Slim")
	require.NoError(t, err)
	assert.Equal(t, core.SkinSlim, m)

	m, err = ParseModel("classic")
	require.NoError(t, err)
	assert.Equal(t, core.SkinClassic, m)

	_, err = ParseModel("giant")
	assert.Error(t, err)
}
