package processing

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/menta2k/image-assistant/pkg/types"
)

// createTestImage creates a solid opaque test image
func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDecodeImage(t *testing.T) {
	p := NewProcessor()
	src := createTestImage(40, 30, color.RGBA{10, 200, 30, 255})

	encoders := map[string]func(*bytes.Buffer) error{
		"png":  func(b *bytes.Buffer) error { return png.Encode(b, src) },
		"jpeg": func(b *bytes.Buffer) error { return jpeg.Encode(b, src, nil) },
		"bmp":  func(b *bytes.Buffer) error { return bmp.Encode(b, src) },
	}

	for format, encode := range encoders {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, encode(&buf))

			img, got, err := p.DecodeImage(buf.Bytes())
			require.NoError(t, err)
			assert.Equal(t, format, got)
			assert.Equal(t, 40, img.Bounds().Dx())
			assert.Equal(t, 30, img.Bounds().Dy())
		})
	}
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	_, _, err := NewProcessor().DecodeImage([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestEncodeJPEGFlattensAlpha(t *testing.T) {
	p := NewProcessor()
	transparent := image.NewNRGBA(image.Rect(0, 0, 16, 16))

	data, err := p.EncodeJPEG(transparent, 95)
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	r, g, b, _ := decoded.At(8, 8).RGBA()
	assert.Greater(t, r>>8, uint32(240), "expected white background, got r=%d", r>>8)
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestPrepareForProviderDownscales(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(400, 200, color.RGBA{128, 128, 128, 255})

	data, err := p.PrepareForProvider(img, 100, 80)
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)

	data, err = p.PrepareForProvider(img, 0, 80)
	require.NoError(t, err)
	cfg, err = jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.Width)
}

func TestAnnotatePolygons(t *testing.T) {
	p := NewProcessor()
	white := color.RGBA{255, 255, 255, 255}
	img := createTestImage(100, 100, white)

	out := p.AnnotatePolygons(img, []types.LabeledPolygon{{
		Label: "cat",
		Vertices: []types.Vertex{
			{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.1}, {X: 0.9, Y: 0.9}, {X: 0.1, Y: 0.9},
		},
	}})

	// Edge midpoints lie on the outline
	for _, pt := range []image.Point{{50, 10}, {90, 50}, {50, 90}, {10, 50}} {
		r, g, b, _ := out.At(pt.X, pt.Y).RGBA()
		assert.Equal(t, uint32(0xffff), r, "point %v", pt)
		assert.Zero(t, g, "point %v", pt)
		assert.Zero(t, b, "point %v", pt)
	}

	// Interior away from the caption stays untouched
	assert.Equal(t, color.NRGBAModel.Convert(white), out.At(60, 60))

	// Source is not mutated
	assert.Equal(t, white, img.At(50, 10))
}

func TestAnnotatePolygonsSkipsEmptyShapes(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(20, 20, color.RGBA{0, 0, 0, 255})
	out := p.AnnotatePolygons(img, []types.LabeledPolygon{{Label: "nothing"}})
	assert.Equal(t, img.Bounds(), out.Bounds())
}

func TestThumbnail(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(300, 100, color.RGBA{1, 2, 3, 255})
	thumb := p.Thumbnail(img, 64)
	assert.Equal(t, 64, thumb.Bounds().Dx())
	assert.Equal(t, 64, thumb.Bounds().Dy())
}

func BenchmarkEncodeJPEG(b *testing.B) {
	p := NewProcessor()
	img := createTestImage(1920, 1080, color.RGBA{90, 120, 200, 255})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.EncodeJPEG(img, 90)
	}
}
