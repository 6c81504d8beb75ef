package analyzer

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// Fill with a gradient pattern
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			b := uint8(128)
			img.Set(x, y, color.RGBA{r, g, b, 255})
		}
	}

	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNew(t *testing.T) {
	analyzer := New()
	require.NotNil(t, analyzer)
	assert.Equal(t, DefaultSupportedFormats, analyzer.config.SupportedFormats)
	assert.Equal(t, int64(10<<20), analyzer.config.MaxUploadBytes)
}

func TestGetImageInfo(t *testing.T) {
	analyzer := New()
	img := createTestImage(400, 300)

	info := analyzer.GetImageInfo(img)

	assert.Equal(t, 400, info.Width)
	assert.Equal(t, 300, info.Height)
	assert.Equal(t, float64(400)/float64(300), info.AspectRatio)
	assert.Equal(t, 120000, info.Area)
}

func TestCheckFilename(t *testing.T) {
	analyzer := New()

	for _, name := range []string{"photo.jpg", "photo.JPEG", "shot.png", "pic.webp", "scan.bmp"} {
		assert.NoError(t, analyzer.CheckFilename(name), name)
	}
	for _, name := range []string{"anim.gif", "doc.pdf", "noext"} {
		err := analyzer.CheckFilename(name)
		assert.True(t, errors.Is(err, ErrUnsupportedFormat), name)
	}
}

func TestLoadImageFromReader(t *testing.T) {
	analyzer := New()
	data := encodePNG(t, createTestImage(64, 48))

	img, err := analyzer.LoadImageFromReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
}

func TestLoadImageFromReaderRejectsOversize(t *testing.T) {
	data := encodePNG(t, createTestImage(64, 48))
	analyzer := NewWithConfig(Config{
		SupportedFormats: DefaultSupportedFormats,
		MinImageSize:     1,
		MaxUploadBytes:   int64(len(data) - 1),
	})

	_, err := analyzer.LoadImageFromReader(bytes.NewReader(data))
	assert.True(t, errors.Is(err, ErrTooLarge), "got %v", err)
}

func TestLoadImageFromReaderRejectsUnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, createTestImage(8, 8), nil))

	// image/gif registers its decoder in this binary, so decoding succeeds
	// and the format allow-list rejects it
	_, err := New().LoadImageFromReader(&buf)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat), "got %v", err)
}

func TestValidateImage(t *testing.T) {
	analyzer := NewWithConfig(Config{SupportedFormats: DefaultSupportedFormats, MinImageSize: 100})

	assert.NoError(t, analyzer.ValidateImage(createTestImage(200, 200)))
	assert.Error(t, analyzer.ValidateImage(createTestImage(50, 50)))
}

func TestIsFormatSupported(t *testing.T) {
	analyzer := New()

	for _, format := range []string{"jpg", "jpeg", "png", "webp", "bmp", "JPEG", "PNG"} {
		assert.True(t, analyzer.isFormatSupported(format), format)
	}
	for _, format := range []string{"gif", "tiff"} {
		assert.False(t, analyzer.isFormatSupported(format), format)
	}
}

func BenchmarkGetImageInfo(b *testing.B) {
	analyzer := New()
	img := createTestImage(1920, 1080)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		analyzer.GetImageInfo(img)
	}
}
