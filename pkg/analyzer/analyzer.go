package analyzer

import (
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/menta2k/image-assistant/internal/utils"
	"github.com/menta2k/image-assistant/pkg/processing"
)

// ErrUnsupportedFormat is returned for uploads outside the accepted formats
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ErrTooLarge is returned when an upload exceeds Config.MaxUploadBytes
var ErrTooLarge = errors.New("image too large")

// ImageAnalyzer validates and decodes user uploads
type ImageAnalyzer struct {
	config    Config
	processor *processing.Processor
}

// Config holds configuration for upload validation
type Config struct {
	SupportedFormats []string
	MinImageSize     int
	MaxUploadBytes   int64
}

// DefaultSupportedFormats lists the upload extensions the UI accepts
var DefaultSupportedFormats = []string{"jpg", "jpeg", "png", "webp", "bmp"}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return NewWithConfig(Config{
		SupportedFormats: DefaultSupportedFormats,
		MinImageSize:     1,
		MaxUploadBytes:   10 << 20,
	})
}

// NewWithConfig creates a new ImageAnalyzer with custom configuration
func NewWithConfig(config Config) *ImageAnalyzer {
	return &ImageAnalyzer{config: config, processor: processing.NewProcessor()}
}

// CheckFilename verifies the upload's extension is accepted
func (a *ImageAnalyzer) CheckFilename(filename string) error {
	ext := utils.GetFileExtension(filename)
	if !utils.IsImageFile(filename) || !a.isFormatSupported(ext) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return nil
}

// LoadImageFromReader reads at most MaxUploadBytes and decodes the image
func (a *ImageAnalyzer) LoadImageFromReader(reader io.Reader) (image.Image, error) {
	limit := a.config.MaxUploadBytes
	if limit > 0 {
		reader = io.LimitReader(reader, limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: max %s", ErrTooLarge, utils.FormatFileSize(limit))
	}

	img, format, err := a.processor.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if !a.isFormatSupported(format) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if err := a.ValidateImage(img); err != nil {
		return nil, err
	}
	return img, nil
}

// GetImageInfo returns basic information about an image
func (a *ImageAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	info := ImageInfo{
		Width:  width,
		Height: height,
		Area:   width * height,
	}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int
	Height      int
	AspectRatio float64
	Area        int
}

func (a *ImageAnalyzer) isFormatSupported(format string) bool {
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

// ValidateImage checks if an image meets minimum requirements
func (a *ImageAnalyzer) ValidateImage(img image.Image) error {
	bounds := img.Bounds()
	if bounds.Dx() < a.config.MinImageSize || bounds.Dy() < a.config.MinImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)",
			bounds.Dx(), bounds.Dy(), a.config.MinImageSize)
	}
	return nil
}
