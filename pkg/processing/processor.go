package processing

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/image-assistant/pkg/types"
)

// DefaultJPEGQuality is used when callers pass a non-positive quality
const DefaultJPEGQuality = 90

// AnnotationColor is the outline and caption color for detected objects
var AnnotationColor = color.NRGBA{255, 0, 0, 255}

// Processor handles image processing operations
type Processor struct{}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{}
}

// DecodeImage decodes uploaded bytes, returning the image and its format name
func (p *Processor) DecodeImage(data []byte) (image.Image, string, error) {
	if img, format, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, format, nil
	}

	// Fallback: explicit WebP decode for variants the x/image decoder rejects
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, "webp", nil
	}

	return nil, "", fmt.Errorf("image: unknown or unsupported format")
}

// EncodeJPEG encodes img as JPEG. Transparent pixels are flattened onto white
// since JPEG carries no alpha channel.
func (p *Processor) EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	if !isOpaque(img) {
		b := img.Bounds()
		bg := imaging.New(b.Dx(), b.Dy(), color.White)
		img = imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// PrepareForProvider produces the JPEG payload sent to the vision provider,
// downscaling so the long side is at most maxDim (0 keeps the original size).
func (p *Processor) PrepareForProvider(img image.Image, maxDim int, quality int) ([]byte, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}
	return p.EncodeJPEG(img, quality)
}

// Thumbnail returns a size x size center crop used for history previews
func (p *Processor) Thumbnail(img image.Image, size int) image.Image {
	if size <= 0 {
		return img
	}
	return imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)
}

// AnnotatePolygons draws each polygon outline and its caption on a copy of img.
// Vertices are normalized and scaled to the image width and height.
func (p *Processor) AnnotatePolygons(img image.Image, shapes []types.LabeledPolygon) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	for _, shape := range shapes {
		pts := make([]image.Point, 0, len(shape.Vertices))
		for _, v := range shape.Vertices {
			pts = append(pts, image.Pt(
				int(math.Round(v.X*float64(w))),
				int(math.Round(v.Y*float64(h))),
			))
		}
		if len(pts) == 0 {
			continue
		}
		if len(pts) > 1 {
			drawPolygon(nrgba, pts, AnnotationColor)
		}
		drawText(nrgba, pts[0], shape.Label, AnnotationColor)
	}
	return nrgba
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

func drawPolygon(img *image.NRGBA, pts []image.Point, c color.NRGBA) {
	for i := range pts {
		next := pts[(i+1)%len(pts)]
		drawLine(img, pts[i].X, pts[i].Y, next.X, next.Y, c)
	}
}

// drawLine rasterizes a segment with Bresenham's algorithm, clipping per pixel
func drawLine(img *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		setPixel(img, x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// drawText places the caption with its top-left corner at pt
func drawText(img *image.NRGBA, pt image.Point, text string, c color.NRGBA) {
	if text == "" {
		return
	}
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(pt.X, pt.Y+face.Ascent),
	}
	d.DrawString(text)
}

func setPixel(img *image.NRGBA, x, y int, c color.NRGBA) {
	b := img.Bounds()
	if x < b.Min.X || y < b.Min.Y || x >= b.Max.X || y >= b.Max.Y {
		return
	}
	i := img.PixOffset(x, y)
	img.Pix[i+0] = c.R
	img.Pix[i+1] = c.G
	img.Pix[i+2] = c.B
	img.Pix[i+3] = c.A
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
