package detection

import (
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/menta2k/image-assistant/pkg/types"
)

type fakeAnnotator struct {
	resp     *visionpb.AnnotateImageResponse
	err      error
	calls    int
	features []visionpb.Feature_Type
	payload  []byte
}

func (f *fakeAnnotator) Annotate(_ context.Context, content []byte, feature visionpb.Feature_Type) (*visionpb.AnnotateImageResponse, error) {
	f.calls++
	f.features = append(f.features, feature)
	f.payload = content
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

// createTestImage creates a plain white test image
func createTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	return img
}

func lines(result string) []string {
	return strings.Split(strings.TrimSuffix(result, "<br>"), "<br>")
}

func TestAnalyzeLabels(t *testing.T) {
	fake := &fakeAnnotator{resp: &visionpb.AnnotateImageResponse{
		LabelAnnotations: []*visionpb.EntityAnnotation{
			{Description: "cat", Score: 0.97},
			{Description: "animal", Score: 0.81},
		},
	}}
	d := NewDetector(fake, nil)
	img := createTestImage(32, 32)

	result, out := d.Analyze(context.Background(), img, types.OpLabels)

	assert.Equal(t, []string{"標籤辨識結果：", "cat: 97.00%", "animal: 81.00%"}, lines(result))
	assert.Same(t, img, out)
	assert.Equal(t, []visionpb.Feature_Type{visionpb.Feature_LABEL_DETECTION}, fake.features)
	assert.NotEmpty(t, fake.payload)
}

func TestAnalyzeWeb(t *testing.T) {
	t.Run("with matches", func(t *testing.T) {
		fake := &fakeAnnotator{resp: &visionpb.AnnotateImageResponse{
			WebDetection: &visionpb.WebDetection{
				PagesWithMatchingImages: []*visionpb.WebDetection_WebPage{
					{Url: "https://a.example/cat"},
					{Url: "https://b.example/cat"},
				},
			},
		}}
		result, _ := NewDetector(fake, nil).Analyze(context.Background(), createTestImage(8, 8), types.OpWeb)
		assert.Equal(t, []string{"網頁辨識結果：", "匹配的網頁：", "https://a.example/cat", "https://b.example/cat"}, lines(result))
	})

	t.Run("no matches", func(t *testing.T) {
		fake := &fakeAnnotator{resp: &visionpb.AnnotateImageResponse{}}
		result, _ := NewDetector(fake, nil).Analyze(context.Background(), createTestImage(8, 8), types.OpWeb)
		assert.Equal(t, "網頁辨識結果：<br>", result)
	})
}

func TestAnalyzeObjectsDrawsPolygons(t *testing.T) {
	fake := &fakeAnnotator{resp: &visionpb.AnnotateImageResponse{
		LocalizedObjectAnnotations: []*visionpb.LocalizedObjectAnnotation{
			{
				Name:  "Cat",
				Score: 0.9,
				BoundingPoly: &visionpb.BoundingPoly{
					NormalizedVertices: []*visionpb.NormalizedVertex{
						{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.1}, {X: 0.9, Y: 0.9}, {X: 0.1, Y: 0.9},
					},
				},
			},
		},
	}}
	img := createTestImage(100, 100)

	result, out := NewDetector(fake, nil).Analyze(context.Background(), img, types.OpObjects)

	assert.Equal(t, []string{"物體辨識結果：", "Cat: 90.00%"}, lines(result))
	require.NotSame(t, img, out)

	r, g, b, _ := out.At(50, 90).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Zero(t, g)
	assert.Zero(t, b)

	// the uploaded image is left untouched
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.At(50, 90))
}

func TestAnalyzeTextKeepsFullTextAndFragments(t *testing.T) {
	fake := &fakeAnnotator{resp: &visionpb.AnnotateImageResponse{
		TextAnnotations: []*visionpb.EntityAnnotation{
			{Description: "HELLO WORLD"},
			{Description: "HELLO"},
			{Description: "WORLD"},
		},
	}}
	result, _ := NewDetector(fake, nil).Analyze(context.Background(), createTestImage(8, 8), types.OpText)
	assert.Equal(t, []string{"OCR文字辨識結果：", "HELLO WORLD", "HELLO", "WORLD"}, lines(result))
}

func TestAnalyzeLogo(t *testing.T) {
	fake := &fakeAnnotator{resp: &visionpb.AnnotateImageResponse{
		LogoAnnotations: []*visionpb.EntityAnnotation{{Description: "Gopher", Score: 0.5}},
	}}
	result, _ := NewDetector(fake, nil).Analyze(context.Background(), createTestImage(8, 8), types.OpLogo)
	assert.Equal(t, []string{"Logo辨識結果：", "Gopher: 50.00%"}, lines(result))
}

func TestAnalyzeExplicit(t *testing.T) {
	fake := &fakeAnnotator{resp: &visionpb.AnnotateImageResponse{
		SafeSearchAnnotation: &visionpb.SafeSearchAnnotation{
			Adult:    visionpb.Likelihood_VERY_UNLIKELY,
			Violence: visionpb.Likelihood_UNLIKELY,
			Medical:  visionpb.Likelihood_POSSIBLE,
			Racy:     visionpb.Likelihood_LIKELY,
		},
	}}
	result, _ := NewDetector(fake, nil).Analyze(context.Background(), createTestImage(8, 8), types.OpExplicit)
	assert.Equal(t, []string{
		"不當內容辨識結果：",
		"成人內容：VERY_UNLIKELY",
		"暴力內容：UNLIKELY",
		"醫療內容：POSSIBLE",
		"情色內容：LIKELY",
	}, lines(result))
}

func TestAnalyzeProviderFailure(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	fake := &fakeAnnotator{err: errors.New("dial tcp: network is unreachable")}
	img := createTestImage(16, 16)

	result, out := NewDetector(fake, zap.New(core)).Analyze(context.Background(), img, types.OpObjects)

	assert.True(t, strings.HasPrefix(result, "物體辨識失敗："), result)
	assert.Contains(t, result, "network is unreachable")
	assert.Same(t, img, out)
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, 1, logs.FilterMessage("detection failed").Len())
}

func TestAnalyzeLogsEachAnnotation(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	fake := &fakeAnnotator{resp: &visionpb.AnnotateImageResponse{
		LabelAnnotations: []*visionpb.EntityAnnotation{
			{Description: "cat", Score: 0.97},
			{Description: "animal", Score: 0.81},
		},
	}}

	NewDetector(fake, zap.New(core)).Analyze(context.Background(), createTestImage(8, 8), types.OpLabels)

	assert.Equal(t, 1, logs.FilterMessage("detection started").Len())
	assert.Equal(t, 2, logs.FilterMessage("label found").Len())
}

func TestAnalyzeUnsupportedOperation(t *testing.T) {
	fake := &fakeAnnotator{}
	img := createTestImage(8, 8)

	result, out := NewDetector(fake, nil).Analyze(context.Background(), img, types.Operation("faces"))

	assert.Contains(t, result, "unsupported operation")
	assert.Same(t, img, out)
	assert.Zero(t, fake.calls)
}
