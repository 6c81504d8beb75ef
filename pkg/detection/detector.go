package detection

import (
	"context"
	"fmt"
	"image"
	"strings"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"go.uber.org/zap"

	"github.com/menta2k/image-assistant/pkg/client"
	"github.com/menta2k/image-assistant/pkg/processing"
	"github.com/menta2k/image-assistant/pkg/types"
)

const lineBreak = "<br>"

var features = map[types.Operation]visionpb.Feature_Type{
	types.OpLabels:   visionpb.Feature_LABEL_DETECTION,
	types.OpWeb:      visionpb.Feature_WEB_DETECTION,
	types.OpObjects:  visionpb.Feature_OBJECT_LOCALIZATION,
	types.OpText:     visionpb.Feature_TEXT_DETECTION,
	types.OpLogo:     visionpb.Feature_LOGO_DETECTION,
	types.OpExplicit: visionpb.Feature_SAFE_SEARCH_DETECTION,
}

// Config controls the payload sent to the provider
type Config struct {
	// MaxDimension caps the long side of the payload, 0 sends the original size
	MaxDimension int
	JPEGQuality  int
}

// Detector dispatches an image to exactly one vision operation
type Detector struct {
	client    client.Annotator
	processor *processing.Processor
	config    Config
	logger    *zap.Logger
}

// NewDetector creates a new detector with a vision client
func NewDetector(c client.Annotator, logger *zap.Logger) *Detector {
	return NewDetectorWithConfig(c, Config{JPEGQuality: processing.DefaultJPEGQuality}, logger)
}

// NewDetectorWithConfig creates a detector with custom payload settings
func NewDetectorWithConfig(c client.Annotator, config Config, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		client:    c,
		processor: processing.NewProcessor(),
		config:    config,
		logger:    logger,
	}
}

// Analyze runs op against img and returns the result text with the image to
// display. Provider failures are reported in the text and the original image
// is returned; Analyze never fails.
func (d *Detector) Analyze(ctx context.Context, img image.Image, op types.Operation) (string, image.Image) {
	log := d.logger.With(zap.String("operation", string(op)))

	feature, ok := features[op]
	if !ok {
		log.Error("unsupported operation")
		return fmt.Sprintf("unsupported operation: %s", op), img
	}

	log.Info("detection started", zap.String("label", op.Label()))

	content, err := d.processor.PrepareForProvider(img, d.config.MaxDimension, d.config.JPEGQuality)
	if err != nil {
		return d.failure(log, op, err), img
	}

	resp, err := d.client.Annotate(ctx, content, feature)
	if err != nil {
		return d.failure(log, op, err), img
	}

	var b strings.Builder
	b.WriteString(op.Label() + "結果：" + lineBreak)

	switch op {
	case types.OpLabels:
		writeScored(&b, log, "label", resp.GetLabelAnnotations())
	case types.OpWeb:
		writeWebPages(&b, log, resp.GetWebDetection())
	case types.OpObjects:
		img = d.annotateObjects(&b, log, img, resp.GetLocalizedObjectAnnotations())
	case types.OpText:
		// The first annotation is the full text, later ones are fragments;
		// all of them are kept in provider order.
		for _, text := range resp.GetTextAnnotations() {
			b.WriteString(text.GetDescription() + lineBreak)
			log.Info("text found", zap.String("text", text.GetDescription()))
		}
	case types.OpLogo:
		writeScored(&b, log, "logo", resp.GetLogoAnnotations())
	case types.OpExplicit:
		writeSafeSearch(&b, log, resp.GetSafeSearchAnnotation())
	}

	return b.String(), img
}

func (d *Detector) failure(log *zap.Logger, op types.Operation, err error) string {
	log.Error("detection failed", zap.Error(err))
	return fmt.Sprintf("%s失敗：%v", op.Label(), err)
}

func (d *Detector) annotateObjects(b *strings.Builder, log *zap.Logger, img image.Image, objects []*visionpb.LocalizedObjectAnnotation) image.Image {
	if len(objects) == 0 {
		return img
	}

	shapes := make([]types.LabeledPolygon, 0, len(objects))
	for _, obj := range objects {
		b.WriteString(formatScore(obj.GetName(), obj.GetScore()))
		log.Info("object found",
			zap.String("name", obj.GetName()),
			zap.String("confidence", percent(obj.GetScore())))

		shape := types.LabeledPolygon{Label: obj.GetName()}
		for _, v := range obj.GetBoundingPoly().GetNormalizedVertices() {
			shape.Vertices = append(shape.Vertices, types.Vertex{X: float64(v.GetX()), Y: float64(v.GetY())})
		}
		shapes = append(shapes, shape)
	}
	return d.processor.AnnotatePolygons(img, shapes)
}

func writeScored(b *strings.Builder, log *zap.Logger, kind string, annotations []*visionpb.EntityAnnotation) {
	for _, a := range annotations {
		b.WriteString(formatScore(a.GetDescription(), a.GetScore()))
		log.Info(kind+" found",
			zap.String("description", a.GetDescription()),
			zap.String("confidence", percent(a.GetScore())))
	}
}

func writeWebPages(b *strings.Builder, log *zap.Logger, web *visionpb.WebDetection) {
	pages := web.GetPagesWithMatchingImages()
	if len(pages) == 0 {
		return
	}
	b.WriteString("匹配的網頁：" + lineBreak)
	for _, page := range pages {
		b.WriteString(page.GetUrl() + lineBreak)
		log.Info("matching page found", zap.String("url", page.GetUrl()))
	}
}

func writeSafeSearch(b *strings.Builder, log *zap.Logger, safe *visionpb.SafeSearchAnnotation) {
	adult := safe.GetAdult().String()
	violence := safe.GetViolence().String()
	medical := safe.GetMedical().String()
	racy := safe.GetRacy().String()

	b.WriteString("成人內容：" + adult + lineBreak)
	b.WriteString("暴力內容：" + violence + lineBreak)
	b.WriteString("醫療內容：" + medical + lineBreak)
	b.WriteString("情色內容：" + racy + lineBreak)
	log.Info("safe search",
		zap.String("adult", adult),
		zap.String("violence", violence),
		zap.String("medical", medical),
		zap.String("racy", racy))
}

func formatScore(name string, score float32) string {
	return name + ": " + percent(score) + lineBreak
}

func percent(score float32) string {
	return fmt.Sprintf("%.2f%%", float64(score)*100)
}
