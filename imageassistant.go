// Package imageassistant ties the vision dispatcher, the description
// generator and the account system into the single analyze action a user
// performs from the web UI.
//
// Basic usage:
//
//	annotator, _ := gcv.NewClient(ctx, gcv.Options{CredentialsFile: "key.json"})
//	completer, _ := openai.NewClient(apiKey, "", time.Minute)
//
//	assistant := imageassistant.New(imageassistant.Components{
//		Detector:  detection.NewDetector(annotator, logger),
//		Describer: describe.New(completer, describe.DefaultConfig(), logger),
//		Accounts:  account.NewService(userStore, 0, logger),
//	}, logger)
//
//	sess.Lock()
//	outcome, err := assistant.Analyze(ctx, sess, img, types.OpLabels)
//	sess.Unlock()
//
// A free account may run quota.Limit analyses; subscribed accounts are not
// limited. Provider failures never surface as errors: they are rendered into
// the result or description text.
package imageassistant

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/image-assistant/internal/account"
	"github.com/menta2k/image-assistant/internal/session"
	"github.com/menta2k/image-assistant/pkg/analyzer"
	"github.com/menta2k/image-assistant/pkg/processing"
	"github.com/menta2k/image-assistant/pkg/quota"
	"github.com/menta2k/image-assistant/pkg/types"
)

// Version of the image assistant
const Version = "1.0.0"

// ThumbnailSize is the edge of the square preview kept with each history entry
const ThumbnailSize = 64

// ErrUnknownOperation is returned for an operation outside types.Operations
var ErrUnknownOperation = errors.New("unknown operation")

// Dispatcher runs one vision operation. It reports failures in the returned
// text and never returns an error.
type Dispatcher interface {
	Analyze(ctx context.Context, img image.Image, op types.Operation) (string, image.Image)
}

// Describer captions a vision result
type Describer interface {
	Describe(ctx context.Context, result string, premium bool) string
	ModelName(premium bool) string
}

// Components are the collaborators of an Assistant. Loader, Processor and
// JPEGQuality fall back to defaults when zero.
type Components struct {
	Detector    Dispatcher
	Describer   Describer
	Accounts    *account.Service
	Loader      *analyzer.ImageAnalyzer
	Processor   *processing.Processor
	JPEGQuality int
}

// Assistant runs analyses on behalf of logged-in sessions
type Assistant struct {
	detector    Dispatcher
	describer   Describer
	accounts    *account.Service
	loader      *analyzer.ImageAnalyzer
	processor   *processing.Processor
	jpegQuality int
	logger      *zap.Logger
}

// Outcome is the result of one analysis
type Outcome struct {
	Operation   types.Operation
	Result      string
	Description string
	// Image is the (possibly annotated) image, JPEG encoded
	Image      []byte
	UsageCount int
}

// New creates an assistant
func New(c Components, logger *zap.Logger) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c.Loader == nil {
		c.Loader = analyzer.New()
	}
	if c.Processor == nil {
		c.Processor = processing.NewProcessor()
	}
	if c.JPEGQuality <= 0 {
		c.JPEGQuality = processing.DefaultJPEGQuality
	}
	return &Assistant{
		detector:    c.Detector,
		describer:   c.Describer,
		accounts:    c.Accounts,
		loader:      c.Loader,
		processor:   c.Processor,
		jpegQuality: c.JPEGQuality,
		logger:      logger,
	}
}

// LoadImage decodes an uploaded image, enforcing the configured formats and size
func (a *Assistant) LoadImage(r io.Reader) (image.Image, error) {
	return a.loader.LoadImageFromReader(r)
}

// CheckUpload rejects file names whose extension is not an accepted format
func (a *Assistant) CheckUpload(filename string) error {
	return a.loader.CheckFilename(filename)
}

// CanAnalyze reports whether sess may start another analysis
func (a *Assistant) CanAnalyze(sess *session.Session) bool {
	return sess.LoggedIn && quota.CanProceed(sess.UsageCount, sess.SubscriptionStatus)
}

// ModelName is the display name of the description model for sess
func (a *Assistant) ModelName(sess *session.Session) string {
	return a.describer.ModelName(sess.SubscriptionStatus)
}

// Analyze runs op on img for sess. The caller must hold the session lock.
//
// The analysis is counted against the account before the vision call and
// stays counted whether or not the call succeeds. A quota.ExceededError is
// returned, and nothing is counted, when a free account has used up its
// analyses in this or any other session.
func (a *Assistant) Analyze(ctx context.Context, sess *session.Session, img image.Image, op types.Operation) (Outcome, error) {
	if !sess.LoggedIn {
		return Outcome{}, account.ErrNotLoggedIn
	}
	if !op.Valid() {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	if err := quota.Check(sess.UsageCount, sess.SubscriptionStatus); err != nil {
		return Outcome{}, err
	}

	info := a.loader.GetImageInfo(img)
	log := a.logger.With(
		zap.String("user", sess.CurrentUser),
		zap.String("operation", string(op)),
		zap.Int("width", info.Width),
		zap.Int("height", info.Height))

	usage, err := a.accounts.RecordUsage(ctx, sess)
	if err != nil {
		var exceeded quota.ExceededError
		if errors.As(err, &exceeded) {
			log.Info("quota reached in another session", zap.Int("usage", exceeded.Used))
			return Outcome{}, err
		}
		log.Error("failed to record usage", zap.Error(err))
	}

	result, annotated := a.detector.Analyze(ctx, img, op)

	description := a.describer.Describe(ctx, result, sess.SubscriptionStatus)

	encoded, err := a.processor.EncodeJPEG(annotated, a.jpegQuality)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to encode result image: %w", err)
	}

	thumb, err := a.thumbnail(annotated)
	if err != nil {
		log.Warn("failed to build history thumbnail", zap.Error(err))
	}

	sess.History().Append(types.HistoryEntry{
		Image:       encoded,
		Thumbnail:   thumb,
		Result:      result,
		Description: description,
		Operation:   op,
		CreatedAt:   time.Now(),
	})

	log.Info("analysis complete", zap.Int("usage", usage))
	return Outcome{
		Operation:   op,
		Result:      result,
		Description: description,
		Image:       encoded,
		UsageCount:  usage,
	}, nil
}

func (a *Assistant) thumbnail(img image.Image) ([]byte, error) {
	return a.processor.EncodeJPEG(a.processor.Thumbnail(img, ThumbnailSize), a.jpegQuality)
}

// GetVersion returns the assistant version
func GetVersion() string {
	return Version
}
