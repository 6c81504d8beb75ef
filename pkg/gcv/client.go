package gcv

import (
	"context"
	"errors"
	"fmt"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// DefaultTimeout bounds a single annotate call when the caller set no deadline
const DefaultTimeout = 60 * time.Second

// Client wraps the Google Cloud Vision image annotator
type Client struct {
	client  *vision.ImageAnnotatorClient
	timeout time.Duration
}

// Options selects how the client authenticates
type Options struct {
	CredentialsFile string
	APIKey          string
	Timeout         time.Duration
}

// NewClient creates a vision client. A service-account file takes precedence
// over an API key; with neither, application default credentials are used.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	var clientOpts []option.ClientOption
	switch {
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	case opts.APIKey != "":
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	c, err := vision.NewImageAnnotatorClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{client: c, timeout: timeout}, nil
}

// Annotate requests one feature for the given image content
func (c *Client) Annotate(ctx context.Context, content []byte, feature visionpb.Feature_Type) (*visionpb.AnnotateImageResponse, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image:    &visionpb.Image{Content: content},
				Features: []*visionpb.Feature{{Type: feature}},
			},
		},
	}

	resp, err := c.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision request failed: %w", err)
	}

	responses := resp.GetResponses()
	if len(responses) == 0 {
		return nil, errors.New("empty response from vision api")
	}

	r := responses[0]
	if st := r.GetError(); st != nil && st.GetCode() != 0 {
		return nil, fmt.Errorf("vision api error (code %d): %s", st.GetCode(), st.GetMessage())
	}
	return r, nil
}

// Close releases the underlying connection
func (c *Client) Close() error {
	return c.client.Close()
}
