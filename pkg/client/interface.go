package client

import (
	"context"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
)

// Annotator runs a single vision feature against a JPEG payload
type Annotator interface {
	Annotate(ctx context.Context, content []byte, feature visionpb.Feature_Type) (*visionpb.AnnotateImageResponse, error)
}

// CompletionRequest is one chat-style completion call
type CompletionRequest struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int
}

// Completer generates text from a chat-style request
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
