// Package image defines the Provider interface for image-generation backends.
//
// Image generation runs as an auxiliary activity after the main response
// stream completes, so latency requirements are looser than for text or
// speech. Implementations must be safe for concurrent use.
package image

import "context"

// Provider is the abstraction over any image-generation backend.
type Provider interface {
	// Generate renders a single image from the given prompt and returns the
	// encoded image bytes (typically PNG). Returns an error if generation
	// fails or ctx is cancelled; a nil error implies non-empty bytes.
	Generate(ctx context.Context, prompt string) ([]byte, error)
}
