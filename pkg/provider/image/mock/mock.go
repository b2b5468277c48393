// Package mock provides a test double for the image.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/tutorvox/pkg/provider/image"
)

// GenerateCall records a single invocation of Generate.
type GenerateCall struct {
	// Ctx is the context passed to Generate.
	Ctx context.Context
	// Prompt is the prompt passed to Generate.
	Prompt string
}

// Provider is a mock implementation of image.Provider.
type Provider struct {
	mu sync.Mutex

	// GenerateData is returned by Generate. When nil (and GenerateErr is nil),
	// Generate returns a small placeholder payload.
	GenerateData []byte

	// GenerateErr, if non-nil, is returned as the error from Generate.
	GenerateErr error

	// GenerateCalls records every call to Generate in order.
	GenerateCalls []GenerateCall
}

// Generate records the call and returns GenerateData, GenerateErr.
func (p *Provider) Generate(ctx context.Context, prompt string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Ctx: ctx, Prompt: prompt})
	if p.GenerateErr != nil {
		return nil, p.GenerateErr
	}
	if p.GenerateData != nil {
		return p.GenerateData, nil
	}
	return []byte("png:" + prompt), nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = nil
}

// Ensure Provider implements image.Provider at compile time.
var _ image.Provider = (*Provider)(nil)
