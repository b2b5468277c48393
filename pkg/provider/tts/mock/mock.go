// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to feed controlled audio clips to consumers and to verify that
// the correct Voice and text are passed to the TTS backend.
//
// Example:
//
//	p := &mock.Provider{
//	    SynthesizeAudio:  &tts.Audio{Data: []byte("fake"), Format: "mp3", SampleRate: 44100},
//	    ListVoicesResult: []tts.Voice{{ID: "v1", Name: "Alice"}},
//	}
//	audio, _ := p.Synthesize(ctx, "Hello.", voice)
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/tutorvox/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the text passed to Synthesize.
	Text string
	// Voice is the Voice passed to Synthesize.
	Voice tts.Voice
}

// ListVoicesCall records a single invocation of ListVoices.
type ListVoicesCall struct {
	// Ctx is the context passed to ListVoices.
	Ctx context.Context
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// SynthesizeAudio is returned by Synthesize for every call. When nil (and
	// SynthesizeFunc and SynthesizeErr are nil), Synthesize returns a small
	// placeholder clip derived from the input text.
	SynthesizeAudio *tts.Audio

	// SynthesizeFunc, if non-nil, overrides SynthesizeAudio/SynthesizeErr and
	// computes the result per call. Useful for per-sentence latency or
	// failure injection in ordering tests.
	SynthesizeFunc func(ctx context.Context, text string, voice tts.Voice) (*tts.Audio, error)

	// SynthesizeDelay, when non-zero, is slept before each Synthesize returns.
	SynthesizeDelay time.Duration

	// SynthesizeErr, if non-nil, is returned as the error from Synthesize.
	SynthesizeErr error

	// ListVoicesResult is returned by ListVoices.
	ListVoicesResult []tts.Voice

	// ListVoicesErr, if non-nil, is returned as the error from ListVoices.
	ListVoicesErr error

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall

	// ListVoicesCalls records every call to ListVoices in order.
	ListVoicesCalls []ListVoicesCall
}

// Synthesize records the call and returns the configured audio or error.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (*tts.Audio, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text, Voice: voice})
	fn := p.SynthesizeFunc
	audio := p.SynthesizeAudio
	delay := p.SynthesizeDelay
	err := p.SynthesizeErr
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fn != nil {
		return fn(ctx, text, voice)
	}
	if err != nil {
		return nil, err
	}
	if audio != nil {
		return audio, nil
	}
	return &tts.Audio{Data: []byte("audio:" + text), Format: "mp3", SampleRate: 44100}, nil
}

// ListVoices records the call and returns ListVoicesResult, ListVoicesErr.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ListVoicesCalls = append(p.ListVoicesCalls, ListVoicesCall{Ctx: ctx})
	return p.ListVoicesResult, p.ListVoicesErr
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
	p.ListVoicesCalls = nil
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
