// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs) and
// presents a uniform per-utterance interface. The primary entry point is
// Synthesize, which converts one complete sentence into an encoded audio clip.
// The stream orchestrator calls Synthesize concurrently for consecutive
// sentences and reassembles the clips in order, so implementations must be
// safe for concurrent use.
package tts

import "context"

// Voice describes a synthesis voice configuration for a tutor character.
type Voice struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Metadata holds provider-specific voice attributes (gender, age, accent, etc.).
	Metadata map[string]string
}

// Audio is one synthesised clip covering a single sentence.
type Audio struct {
	// Data is the encoded audio payload.
	Data []byte

	// Format is the audio container/codec, e.g. "mp3" or "pcm".
	Format string

	// SampleRate is the sample rate of the audio in Hz.
	SampleRate int
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use: the orchestrator issues
// multiple Synthesize calls in parallel to hide per-sentence latency.
type Provider interface {
	// Synthesize converts text into a single audio clip using the given voice.
	// The text is typically one sentence; providers should not assume any
	// upper length bound beyond their own API limits.
	//
	// Returns an error if synthesis fails or ctx is cancelled. A nil error
	// implies a non-nil Audio with non-empty Data.
	Synthesize(ctx context.Context, text string, voice Voice) (*Audio, error)

	// ListVoices returns all voice profiles available from this provider. The
	// list reflects the provider's current catalogue and may change between
	// calls if the underlying service adds or removes voices.
	ListVoices(ctx context.Context) ([]Voice, error)
}
