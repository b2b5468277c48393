package client

// Engine decodes and plays audio buffers. The dispatcher guarantees at most
// one buffer is attached to the engine at any time; implementations only need
// to handle a single active playback.
type Engine interface {
	// Play starts playing one audio buffer. It returns as soon as playback
	// has started; completion is observed through the returned [Playback].
	Play(data []byte, format string, sampleRate int) (Playback, error)

	// Close releases the engine. Any active playback is stopped.
	Close() error
}

// Playback is a handle to one in-flight audio buffer.
type Playback interface {
	// Done is closed when the buffer finishes playing, whether it ran to
	// completion, failed, or was stopped.
	Done() <-chan struct{}

	// Stop aborts playback early. Done still closes. Stop is idempotent.
	Stop()
}
