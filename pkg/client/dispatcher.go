// Package client consumes a tutorvox SSE response stream: it reassembles SSE
// records, decodes frames, demultiplexes them to application callbacks, and
// drives ordered audio playback.
//
// The dispatcher tolerates abandoned responses: every call to [Dispatcher.StartMessage]
// bumps a generation counter, and frames handed in under an older generation
// are silently dropped. A read loop that keeps draining a superseded response
// therefore cannot corrupt the active one.
package client

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/MrWong99/tutorvox/pkg/frame"
)

// FallbackMessage is the text an application should display when the stream
// fails end-to-end before any content arrived.
const FallbackMessage = "I apologize, but I'm having trouble responding right now. Please try again in a moment."

// Callbacks receives demultiplexed frames. Nil entries are skipped. Callbacks
// are invoked from the goroutine that feeds the dispatcher, except
// OnActiveSentence, which also fires from the playback completion goroutine.
type Callbacks struct {
	// OnText receives each incremental text delta.
	OnText func(content string)

	// OnStatus receives lifecycle phase transitions.
	OnStatus func(phase frame.StatusPhase, message string)

	// OnSentenceSpans fires when a sentence boundary arrives, with the full
	// span table of the current message in arrival order.
	OnSentenceSpans func(messageID string, spans []frame.SentenceSpan)

	// OnActiveSentence fires with the sentence id just before its audio
	// starts playing, and with "" when it ends.
	OnActiveSentence func(sentenceID string)

	// OnSuggestions receives follow-up question suggestions.
	OnSuggestions func(suggestions []string)

	// OnImage receives a generated image.
	OnImage func(imageData []byte, description, messageID string)
}

// audioItem is one queued playback buffer.
type audioItem struct {
	data       []byte
	format     string
	sampleRate int
	sentenceID string
}

// Dispatcher demultiplexes decoded frames to callbacks and plays audio
// buffers strictly in arrival order. All methods are safe for concurrent use.
type Dispatcher struct {
	engine Engine
	cb     Callbacks
	log    *slog.Logger

	mu           sync.Mutex
	gen          uint64
	messageID    string
	spans        map[string][]frame.SentenceSpan
	audioEnabled bool

	// playback state, guarded by mu
	queue    []audioItem
	playing  bool
	current  Playback
	playGen  uint64
	activeID string
}

// DispatcherOption configures a [Dispatcher].
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger. Defaults to slog.Default().
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = l }
}

// NewDispatcher creates a dispatcher. engine may be nil, in which case audio
// frames are dropped.
func NewDispatcher(engine Engine, cb Callbacks, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		engine:       engine,
		cb:           cb,
		log:          slog.Default(),
		spans:        make(map[string][]frame.SentenceSpan),
		audioEnabled: true,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// SetAudioEnabled toggles audio playback. Disabling does not stop a buffer
// that is already playing; it only drops subsequent audio frames.
func (d *Dispatcher) SetAudioEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.audioEnabled = enabled
}

// StartMessage begins a new response: in-flight playback is stopped, the
// generation counter is bumped, and subsequent sentence and audio frames are
// associated with the given message id. The returned generation must be
// passed to [Dispatcher.HandleFrameData] by the stream's read loop.
func (d *Dispatcher) StartMessage(id string) uint64 {
	d.StopAudio()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.messageID = id
	d.spans[id] = nil
	return d.gen
}

// Spans returns the sentence span table of a message in arrival order.
func (d *Dispatcher) Spans(messageID string) []frame.SentenceSpan {
	d.mu.Lock()
	defer d.mu.Unlock()
	spans := d.spans[messageID]
	out := make([]frame.SentenceSpan, len(spans))
	copy(out, spans)
	return out
}

// ActiveSentence returns the id of the sentence currently being narrated, or
// "" when no audio is playing.
func (d *Dispatcher) ActiveSentence() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activeID
}

// HandleFrameData processes one SSE data payload (the bytes after "data: ").
// Blank payloads are ignored, malformed payloads are logged and dropped, and
// payloads belonging to a superseded generation are discarded. The return
// value reports whether the payload was the [DONE] sentinel.
func (d *Dispatcher) HandleFrameData(gen uint64, payload string) (done bool) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return false
	}
	if payload == frame.DoneSentinel {
		return true
	}

	f, err := frame.Decode([]byte(payload))
	if err != nil {
		// Split records legitimately produce garbage fragments; drop them.
		d.log.Debug("dropping undecodable frame payload", "err", err, "payload_len", len(payload))
		return false
	}

	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return false
	}
	messageID := d.messageID
	audioEnabled := d.audioEnabled
	d.mu.Unlock()

	switch v := f.(type) {
	case *frame.TextFrame:
		if d.cb.OnText != nil {
			d.cb.OnText(v.Content)
		}

	case *frame.StatusFrame:
		if d.cb.OnStatus != nil {
			d.cb.OnStatus(v.Phase, v.Message)
		}

	case *frame.SentenceBoundaryFrame:
		d.mu.Lock()
		if gen != d.gen {
			d.mu.Unlock()
			return false
		}
		d.spans[messageID] = append(d.spans[messageID], frame.SentenceSpan{
			ID:    v.SentenceID,
			Start: v.Start,
			End:   v.End,
		})
		spans := make([]frame.SentenceSpan, len(d.spans[messageID]))
		copy(spans, d.spans[messageID])
		d.mu.Unlock()
		if d.cb.OnSentenceSpans != nil {
			d.cb.OnSentenceSpans(messageID, spans)
		}

	case *frame.AudioFrame:
		if !audioEnabled || d.engine == nil {
			return false
		}
		d.enqueueAudio(gen, audioItem{
			data:       v.Data,
			format:     v.Format,
			sampleRate: v.SampleRate,
			sentenceID: v.SentenceID,
		})

	case *frame.SuggestedResponsesFrame:
		if d.cb.OnSuggestions != nil {
			d.cb.OnSuggestions(v.Suggestions)
		}

	case *frame.ImageFrame:
		if d.cb.OnImage != nil {
			d.cb.OnImage(v.ImageData, v.Description, v.MessageID)
		}
	}
	return false
}

// StopAudio clears the pending queue, stops the current buffer, and clears
// active-sentence state. No trailing "sentence ended" callback fires for the
// stopped buffer.
func (d *Dispatcher) StopAudio() {
	d.mu.Lock()
	d.playGen++
	d.queue = nil
	cur := d.current
	d.current = nil
	d.playing = false
	d.activeID = ""
	d.mu.Unlock()

	if cur != nil {
		cur.Stop()
	}
}

// Close stops playback and releases the audio engine.
func (d *Dispatcher) Close() error {
	d.StopAudio()
	if d.engine != nil {
		return d.engine.Close()
	}
	return nil
}

// enqueueAudio appends a buffer to the playback queue and starts it if the
// engine is idle.
func (d *Dispatcher) enqueueAudio(gen uint64, item audioItem) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return
	}
	d.queue = append(d.queue, item)
	d.startNextLocked()
}

// startNextLocked starts the next queued buffer if nothing is playing.
// Called with mu held; temporarily releases it around callback and engine
// calls and returns with it held again.
func (d *Dispatcher) startNextLocked() {
	if d.playing || len(d.queue) == 0 {
		return
	}
	item := d.queue[0]
	d.queue = d.queue[1:]
	d.playing = true
	d.activeID = item.sentenceID
	gen := d.playGen
	d.mu.Unlock()

	if d.cb.OnActiveSentence != nil && item.sentenceID != "" {
		d.cb.OnActiveSentence(item.sentenceID)
	}
	pb, err := d.engine.Play(item.data, item.format, item.sampleRate)

	d.mu.Lock()
	if gen != d.playGen {
		// StopAudio raced the start; discard this buffer.
		if err == nil {
			pb.Stop()
		}
		return
	}
	if err != nil {
		// A failed buffer must not stall the queue: treat as completed.
		d.log.Warn("audio playback failed, skipping buffer", "sentence_id", item.sentenceID, "err", err)
		d.finishPlaybackLocked(gen)
		return
	}
	d.current = pb
	go d.awaitPlayback(pb, gen)
}

// awaitPlayback advances the queue once the given playback finishes.
func (d *Dispatcher) awaitPlayback(pb Playback, gen uint64) {
	<-pb.Done()

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.playGen {
		return
	}
	d.finishPlaybackLocked(gen)
}

// finishPlaybackLocked clears active state, fires the sentence-ended
// callback, and starts the next buffer. Called with mu held; temporarily
// releases it and returns with it held again.
func (d *Dispatcher) finishPlaybackLocked(gen uint64) {
	d.playing = false
	d.current = nil
	ended := d.activeID
	d.activeID = ""
	d.mu.Unlock()

	if d.cb.OnActiveSentence != nil && ended != "" {
		d.cb.OnActiveSentence("")
	}

	d.mu.Lock()
	if gen == d.playGen {
		d.startNextLocked()
	}
}
