// Package frame defines the wire protocol shared by the tutorvox server and
// client: a closed set of typed events ("frames") multiplexed over a single
// text/event-stream connection.
//
// Each frame is serialized as one JSON object inside an SSE record:
//
//	data: {"type":"text","content":"Hello","timestamp":1712345678901}\n\n
//
// The stream is terminated by the literal sentinel record "data: [DONE]",
// which is not a JSON frame and must never be passed to [Decode].
//
// Frames are immutable, single-use values. The server guarantees that every
// audio frame carrying a sentence id is preceded, earlier in the stream, by a
// sentence_boundary frame with the same id.
package frame

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies the variant of a [Frame].
type Kind string

const (
	KindText               Kind = "text"
	KindAudio              Kind = "audio"
	KindStatus             Kind = "status"
	KindSentenceBoundary   Kind = "sentence_boundary"
	KindSuggestedResponses Kind = "suggested_responses"
	KindImage              Kind = "image"
)

// StatusPhase enumerates the lifecycle phases announced by status frames.
// Transitions are one-directional: started → processing → completed or error.
// generating_image is an auxiliary phase emitted after completion while an
// image is being produced.
type StatusPhase string

const (
	StatusStarted         StatusPhase = "started"
	StatusProcessing      StatusPhase = "processing"
	StatusGeneratingImage StatusPhase = "generating_image"
	StatusCompleted       StatusPhase = "completed"
	StatusError           StatusPhase = "error"
)

// DoneSentinel is the non-JSON payload marking end of transmission.
const DoneSentinel = "[DONE]"

// Frame is the closed union of all wire event variants. The only
// implementations are the *Frame types in this package; the unexported
// method keeps the union closed.
type Frame interface {
	// Kind returns the variant tag of this frame.
	Kind() Kind

	frame()
}

// TextFrame carries one incremental text delta of the assistant response.
type TextFrame struct {
	Content   string
	Timestamp int64
}

// AudioFrame carries synthesized speech for one sentence.
type AudioFrame struct {
	// Data is the raw audio payload. It is base64-encoded on the wire.
	Data []byte

	// Format is the audio container/codec, e.g. "mp3".
	Format string

	// SampleRate is the audio sample rate in Hz.
	SampleRate int

	// SentenceID correlates this audio with an earlier sentence_boundary
	// frame. May be empty for uncorrelated audio.
	SentenceID string

	Timestamp int64
}

// StatusFrame announces a lifecycle phase transition.
type StatusFrame struct {
	Phase     StatusPhase
	Message   string
	Timestamp int64
}

// SentenceBoundaryFrame registers the half-open character span [Start, End)
// of one complete sentence within the cumulative response text.
type SentenceBoundaryFrame struct {
	SentenceID string
	Start      int
	End        int
	Timestamp  int64
}

// SuggestedResponsesFrame carries follow-up question suggestions, in order.
type SuggestedResponsesFrame struct {
	Suggestions []string
	Timestamp   int64
}

// ImageFrame carries a generated image for a message.
type ImageFrame struct {
	// ImageData is the raw image payload. It is base64-encoded on the wire.
	ImageData []byte

	// Description is the prompt the image was generated from.
	Description string

	// MessageID identifies the assistant message the image belongs to.
	MessageID string

	Timestamp int64
}

func (f *TextFrame) Kind() Kind               { return KindText }
func (f *AudioFrame) Kind() Kind              { return KindAudio }
func (f *StatusFrame) Kind() Kind             { return KindStatus }
func (f *SentenceBoundaryFrame) Kind() Kind   { return KindSentenceBoundary }
func (f *SuggestedResponsesFrame) Kind() Kind { return KindSuggestedResponses }
func (f *ImageFrame) Kind() Kind              { return KindImage }

func (*TextFrame) frame()               {}
func (*AudioFrame) frame()              {}
func (*StatusFrame) frame()             {}
func (*SentenceBoundaryFrame) frame()   {}
func (*SuggestedResponsesFrame) frame() {}
func (*ImageFrame) frame()              {}

// SentenceSpan is the client-side record of one sentence's character span
// within a message. Spans never overlap and are registered in arrival order.
type SentenceSpan struct {
	ID    string
	Start int
	End   int
}

// ─── Builders ────────────────────────────────────────────────────────────────

// now returns the current wall-clock time in milliseconds since the epoch.
// Overridable in tests for deterministic timestamps.
var now = func() int64 { return time.Now().UnixMilli() }

// NewText builds a text frame stamped with the current time.
func NewText(content string) *TextFrame {
	return &TextFrame{Content: content, Timestamp: now()}
}

// NewAudio builds an audio frame stamped with the current time.
func NewAudio(data []byte, format string, sampleRate int, sentenceID string) *AudioFrame {
	return &AudioFrame{
		Data:       data,
		Format:     format,
		SampleRate: sampleRate,
		SentenceID: sentenceID,
		Timestamp:  now(),
	}
}

// NewStatus builds a status frame stamped with the current time.
func NewStatus(phase StatusPhase, message string) *StatusFrame {
	return &StatusFrame{Phase: phase, Message: message, Timestamp: now()}
}

// NewSentenceBoundary builds a sentence_boundary frame stamped with the
// current time.
func NewSentenceBoundary(sentenceID string, start, end int) *SentenceBoundaryFrame {
	return &SentenceBoundaryFrame{
		SentenceID: sentenceID,
		Start:      start,
		End:        end,
		Timestamp:  now(),
	}
}

// NewSuggestedResponses builds a suggested_responses frame stamped with the
// current time.
func NewSuggestedResponses(suggestions []string) *SuggestedResponsesFrame {
	return &SuggestedResponsesFrame{Suggestions: suggestions, Timestamp: now()}
}

// NewImage builds an image frame stamped with the current time.
func NewImage(imageData []byte, description, messageID string) *ImageFrame {
	return &ImageFrame{
		ImageData:   imageData,
		Description: description,
		MessageID:   messageID,
		Timestamp:   now(),
	}
}

// ─── Wire codec ──────────────────────────────────────────────────────────────

// wireFrame is the JSON envelope covering every frame kind. Pointer fields
// distinguish "absent" from zero values so that each kind serializes only its
// own payload.
type wireFrame struct {
	Type      Kind  `json:"type"`
	Timestamp int64 `json:"timestamp"`

	// text
	Content *string `json:"content,omitempty"`

	// audio
	Data       []byte  `json:"data,omitempty"`
	Format     *string `json:"format,omitempty"`
	SampleRate *int    `json:"sampleRate,omitempty"`
	SentenceID *string `json:"sentenceId,omitempty"`

	// status
	Status  *StatusPhase `json:"status,omitempty"`
	Message *string      `json:"message,omitempty"`

	// sentence_boundary
	StartPosition *int `json:"startPosition,omitempty"`
	EndPosition   *int `json:"endPosition,omitempty"`

	// suggested_responses
	Suggestions []string `json:"suggestions,omitempty"`

	// image
	ImageData   []byte  `json:"imageData,omitempty"`
	Description *string `json:"description,omitempty"`
	MessageID   *string `json:"messageId,omitempty"`
}

// Marshal serializes f as its JSON wire object (without the SSE framing).
func Marshal(f Frame) ([]byte, error) {
	w := wireFrame{Type: f.Kind()}

	switch v := f.(type) {
	case *TextFrame:
		w.Timestamp = v.Timestamp
		w.Content = &v.Content
	case *AudioFrame:
		w.Timestamp = v.Timestamp
		w.Data = v.Data
		w.Format = &v.Format
		w.SampleRate = &v.SampleRate
		if v.SentenceID != "" {
			w.SentenceID = &v.SentenceID
		}
	case *StatusFrame:
		w.Timestamp = v.Timestamp
		w.Status = &v.Phase
		if v.Message != "" {
			w.Message = &v.Message
		}
	case *SentenceBoundaryFrame:
		w.Timestamp = v.Timestamp
		w.SentenceID = &v.SentenceID
		w.StartPosition = &v.Start
		w.EndPosition = &v.End
	case *SuggestedResponsesFrame:
		w.Timestamp = v.Timestamp
		w.Suggestions = v.Suggestions
	case *ImageFrame:
		w.Timestamp = v.Timestamp
		w.ImageData = v.ImageData
		w.Description = &v.Description
		w.MessageID = &v.MessageID
	default:
		return nil, fmt.Errorf("frame: unknown frame type %T", f)
	}

	return json.Marshal(w)
}

// EncodeRecord serializes f as a complete SSE record:
// "data: <json>\n\n".
func EncodeRecord(f Frame) ([]byte, error) {
	payload, err := Marshal(f)
	if err != nil {
		return nil, err
	}
	record := make([]byte, 0, len(payload)+8)
	record = append(record, "data: "...)
	record = append(record, payload...)
	record = append(record, "\n\n"...)
	return record, nil
}

// DoneRecord returns the terminal SSE record "data: [DONE]\n\n".
func DoneRecord() []byte {
	return []byte("data: " + DoneSentinel + "\n\n")
}

// Decode parses one JSON frame payload (the bytes after "data: ") into a
// typed Frame. Errors are recoverable: a malformed or truncated payload —
// which legitimately happens when transport chunking splits a record —
// returns an error the caller should log and drop without aborting the
// stream. The [DoneSentinel] payload is not a frame; callers must check for
// it before calling Decode.
func Decode(payload []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("frame: decode: %w", err)
	}

	switch w.Type {
	case KindText:
		f := &TextFrame{Timestamp: w.Timestamp}
		if w.Content != nil {
			f.Content = *w.Content
		}
		return f, nil

	case KindAudio:
		f := &AudioFrame{Data: w.Data, Timestamp: w.Timestamp}
		if w.Format != nil {
			f.Format = *w.Format
		}
		if w.SampleRate != nil {
			f.SampleRate = *w.SampleRate
		}
		if w.SentenceID != nil {
			f.SentenceID = *w.SentenceID
		}
		return f, nil

	case KindStatus:
		f := &StatusFrame{Timestamp: w.Timestamp}
		if w.Status != nil {
			f.Phase = *w.Status
		}
		if w.Message != nil {
			f.Message = *w.Message
		}
		return f, nil

	case KindSentenceBoundary:
		f := &SentenceBoundaryFrame{Timestamp: w.Timestamp}
		if w.SentenceID != nil {
			f.SentenceID = *w.SentenceID
		}
		if w.StartPosition != nil {
			f.Start = *w.StartPosition
		}
		if w.EndPosition != nil {
			f.End = *w.EndPosition
		}
		return f, nil

	case KindSuggestedResponses:
		return &SuggestedResponsesFrame{Suggestions: w.Suggestions, Timestamp: w.Timestamp}, nil

	case KindImage:
		f := &ImageFrame{ImageData: w.ImageData, Timestamp: w.Timestamp}
		if w.Description != nil {
			f.Description = *w.Description
		}
		if w.MessageID != nil {
			f.MessageID = *w.MessageID
		}
		return f, nil

	default:
		return nil, fmt.Errorf("frame: unknown frame type %q", w.Type)
	}
}
