// Package stream implements the real-time multiplexed streaming pipeline:
// incremental sentence segmentation of an LLM token stream, order-preserving
// concurrent speech synthesis, and re-serialization of text, audio, boundary,
// suggestion and status events onto a single event-stream connection.
package stream

import (
	"strconv"
	"strings"
)

// defaultScanThreshold is the buffer length above which AddText always scans,
// bounding detection latency without re-scanning trivially short inputs on
// every call.
const defaultScanThreshold = 50

// BoundaryFunc receives one completed sentence. id is sequential ("s1",
// "s2", …); start and end are absolute character offsets into the cumulative
// response text, half-open; text is the sentence with surrounding whitespace
// trimmed.
type BoundaryFunc func(id string, start, end int, text string)

// Segmenter consumes arbitrary-length text chunks and emits completed
// sentence spans as soon as sentence-terminal punctuation followed by
// whitespace is observed. Boundaries are emitted in strictly increasing
// offset order with monotonically increasing ids; an emitted span is never
// revised or merged.
//
// Segmenter is not safe for concurrent use; the orchestrator feeds it from a
// single goroutine.
type Segmenter struct {
	onBoundary BoundaryFunc

	// buf holds text not yet attributed to an emitted sentence.
	buf string

	// total is the running count of characters ever added, so absolute
	// offsets can be recovered as total - len(buf) + <index into buf>.
	total int

	count     int
	threshold int
}

// NewSegmenter creates a Segmenter that calls onBoundary for each completed
// sentence. onBoundary must be non-nil.
func NewSegmenter(onBoundary BoundaryFunc) *Segmenter {
	return &Segmenter{
		onBoundary: onBoundary,
		threshold:  defaultScanThreshold,
	}
}

// AddText appends chunk to the accumulation buffer and scans for sentence
// boundaries when the buffer has grown past the scan threshold or the chunk
// itself contains sentence-terminal punctuation.
func (s *Segmenter) AddText(chunk string) {
	if chunk == "" {
		return
	}
	s.buf += chunk
	s.total += len(chunk)

	if len(s.buf) >= s.threshold || strings.ContainsAny(chunk, ".!?") {
		s.scan()
	}
}

// Flush emits any remaining non-blank buffered text as a final sentence
// covering up to the current running offset. Used when the source stream
// ends without trailing punctuation, or with punctuation not followed by
// whitespace.
func (s *Segmenter) Flush() {
	if strings.TrimSpace(s.buf) == "" {
		s.buf = ""
		return
	}
	start := s.total - len(s.buf)
	text := s.buf
	s.buf = ""
	s.emit(start, s.total, text)
}

// scan walks the buffer for runs of '.', '!' or '?' followed by a whitespace
// character. Each match emits a boundary covering the span from the previous
// cut point through the end of the punctuation run, then advances the cut
// point past the trailing whitespace. Already-emitted text is dropped from
// the buffer so it is never reprocessed.
func (s *Segmenter) scan() {
	base := s.total - len(s.buf)
	cut := 0

	for i := 0; i < len(s.buf); i++ {
		if !isTerminal(s.buf[i]) {
			continue
		}
		// Extend over the whole punctuation run ("?!", "...").
		end := i + 1
		for end < len(s.buf) && isTerminal(s.buf[end]) {
			end++
		}
		if end >= len(s.buf) || !isSpace(s.buf[end]) {
			// End of buffer or no trailing whitespace: not a boundary yet.
			// An unterminated run is resolved at Flush.
			i = end - 1
			continue
		}

		s.emit(base+cut, base+end, s.buf[cut:end])

		// Advance past the whitespace following the punctuation run.
		next := end
		for next < len(s.buf) && isSpace(s.buf[next]) {
			next++
		}
		cut = next
		i = next - 1
	}

	if cut > 0 {
		s.buf = s.buf[cut:]
	}
}

// emit trims the sentence text and fires the boundary callback. Blank
// sentences (punctuation-only whitespace spans) are skipped without
// consuming an id.
func (s *Segmenter) emit(start, end int, text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	s.count++
	s.onBoundary("s"+strconv.Itoa(s.count), start, end, trimmed)
}

func isTerminal(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
