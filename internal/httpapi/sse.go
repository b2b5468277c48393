package httpapi

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/MrWong99/tutorvox/pkg/frame"
)

// sseSink writes frames to an HTTP response as server-sent event records.
//
// Once a write fails the sink marks itself closed and swallows all further
// frames: a client that has gone away must not abort the pipeline mid-flight,
// the orchestrator finishes (and persists the thread) regardless.
type sseSink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	log     *slog.Logger
	closed  bool
}

func newSSESink(w http.ResponseWriter, flusher http.Flusher, log *slog.Logger) *sseSink {
	return &sseSink{w: w, flusher: flusher, log: log}
}

// Send implements stream.FrameSink. Each frame is flushed immediately so the
// client sees tokens as they are generated, not when the buffer fills.
func (s *sseSink) Send(f frame.Frame) {
	rec, err := frame.EncodeRecord(f)
	if err != nil {
		s.log.Error("failed to encode frame", "kind", f.Kind(), "err", err)
		return
	}
	s.write(rec)
}

// SendDone writes the terminal [DONE] record.
func (s *sseSink) SendDone() {
	s.write(frame.DoneRecord())
}

func (s *sseSink) write(record []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if _, err := s.w.Write(record); err != nil {
		s.closed = true
		s.log.Debug("client disconnected, dropping remaining frames", "err", err)
		return
	}
	s.flusher.Flush()
}
