package client_test

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/tutorvox/pkg/client"
	"github.com/MrWong99/tutorvox/pkg/frame"
)

// fakePlayback completes when the test (or the fake engine timer) says so.
type fakePlayback struct {
	done     chan struct{}
	stopOnce sync.Once
	stopped  bool
	mu       sync.Mutex
}

func (p *fakePlayback) Done() <-chan struct{} { return p.done }

func (p *fakePlayback) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		close(p.done)
	})
}

func (p *fakePlayback) wasStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func (p *fakePlayback) finish() {
	p.stopOnce.Do(func() { close(p.done) })
}

// fakeEngine records play order and can fail or delay individual buffers.
type fakeEngine struct {
	mu        sync.Mutex
	calls     int
	playOrder []string
	playbacks []*fakePlayback
	active    int
	maxActive int

	// delays maps sentence position (0-based) to auto-completion delay.
	// Buffers without a delay stay active until finish() is called.
	delays map[int]time.Duration

	// failAt holds 0-based play indices that return an error.
	failAt map[int]bool

	closed bool
}

func (e *fakeEngine) Play(data []byte, format string, sampleRate int) (client.Playback, error) {
	e.mu.Lock()
	idx := e.calls
	e.calls++
	if e.failAt[idx] {
		e.mu.Unlock()
		return nil, errors.New("decode failed")
	}
	e.playOrder = append(e.playOrder, string(data))
	e.active++
	if e.active > e.maxActive {
		e.maxActive = e.active
	}
	pb := &fakePlayback{done: make(chan struct{})}
	e.playbacks = append(e.playbacks, pb)
	delay, hasDelay := e.delays[idx]
	e.mu.Unlock()

	go func() {
		if hasDelay {
			time.Sleep(delay)
			pb.finish()
		}
		<-pb.done
		e.mu.Lock()
		e.active--
		e.mu.Unlock()
	}()
	return pb, nil
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *fakeEngine) played() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.playOrder))
	copy(out, e.playOrder)
	return out
}

// waitFor polls until cond returns true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

// encodeAudio builds the SSE payload (after "data: ") for an audio frame.
func encodePayload(t *testing.T, f frame.Frame) string {
	t.Helper()
	data, err := frame.Marshal(f)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	return string(data)
}

func TestHandleFrameData_BlankAndDone(t *testing.T) {
	d := client.NewDispatcher(nil, client.Callbacks{})
	gen := d.StartMessage("m1")

	if done := d.HandleFrameData(gen, ""); done {
		t.Error("blank payload should not be done")
	}
	if done := d.HandleFrameData(gen, "   "); done {
		t.Error("whitespace payload should not be done")
	}
	if done := d.HandleFrameData(gen, "[DONE]"); !done {
		t.Error("[DONE] sentinel should report done")
	}
}

func TestHandleFrameData_MalformedDropped(t *testing.T) {
	var texts []string
	d := client.NewDispatcher(nil, client.Callbacks{
		OnText: func(s string) { texts = append(texts, s) },
	})
	gen := d.StartMessage("m1")

	d.HandleFrameData(gen, `{"type":"text","content":`) // truncated
	d.HandleFrameData(gen, `not json at all`)
	d.HandleFrameData(gen, encodePayload(t, frame.NewText("ok")))

	if len(texts) != 1 || texts[0] != "ok" {
		t.Errorf("texts: %v", texts)
	}
}

func TestHandleFrameData_StaleGenerationDropped(t *testing.T) {
	var texts []string
	d := client.NewDispatcher(nil, client.Callbacks{
		OnText: func(s string) { texts = append(texts, s) },
	})
	oldGen := d.StartMessage("m1")
	newGen := d.StartMessage("m2")

	d.HandleFrameData(oldGen, encodePayload(t, frame.NewText("stale")))
	d.HandleFrameData(newGen, encodePayload(t, frame.NewText("fresh")))

	if len(texts) != 1 || texts[0] != "fresh" {
		t.Errorf("texts: %v", texts)
	}
}

func TestSentenceSpans_ArrivalOrder(t *testing.T) {
	var gotMessageID string
	var callbackSpans [][]frame.SentenceSpan
	d := client.NewDispatcher(nil, client.Callbacks{
		OnSentenceSpans: func(id string, spans []frame.SentenceSpan) {
			gotMessageID = id
			callbackSpans = append(callbackSpans, spans)
		},
	})
	gen := d.StartMessage("msg-7")

	d.HandleFrameData(gen, encodePayload(t, frame.NewSentenceBoundary("s1", 0, 12)))
	d.HandleFrameData(gen, encodePayload(t, frame.NewSentenceBoundary("s2", 13, 25)))

	if gotMessageID != "msg-7" {
		t.Errorf("message id: got %q", gotMessageID)
	}
	if len(callbackSpans) != 2 {
		t.Fatalf("expected 2 span callbacks, got %d", len(callbackSpans))
	}

	spans := d.Spans("msg-7")
	if len(spans) != 2 {
		t.Fatalf("spans: %v", spans)
	}
	if spans[0].ID != "s1" || spans[0].Start != 0 || spans[0].End != 12 {
		t.Errorf("span[0]: %+v", spans[0])
	}
	if spans[1].ID != "s2" || spans[1].Start != 13 || spans[1].End != 25 {
		t.Errorf("span[1]: %+v", spans[1])
	}
}

func TestPlayback_FIFOOrderUnderVariedLatency(t *testing.T) {
	// Later buffers complete faster than earlier ones; order must hold.
	eng := &fakeEngine{delays: map[int]time.Duration{
		0: 60 * time.Millisecond,
		1: 30 * time.Millisecond,
		2: 5 * time.Millisecond,
	}}
	var activeEvents []string
	var mu sync.Mutex
	d := client.NewDispatcher(eng, client.Callbacks{
		OnActiveSentence: func(id string) {
			mu.Lock()
			activeEvents = append(activeEvents, id)
			mu.Unlock()
		},
	})
	gen := d.StartMessage("m1")

	for i, id := range []string{"s1", "s2", "s3"} {
		d.HandleFrameData(gen, encodePayload(t, frame.NewAudio([]byte{byte('a' + i)}, "mp3", 24000, id)))
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(activeEvents) == 6
	})

	if got := eng.played(); strings.Join(got, "") != "abc" {
		t.Errorf("play order: %v", got)
	}
	if eng.maxActive > 1 {
		t.Errorf("max concurrent playbacks: %d, want 1", eng.maxActive)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"s1", "", "s2", "", "s3", ""}
	for i, ev := range want {
		if activeEvents[i] != ev {
			t.Errorf("active event[%d]: got %q, want %q", i, activeEvents[i], ev)
			break
		}
	}
}

func TestPlayback_FailureAdvancesQueue(t *testing.T) {
	eng := &fakeEngine{
		failAt: map[int]bool{0: true},
		delays: map[int]time.Duration{1: time.Millisecond},
	}
	d := client.NewDispatcher(eng, client.Callbacks{})
	gen := d.StartMessage("m1")

	d.HandleFrameData(gen, encodePayload(t, frame.NewAudio([]byte("x"), "mp3", 24000, "s1")))
	d.HandleFrameData(gen, encodePayload(t, frame.NewAudio([]byte("y"), "mp3", 24000, "s2")))

	waitFor(t, func() bool {
		return len(eng.played()) == 1 && eng.played()[0] == "y"
	})
}

func TestStopAudio_ClearsQueueAndStopsCurrent(t *testing.T) {
	eng := &fakeEngine{} // no delays: first buffer stays active until stopped
	var activeEvents []string
	var mu sync.Mutex
	d := client.NewDispatcher(eng, client.Callbacks{
		OnActiveSentence: func(id string) {
			mu.Lock()
			activeEvents = append(activeEvents, id)
			mu.Unlock()
		},
	})
	gen := d.StartMessage("m1")

	d.HandleFrameData(gen, encodePayload(t, frame.NewAudio([]byte("a"), "mp3", 24000, "s1")))
	d.HandleFrameData(gen, encodePayload(t, frame.NewAudio([]byte("b"), "mp3", 24000, "s2")))

	waitFor(t, func() bool {
		eng.mu.Lock()
		defer eng.mu.Unlock()
		return len(eng.playbacks) == 1
	})
	waitFor(t, func() bool { return d.ActiveSentence() == "s1" })

	d.StopAudio()

	if got := d.ActiveSentence(); got != "" {
		t.Errorf("active sentence after stop: %q", got)
	}

	eng.mu.Lock()
	pb := eng.playbacks[0]
	eng.mu.Unlock()
	if !pb.wasStopped() {
		t.Error("current playback was not stopped")
	}

	// Queued s2 must never start.
	time.Sleep(50 * time.Millisecond)
	if got := eng.played(); len(got) != 1 {
		t.Errorf("play order after stop: %v", got)
	}

	// No trailing "ended" callback for the stopped buffer.
	mu.Lock()
	defer mu.Unlock()
	for _, ev := range activeEvents {
		if ev == "" {
			t.Errorf("unexpected ended callback after stop: %v", activeEvents)
			break
		}
	}
}

func TestSetAudioEnabled_False(t *testing.T) {
	eng := &fakeEngine{}
	d := client.NewDispatcher(eng, client.Callbacks{})
	d.SetAudioEnabled(false)
	gen := d.StartMessage("m1")

	d.HandleFrameData(gen, encodePayload(t, frame.NewAudio([]byte("a"), "mp3", 24000, "s1")))

	time.Sleep(20 * time.Millisecond)
	if got := eng.played(); len(got) != 0 {
		t.Errorf("audio played while disabled: %v", got)
	}
}

func TestStream_EndToEnd(t *testing.T) {
	var buf bytes.Buffer
	write := func(f frame.Frame) {
		rec, err := frame.EncodeRecord(f)
		if err != nil {
			t.Fatalf("encode record: %v", err)
		}
		buf.Write(rec)
	}

	write(frame.NewStatus(frame.StatusStarted, ""))
	write(frame.NewStatus(frame.StatusProcessing, ""))
	write(frame.NewText("Hello world. "))
	write(frame.NewSentenceBoundary("s1", 0, 12))
	write(frame.NewAudio([]byte("audio-1"), "mp3", 24000, "s1"))
	write(frame.NewText("How are you?"))
	write(frame.NewSentenceBoundary("s2", 13, 25))
	write(frame.NewAudio([]byte("audio-2"), "mp3", 24000, "s2"))
	write(frame.NewStatus(frame.StatusCompleted, ""))
	write(frame.NewSuggestedResponses([]string{"Why?", "How?"}))
	buf.Write(frame.DoneRecord())
	// Anything after [DONE] must not be read.
	write(frame.NewText("ignored"))

	eng := &fakeEngine{delays: map[int]time.Duration{0: time.Millisecond, 1: time.Millisecond}}

	var mu sync.Mutex
	var text strings.Builder
	var phases []frame.StatusPhase
	var suggestions []string
	d := client.NewDispatcher(eng, client.Callbacks{
		OnText: func(s string) { mu.Lock(); text.WriteString(s); mu.Unlock() },
		OnStatus: func(p frame.StatusPhase, _ string) {
			mu.Lock()
			phases = append(phases, p)
			mu.Unlock()
		},
		OnSuggestions: func(s []string) { mu.Lock(); suggestions = s; mu.Unlock() },
	})

	if err := d.Stream(&buf, "msg-1"); err != nil {
		t.Fatalf("stream error: %v", err)
	}

	mu.Lock()
	if got := text.String(); got != "Hello world. How are you?" {
		t.Errorf("text: %q", got)
	}
	if len(phases) != 3 || phases[2] != frame.StatusCompleted {
		t.Errorf("phases: %v", phases)
	}
	if len(suggestions) != 2 {
		t.Errorf("suggestions: %v", suggestions)
	}
	mu.Unlock()

	spans := d.Spans("msg-1")
	if len(spans) != 2 || spans[0].ID != "s1" || spans[1].ID != "s2" {
		t.Errorf("spans: %+v", spans)
	}

	waitFor(t, func() bool {
		got := eng.played()
		return len(got) == 2 && got[0] == "audio-1" && got[1] == "audio-2"
	})
}

func TestReadRecords_SkipsNonDataLines(t *testing.T) {
	input := ": comment\nevent: something\n\ndata: one\n\ndata: [DONE]\n\n"
	var payloads []string
	err := client.ReadRecords(strings.NewReader(input), func(p string) bool {
		payloads = append(payloads, p)
		return p == frame.DoneSentinel
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payloads) != 2 || payloads[0] != "one" {
		t.Errorf("payloads: %v", payloads)
	}
}

func TestReadRecords_LargePayload(t *testing.T) {
	// A base64 audio payload far beyond the default bufio.Scanner limit.
	big := strings.Repeat("A", 512*1024)
	input := "data: " + big + "\n\ndata: [DONE]\n\n"

	var got string
	err := client.ReadRecords(strings.NewReader(input), func(p string) bool {
		if p == frame.DoneSentinel {
			return true
		}
		got = p
		return false
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(big) {
		t.Errorf("payload length: got %d, want %d", len(got), len(big))
	}
}

func TestClose_ReleasesEngine(t *testing.T) {
	eng := &fakeEngine{}
	d := client.NewDispatcher(eng, client.Callbacks{})
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if !eng.closed {
		t.Error("engine was not closed")
	}
}
