package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/tutorvox/internal/character"
	"github.com/MrWong99/tutorvox/internal/observe"
	"github.com/MrWong99/tutorvox/internal/thread"
	"github.com/MrWong99/tutorvox/pkg/frame"
	"github.com/MrWong99/tutorvox/pkg/provider/image"
	"github.com/MrWong99/tutorvox/pkg/provider/llm"
	"github.com/MrWong99/tutorvox/pkg/provider/tts"
)

// Model parameters per call site, matching the tuning of the original web app.
const (
	streamTemperature = 0.7

	suggestionsTemperature = 0.8
	suggestionsMaxTokens   = 150
	maxSuggestions         = 3

	classifierTemperature = 0.3
	classifierMaxTokens   = 200
)

// generateDirective is the prefix the image classifier answers with when a
// visual would help; the remainder of the line is the generation prompt.
const generateDirective = "GENERATE_IMAGE:"

// suggestionsInstruction is the final user turn of the suggestions call.
const suggestionsInstruction = "Based on our conversation so far, suggest 3 natural follow-up " +
	"questions I might ask. Return only the 3 questions, one per line, without numbers or formatting."

// FrameSink receives the frames produced by a [Orchestrator.Run] call, in
// order. Send is best-effort: implementations must swallow write failures
// (e.g. a disconnected client) so the pipeline can finish its bookkeeping.
//
// Send is called from multiple goroutines and must be safe for concurrent use.
type FrameSink interface {
	Send(f frame.Frame)
}

// Request carries one chat turn through the pipeline.
type Request struct {
	// Messages is the conversation history, ending with the user's new turn.
	Messages []llm.Message

	// SystemPrompt overrides the character's system prompt when non-empty.
	SystemPrompt string

	// Character is the resolved tutor persona for this turn.
	Character character.Character

	// ThreadID identifies the conversation for persistence. Empty means a
	// new thread; an id is generated before saving.
	ThreadID string

	// UserID owns the thread. Persistence is skipped when empty.
	UserID string

	// MessageID identifies the assistant message for image correlation.
	MessageID string

	// ImageGenerationEnabled gates the classifier and image generation.
	ImageGenerationEnabled bool
}

// synthResult is one synthesised sentence flowing through the ordered queue.
type synthResult struct {
	audio      *tts.Audio
	sentenceID string
}

// Orchestrator runs the full response pipeline for one request: stream the
// LLM completion as text frames, segment it into sentences, synthesise each
// sentence concurrently while delivering audio in sentence order, then fan
// out the auxiliary one-shots (follow-up suggestions, optional image) and
// persist the exchange.
type Orchestrator struct {
	llm     llm.Provider
	tts     tts.Provider
	image   image.Provider
	store   thread.Store
	metrics *observe.Metrics
	log     *slog.Logger

	maxSynthesis int
	imageEnabled bool
}

// Option is a functional option for [NewOrchestrator].
type Option func(*Orchestrator)

// WithImageProvider enables image generation. Without it, requests never
// produce image frames regardless of their ImageGenerationEnabled flag.
func WithImageProvider(p image.Provider) Option {
	return func(o *Orchestrator) {
		o.image = p
	}
}

// WithImageGeneration toggles image generation for the whole server. When
// disabled, the classifier never runs even if an image provider is wired in.
func WithImageGeneration(enabled bool) Option {
	return func(o *Orchestrator) {
		o.imageEnabled = enabled
	}
}

// WithThreadStore enables conversation persistence.
func WithThreadStore(s thread.Store) Option {
	return func(o *Orchestrator) {
		o.store = s
	}
}

// WithMetrics overrides the default metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = l
	}
}

// WithMaxSynthesisConcurrency bounds how many sentences are synthesised in
// parallel. n <= 0 removes the bound.
func WithMaxSynthesisConcurrency(n int) Option {
	return func(o *Orchestrator) {
		o.maxSynthesis = n
	}
}

// NewOrchestrator creates an Orchestrator over the given text and speech
// providers.
func NewOrchestrator(llmProvider llm.Provider, ttsProvider tts.Provider, opts ...Option) (*Orchestrator, error) {
	if llmProvider == nil {
		return nil, errors.New("stream: llm provider must not be nil")
	}
	if ttsProvider == nil {
		return nil, errors.New("stream: tts provider must not be nil")
	}

	o := &Orchestrator{
		llm:          llmProvider,
		tts:          ttsProvider,
		metrics:      observe.DefaultMetrics(),
		log:          slog.Default(),
		maxSynthesis: defaultMaxInFlight,
		imageEnabled: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run executes the pipeline for one request, writing all frames to sink. It
// returns only after every activity has finished. The caller is responsible
// for the transport-level terminal record ([DONE]); Run itself ends the frame
// stream with a completed or error status.
//
// A non-nil error means the response failed as a whole (the stream could not
// be opened, died mid-flight, or ctx was cancelled); an error status frame
// has already been sent in that case. Per-sentence synthesis failures and
// auxiliary failures are logged and absorbed.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink FrameSink) error {
	start := time.Now()
	o.metrics.ActiveStreams.Add(ctx, 1)
	defer func() {
		o.metrics.ActiveStreams.Add(ctx, -1)
		o.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds())
	}()

	o.send(ctx, sink, frame.NewStatus(frame.StatusStarted, "Generating response"))

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = req.Character.SystemPrompt
	}

	llmStart := time.Now()
	chunks, err := o.llm.StreamCompletion(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     req.Messages,
		Temperature:  streamTemperature,
	})
	if err != nil {
		o.metrics.RecordProviderError(ctx, "llm", "stream")
		o.send(ctx, sink, frame.NewStatus(frame.StatusError, err.Error()))
		return fmt.Errorf("stream: open completion stream: %w", err)
	}

	o.send(ctx, sink, frame.NewStatus(frame.StatusProcessing, "Generating response"))

	queue := NewQueue[synthResult](WithMaxInFlight[synthResult](o.maxSynthesis))
	voice := tts.Voice{ID: req.Character.VoiceID}

	g, gctx := errgroup.WithContext(ctx)

	// Text activity: consume the completion stream, segment it, and hand off
	// each sentence to synthesis. Runs the auxiliary phase once the stream
	// ends, concurrently with the still-draining audio activity.
	g.Go(func() error {
		var full strings.Builder
		var streamErr error

		seg := NewSegmenter(func(id string, start, end int, text string) {
			// The boundary frame must reach the client before this
			// sentence's audio frame can.
			o.send(gctx, sink, frame.NewSentenceBoundary(id, start, end))

			if err := queue.Add(gctx, func(taskCtx context.Context) (synthResult, error) {
				ttsStart := time.Now()
				audio, err := o.tts.Synthesize(taskCtx, text, voice)
				o.metrics.TTSDuration.Record(taskCtx, time.Since(ttsStart).Seconds())
				if err != nil {
					o.metrics.RecordProviderError(taskCtx, "tts", "synthesize")
					return synthResult{}, fmt.Errorf("synthesize %s: %w", id, err)
				}
				return synthResult{audio: audio, sentenceID: id}, nil
			}); err != nil {
				o.log.Error("submit synthesis task", "sentence_id", id, "err", err)
			}
		})

		for chunk := range chunks {
			if chunk.FinishReason == llm.FinishError {
				streamErr = errors.New(chunk.Text)
				break
			}
			if chunk.Text == "" {
				continue
			}
			full.WriteString(chunk.Text)
			o.send(gctx, sink, frame.NewText(chunk.Text))
			seg.AddText(chunk.Text)
		}
		o.metrics.LLMDuration.Record(gctx, time.Since(llmStart).Seconds())

		seg.Flush()
		queue.MarkComplete()

		if streamErr != nil {
			o.metrics.RecordProviderError(gctx, "llm", "stream")
			o.send(gctx, sink, frame.NewStatus(frame.StatusError, streamErr.Error()))
			return fmt.Errorf("stream: completion stream failed: %w", streamErr)
		}

		o.finishResponse(gctx, req, sink, full.String())
		return nil
	})

	// Audio activity: deliver synthesised sentences in submission order. A
	// failed sentence costs exactly its own audio frame.
	g.Go(func() error {
		return queue.Process(gctx,
			func(res synthResult) {
				o.send(gctx, sink, frame.NewAudio(res.audio.Data, res.audio.Format, res.audio.SampleRate, res.sentenceID))
			},
			func(err error, idx int) {
				o.metrics.SynthesisFailures.Add(gctx, 1)
				o.log.Error("sentence synthesis failed", "index", idx, "err", err)
			},
		)
	})

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// finishResponse runs everything that happens after the last text chunk: the
// image classifier, the completed status, the concurrent suggestion and image
// one-shots, and persistence. All failures here are logged and absorbed.
func (o *Orchestrator) finishResponse(ctx context.Context, req Request, sink FrameSink, fullResponse string) {
	imageWanted := o.image != nil && o.imageEnabled && req.ImageGenerationEnabled && req.MessageID != ""

	var imagePrompt string
	if imageWanted {
		var err error
		imagePrompt, err = o.classifyForImage(ctx, req.Character, fullResponse)
		if err != nil {
			o.log.Error("image classification failed", "err", err)
			imagePrompt = ""
		}
		if imagePrompt != "" {
			o.send(ctx, sink, frame.NewStatus(frame.StatusGeneratingImage, "Generating image..."))
		}
	}

	o.send(ctx, sink, frame.NewStatus(frame.StatusCompleted, "Response complete"))

	var aux errgroup.Group
	if imagePrompt != "" {
		aux.Go(func() error {
			imgStart := time.Now()
			data, err := o.image.Generate(ctx, imagePrompt)
			o.metrics.ImageDuration.Record(ctx, time.Since(imgStart).Seconds())
			if err != nil {
				o.metrics.RecordProviderError(ctx, "image", "generate")
				o.log.Error("image generation failed", "err", err)
				return nil
			}
			o.send(ctx, sink, frame.NewImage(data, imagePrompt, req.MessageID))
			return nil
		})
	}
	aux.Go(func() error {
		suggestions, err := o.generateSuggestions(ctx, req, fullResponse)
		if err != nil {
			o.log.Error("suggestion generation failed", "err", err)
			return nil
		}
		if len(suggestions) > 0 {
			o.send(ctx, sink, frame.NewSuggestedResponses(suggestions))
		}
		return nil
	})
	_ = aux.Wait()

	o.saveThread(ctx, req, fullResponse)
}

// generateSuggestions asks the model for up to three follow-up questions the
// user might plausibly ask next.
func (o *Orchestrator) generateSuggestions(ctx context.Context, req Request, fullResponse string) ([]string, error) {
	systemPrompt := req.Character.SuggestionsPrompt
	if systemPrompt == "" {
		systemPrompt = fmt.Sprintf(
			"You are %s. Suggest follow-up questions a curious student might ask next, matching your teaching style.",
			req.Character.DisplayName)
	}

	messages := make([]llm.Message, 0, len(req.Messages)+2)
	messages = append(messages, req.Messages...)
	messages = append(messages,
		llm.Message{Role: "assistant", Content: fullResponse},
		llm.Message{Role: "user", Content: suggestionsInstruction},
	)

	resp, err := o.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     messages,
		Temperature:  suggestionsTemperature,
		MaxTokens:    suggestionsMaxTokens,
	})
	if err != nil {
		o.metrics.RecordProviderError(ctx, "llm", "suggestions")
		return nil, err
	}

	var suggestions []string
	for _, line := range strings.Split(resp.Content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		suggestions = append(suggestions, line)
		if len(suggestions) == maxSuggestions {
			break
		}
	}
	return suggestions, nil
}

// classifyForImage asks the model whether the response deserves a supporting
// image. It returns the generation prompt, or "" when none should be made.
func (o *Orchestrator) classifyForImage(ctx context.Context, c character.Character, response string) (string, error) {
	systemPrompt := fmt.Sprintf(`You are %[1]s. Based on your response, determine if a visual image would help enhance the learning experience.

Your response: %[2]q

If an image would be helpful, respond with:
%[3]s [detailed description for image generation, written in a style appropriate for %[1]s]

If no image is needed, respond with:
NO_IMAGE

Guidelines:
- Only generate images for figures, events, places, artifacts, maps, or concepts that would benefit from visual representation
- Make the image description detailed but educational
- Consider your character's teaching style: %[4]s
- Avoid generating images for abstract concepts or conversations that don't need visuals`,
		c.DisplayName, response, generateDirective, c.Description)

	resp, err := o.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: "If useful, generate an image for this response."},
		},
		Temperature: classifierTemperature,
		MaxTokens:   classifierMaxTokens,
	})
	if err != nil {
		o.metrics.RecordProviderError(ctx, "llm", "image_classifier")
		return "", err
	}

	decision := resp.Content
	if idx := strings.Index(decision, generateDirective); idx >= 0 {
		return strings.TrimSpace(decision[idx+len(generateDirective):]), nil
	}
	return "", nil
}

// saveThread persists the exchange best-effort. Skipped entirely for
// anonymous requests or empty histories.
func (o *Orchestrator) saveThread(ctx context.Context, req Request, fullResponse string) {
	if o.store == nil || req.UserID == "" || len(req.Messages) == 0 {
		return
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	messages := make([]thread.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = thread.Message{Role: m.Role, Content: m.Content}
	}

	if err := o.store.Save(ctx, req.UserID, threadID, messages, fullResponse); err != nil {
		o.log.Error("save thread", "thread_id", threadID, "err", err)
	}
}

// send writes one frame to the sink and counts it.
func (o *Orchestrator) send(ctx context.Context, sink FrameSink, f frame.Frame) {
	sink.Send(f)
	o.metrics.RecordFrame(ctx, string(f.Kind()))
}
