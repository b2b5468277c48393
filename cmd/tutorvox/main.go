// Command tutorvox is the main entry point for the tutorvox streaming tutor
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	oai "github.com/openai/openai-go"

	"github.com/MrWong99/tutorvox/internal/character"
	"github.com/MrWong99/tutorvox/internal/config"
	"github.com/MrWong99/tutorvox/internal/health"
	"github.com/MrWong99/tutorvox/internal/httpapi"
	"github.com/MrWong99/tutorvox/internal/observe"
	"github.com/MrWong99/tutorvox/internal/resilience"
	"github.com/MrWong99/tutorvox/internal/stream"
	threadpg "github.com/MrWong99/tutorvox/internal/thread/postgres"
	imageprovider "github.com/MrWong99/tutorvox/pkg/provider/image"
	imageopenai "github.com/MrWong99/tutorvox/pkg/provider/image/openai"
	"github.com/MrWong99/tutorvox/pkg/provider/llm"
	"github.com/MrWong99/tutorvox/pkg/provider/llm/anyllm"
	"github.com/MrWong99/tutorvox/pkg/provider/tts"
	"github.com/MrWong99/tutorvox/pkg/provider/tts/elevenlabs"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "tutorvox: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "tutorvox: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("tutorvox starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	llmProvider, ttsProvider, imgProvider, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Characters ────────────────────────────────────────────────────────────
	chars := cfg.Characters
	if len(chars) == 0 {
		slog.Info("no characters configured, using built-in defaults")
		chars = character.Defaults()
	}
	characters, err := character.NewRegistry(chars, cfg.DefaultCharacter)
	if err != nil {
		slog.Error("invalid character configuration", "err", err)
		return 1
	}

	// ── Thread store ──────────────────────────────────────────────────────────
	var checkers []health.Checker
	orchOpts := []stream.Option{stream.WithImageGeneration(cfg.Stream.ImageGeneration)}
	if cfg.Providers.Image.Name != "" && imgProvider != nil {
		orchOpts = append(orchOpts, stream.WithImageProvider(imgProvider))
	}
	if cfg.Stream.MaxSynthesisConcurrency > 0 {
		orchOpts = append(orchOpts, stream.WithMaxSynthesisConcurrency(cfg.Stream.MaxSynthesisConcurrency))
	}

	serverOpts := []httpapi.Option{}
	if dsn := cfg.Thread.PostgresDSN; dsn != "" {
		store, err := threadpg.NewStore(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect thread store", "err", err)
			return 1
		}
		defer store.Close()
		orchOpts = append(orchOpts, stream.WithThreadStore(store))
		serverOpts = append(serverOpts, httpapi.WithThreadStore(store))
		checkers = append(checkers, health.Checker{
			Name: "database",
			Check: func(ctx context.Context) error {
				_, _, err := store.Get(ctx, "healthcheck")
				return err
			},
		})
		slog.Info("thread persistence enabled")
	}
	serverOpts = append(serverOpts, httpapi.WithHealthCheckers(checkers...))

	// ── Orchestrator + HTTP server ────────────────────────────────────────────
	orch, err := stream.NewOrchestrator(llmProvider, ttsProvider, orchOpts...)
	if err != nil {
		slog.Error("failed to build orchestrator", "err", err)
		return 1
	}

	api, err := httpapi.NewServer(orch, characters, serverOpts...)
	if err != nil {
		slog.Error("failed to build http server", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
		if d.CharactersChanged && len(new.Characters) > 0 {
			reg, err := character.NewRegistry(new.Characters, new.DefaultCharacter)
			if err != nil {
				slog.Warn("character reload rejected", "err", err)
				return
			}
			api.SetCharacters(reg)
			slog.Info("characters reloaded", "changes", len(d.CharacterChanges))
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", addr)
		if cfg.Server.TLS != nil {
			errCh <- srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			return 1
		}
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	// ── Image ─────────────────────────────────────────────────────────────────

	reg.RegisterImage("openai", func(entry config.ProviderEntry) (imageprovider.Provider, error) {
		var opts []imageopenai.Option
		if entry.Model != "" {
			opts = append(opts, imageopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, imageopenai.WithBaseURL(entry.BaseURL))
		}
		if size := optString(entry.Options, "size"); size != "" {
			opts = append(opts, imageopenai.WithSize(oai.ImageGenerateParamsSize(size)))
		}
		return imageopenai.New(entry.APIKey, opts...)
	})
}

// buildProviders instantiates the providers named in cfg using the registry.
func buildProviders(cfg *config.Config, reg *config.Registry) (llm.Provider, tts.Provider, imageprovider.Provider, error) {
	var (
		llmProvider llm.Provider
		ttsProvider tts.Provider
		imgProvider imageprovider.Provider
	)

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		llmProvider = p
		slog.Info("provider created", "kind", "llm", "name", name, "model", cfg.Providers.LLM.Model)

		if len(cfg.Providers.LLMFallbacks) > 0 {
			fb := resilience.NewLLMFallback(p, name, resilience.FallbackConfig{})
			for _, entry := range cfg.Providers.LLMFallbacks {
				fp, err := reg.CreateLLM(entry)
				if err != nil {
					return nil, nil, nil, fmt.Errorf("create llm fallback %q: %w", entry.Name, err)
				}
				fb.AddFallback(entry.Name, fp)
				slog.Info("fallback provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)
			}
			llmProvider = fb
		}
	}

	if name := cfg.Providers.TTS.Name; name != "" {
		p, err := reg.CreateTTS(cfg.Providers.TTS)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create tts provider %q: %w", name, err)
		}
		ttsProvider = p
		slog.Info("provider created", "kind", "tts", "name", name, "model", cfg.Providers.TTS.Model)

		if len(cfg.Providers.TTSFallbacks) > 0 {
			fb := resilience.NewTTSFallback(p, name, resilience.FallbackConfig{})
			for _, entry := range cfg.Providers.TTSFallbacks {
				fp, err := reg.CreateTTS(entry)
				if err != nil {
					return nil, nil, nil, fmt.Errorf("create tts fallback %q: %w", entry.Name, err)
				}
				fb.AddFallback(entry.Name, fp)
				slog.Info("fallback provider created", "kind", "tts", "name", entry.Name, "model", entry.Model)
			}
			ttsProvider = fb
		}
	}

	if name := cfg.Providers.Image.Name; name != "" {
		p, err := reg.CreateImage(cfg.Providers.Image)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create image provider %q: %w", name, err)
		}
		imgProvider = p
		slog.Info("provider created", "kind", "image", "name", name, "model", cfg.Providers.Image.Model)
	}

	return llmProvider, ttsProvider, imgProvider, nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
