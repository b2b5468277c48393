package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/tutorvox/internal/character"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":   {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts":   {"elevenlabs"},
	"image": {"openai"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("image", cfg.Providers.Image.Name)
	for _, fb := range cfg.Providers.LLMFallbacks {
		validateProviderName("llm", fb.Name)
	}
	for _, fb := range cfg.Providers.TTSFallbacks {
		validateProviderName("tts", fb.Name)
	}

	// Fallbacks without a primary make no sense.
	if len(cfg.Providers.LLMFallbacks) > 0 && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_fallbacks require providers.llm to be configured"))
	}
	if len(cfg.Providers.TTSFallbacks) > 0 && cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts_fallbacks require providers.tts to be configured"))
	}
	for i, fb := range cfg.Providers.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name must not be empty", i))
		}
	}
	for i, fb := range cfg.Providers.TTSFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.tts_fallbacks[%d].name must not be empty", i))
		}
	}

	// Provider availability warnings
	if cfg.Providers.LLM.Name == "" && len(cfg.Characters) > 0 {
		errs = append(errs, errors.New("providers.llm is required when characters are configured"))
	}
	if cfg.Providers.TTS.Name == "" && len(cfg.Characters) > 0 {
		errs = append(errs, errors.New("providers.tts is required when characters are configured"))
	}
	if cfg.Stream.ImageGeneration && cfg.Providers.Image.Name == "" {
		errs = append(errs, errors.New("stream.image_generation is enabled but providers.image is not configured"))
	}

	// Thread persistence availability
	if cfg.Thread.PostgresDSN == "" {
		slog.Warn("thread.postgres_dsn is empty; conversation threads will not be persisted")
	}

	// Stream
	if cfg.Stream.MaxSynthesisConcurrency < 0 {
		errs = append(errs, fmt.Errorf("stream.max_synthesis_concurrency %d must not be negative", cfg.Stream.MaxSynthesisConcurrency))
	}

	// Character duplicate ID detection
	idsSeen := make(map[string]int, len(cfg.Characters))

	// Characters
	for i, c := range cfg.Characters {
		prefix := fmt.Sprintf("characters[%d]", i)
		if err := character.Validate(c); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", prefix, err))
		}
		if c.ID != "" {
			if prev, ok := idsSeen[c.ID]; ok {
				errs = append(errs, fmt.Errorf("%s.id %q is a duplicate of characters[%d]", prefix, c.ID, prev))
			}
			idsSeen[c.ID] = i
		}
	}

	// Default character must exist when characters are configured.
	if cfg.DefaultCharacter != "" {
		if _, ok := idsSeen[cfg.DefaultCharacter]; !ok {
			errs = append(errs, fmt.Errorf("default_character %q does not match any configured character", cfg.DefaultCharacter))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
