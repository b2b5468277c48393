// Package openai provides an image-generation provider backed by the OpenAI
// Images API.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/tutorvox/pkg/provider/image"
)

const defaultModel = "gpt-image-1"

// Provider implements image.Provider using the OpenAI Images API.
type Provider struct {
	client oai.Client
	model  string
	size   oai.ImageGenerateParamsSize
}

var _ image.Provider = (*Provider)(nil)

// config holds optional configuration for the provider.
type config struct {
	model   string
	size    oai.ImageGenerateParamsSize
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithModel sets the image model (default "gpt-image-1").
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithSize sets the output image dimensions (default 1024x1024).
func WithSize(size oai.ImageGenerateParamsSize) Option {
	return func(c *config) {
		c.size = size
	}
}

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout. Image generation can take tens
// of seconds; the zero value leaves the SDK default in place.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI image Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}

	cfg := &config{
		model: defaultModel,
		size:  oai.ImageGenerateParamsSize1024x1024,
	}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  cfg.model,
		size:   cfg.size,
	}, nil
}

// Generate implements image.Provider.
func (p *Provider) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if prompt == "" {
		return nil, errors.New("openai: prompt must not be empty")
	}

	resp, err := p.client.Images.Generate(ctx, oai.ImageGenerateParams{
		Prompt: prompt,
		Model:  oai.ImageModel(p.model),
		Size:   p.size,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: generate image: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai: empty image data in response")
	}

	// gpt-image-1 always returns base64-encoded images.
	b64 := resp.Data[0].B64JSON
	if b64 == "" {
		return nil, errors.New("openai: response carries no b64_json payload")
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("openai: decode image: %w", err)
	}
	return data, nil
}
