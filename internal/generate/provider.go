// ABOUTME: Provider selection from configuration plus metrics and fallback decorators
// ABOUTME: An openai provider without an API key degrades to the stub with a warning

package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/cultural-storyteller/internal/metrics"
)

// Provider names accepted by New.
const (
	ProviderStub   = "stub"
	ProviderOpenAI = "openai"
)

// Config selects and configures a provider.
type Config struct {
	Provider string
	OpenAI   OpenAIConfig
	// FallbackOnError serves stub content when the real provider fails.
	FallbackOnError bool
}

// New builds the configured provider, wrapped with metrics recording.
func New(cfg Config, rec metrics.Recorder, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}

	var p *Provider
	switch cfg.Provider {
	case "", ProviderStub:
		p = NewStub()
	case ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			logger.Warn("openai provider selected without api key, using stub content")
			p = NewStub()
			break
		}
		live, err := NewOpenAI(cfg.OpenAI, logger)
		if err != nil {
			return nil, err
		}
		p = live
		if cfg.FallbackOnError {
			p = WithFallback(p, NewStub(), logger)
		}
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}

	return Instrument(p, rec), nil
}

// WithFallback serves fallback responses when primary fails. Validation errors
// such as an out-of-range speed are returned as-is.
func WithFallback(primary, fallback *Provider, logger *slog.Logger) *Provider {
	logger = logger.With("component", "generate", "provider", primary.Name)
	return &Provider{
		Name:   primary.Name,
		Text:   fallbackText{primary: primary.Text, fallback: fallback.Text, logger: logger},
		Speech: fallbackSpeech{primary: primary.Speech, fallback: fallback.Speech, logger: logger},
		Images: fallbackImages{primary: primary.Images, fallback: fallback.Images, logger: logger},
	}
}

type fallbackText struct {
	primary, fallback ContentGenerator
	logger            *slog.Logger
}

func (f fallbackText) Generate(ctx context.Context, p Prompt) (*Generated, error) {
	out, err := f.primary.Generate(ctx, p)
	if err == nil || errors.Is(err, ErrEmptyInput) || ctx.Err() != nil {
		return out, err
	}
	f.logger.Warn("story generation failed, serving sample content", "error", err)
	return f.fallback.Generate(ctx, p)
}

type fallbackSpeech struct {
	primary, fallback SpeechSynthesizer
	logger            *slog.Logger
}

func (f fallbackSpeech) Synthesize(ctx context.Context, text, voice string, speed float64) (AudioHandle, error) {
	if _, err := checkSpeech(text, voice, speed); err != nil {
		return "", err
	}
	h, err := f.primary.Synthesize(ctx, text, voice, speed)
	if err == nil || ctx.Err() != nil {
		return h, err
	}
	f.logger.Warn("speech synthesis failed, serving placeholder audio", "error", err)
	return f.fallback.Synthesize(ctx, text, voice, speed)
}

type fallbackImages struct {
	primary, fallback ImageGenerator
	logger            *slog.Logger
}

func (f fallbackImages) Generate(ctx context.Context, prompt string, count int) ([]string, error) {
	urls, err := f.primary.Generate(ctx, prompt, count)
	if err == nil || ctx.Err() != nil {
		return urls, err
	}
	f.logger.Warn("image generation failed, serving placeholder images", "error", err)
	return f.fallback.Generate(ctx, prompt, count)
}

// Instrument records every call's outcome under kinds content, speech and image.
func Instrument(p *Provider, rec metrics.Recorder) *Provider {
	return &Provider{
		Name:   p.Name,
		Text:   measuredText{next: p.Text, rec: rec},
		Speech: measuredSpeech{next: p.Speech, rec: rec},
		Images: measuredImages{next: p.Images, rec: rec},
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

type measuredText struct {
	next ContentGenerator
	rec  metrics.Recorder
}

func (m measuredText) Generate(ctx context.Context, p Prompt) (*Generated, error) {
	out, err := m.next.Generate(ctx, p)
	m.rec.RecordGeneration("content", result(err))
	return out, err
}

type measuredSpeech struct {
	next SpeechSynthesizer
	rec  metrics.Recorder
}

func (m measuredSpeech) Synthesize(ctx context.Context, text, voice string, speed float64) (AudioHandle, error) {
	h, err := m.next.Synthesize(ctx, text, voice, speed)
	m.rec.RecordGeneration("speech", result(err))
	return h, err
}

type measuredImages struct {
	next ImageGenerator
	rec  metrics.Recorder
}

func (m measuredImages) Generate(ctx context.Context, prompt string, count int) ([]string, error) {
	urls, err := m.next.Generate(ctx, prompt, count)
	m.rec.RecordGeneration("image", result(err))
	return urls, err
}
