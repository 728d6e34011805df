// ABOUTME: Boundaries for AI story text, speech narration and illustration providers
// ABOUTME: Stub and OpenAI implementations satisfy the same interfaces

package generate

import (
	"context"
	"errors"
)

// Errors returned by providers.
var (
	ErrGeneration = errors.New("generation failed")
	ErrSynthesis  = errors.New("speech synthesis failed")
	ErrEmptyInput = errors.New("empty input")
)

// Speech speed bounds, inclusive.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// DefaultStoryType is used when a prompt names no known story type.
const DefaultStoryType = "Historical Fiction"

// Prompt asks a ContentGenerator for a story.
type Prompt struct {
	Text    string
	Type    string
	Length  string
	Style   string
	Context string
}

// Generated is a drafted story.
type Generated struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// AudioHandle references synthesized narration. Handles produced by the OpenAI
// provider are paths relative to the media directory.
type AudioHandle string

// ContentGenerator drafts story text from a prompt.
type ContentGenerator interface {
	Generate(ctx context.Context, p Prompt) (*Generated, error)
}

// SpeechSynthesizer narrates text with a voice personality.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voice string, speed float64) (AudioHandle, error)
}

// ImageGenerator produces up to count illustration references.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, count int) ([]string, error)
}

// Provider bundles the three collaborators.
type Provider struct {
	Name   string
	Text   ContentGenerator
	Speech SpeechSynthesizer
	Images ImageGenerator
}
