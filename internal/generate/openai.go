// ABOUTME: OpenAI-backed providers for story drafting, narration and illustrations
// ABOUTME: Narration audio is written to the media directory and referenced by relative path

package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

const systemPromptTemplate = `You are a master storyteller specializing in cultural and traditional stories from India.
Create a %s story in %s writing style.
The story should be approximately %s and incorporate %s cultural elements.
Make the story engaging, culturally authentic, and appropriate for preservation of cultural heritage.
Include moral lessons or wisdom typical of traditional Indian storytelling.`

const userPromptTemplate = `Create a story based on this prompt: %s

Respond with a JSON object with exactly these fields:
{"title": "Story Title", "description": "Brief story description", "content": "Full story content with proper paragraphs"}`

// openAIVoices maps narration personalities onto the TTS voices.
var openAIVoices = map[string]openai.SpeechVoice{
	"Wise Elder":           openai.VoiceOnyx,
	"Royal Narrator":       openai.VoiceFable,
	"Dramatic Storyteller": openai.VoiceEcho,
	"Gentle Grandmother":   openai.VoiceShimmer,
	"Heroic Warrior":       openai.VoiceOnyx,
	"Playful Youth":        openai.VoiceNova,
	"Mystical Sage":        openai.VoiceAlloy,
}

// OpenAIConfig configures the OpenAI providers.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ChatModel   string
	ImageModel  string
	ImageSize   string
	SpeechModel string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	MediaDir    string
}

func (c *OpenAIConfig) applyDefaults() {
	if c.ChatModel == "" {
		c.ChatModel = openai.GPT4oMini
	}
	if c.ImageModel == "" {
		c.ImageModel = openai.CreateImageModelDallE2
	}
	if c.ImageSize == "" {
		c.ImageSize = openai.CreateImageSize1024x1024
	}
	if c.SpeechModel == "" {
		c.SpeechModel = string(openai.TTSModel1)
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4000
	}
	if c.Temperature == 0 {
		c.Temperature = 0.8
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

// NewOpenAI builds a provider whose three collaborators share one API client.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	if cfg.MediaDir == "" {
		return nil, fmt.Errorf("openai: media directory is required")
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	client := openai.NewClientWithConfig(clientConfig)

	logger = logger.With("component", "openai")
	return &Provider{
		Name:   "openai",
		Text:   &openAIWriter{client: client, cfg: cfg, logger: logger},
		Speech: &openAINarrator{client: client, cfg: cfg, logger: logger},
		Images: &openAIIllustrator{client: client, cfg: cfg, logger: logger},
	}, nil
}

type openAIWriter struct {
	client *openai.Client
	cfg    OpenAIConfig
	logger *slog.Logger
}

func (w *openAIWriter) Generate(ctx context.Context, p Prompt) (*Generated, error) {
	if strings.TrimSpace(p.Text) == "" {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, ErrEmptyInput)
	}
	storyType := p.Type
	if storyType == "" {
		storyType = DefaultStoryType
	}
	culture := p.Context
	if culture == "" {
		culture = "Indian"
	}

	resp, err := w.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: w.cfg.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(systemPromptTemplate, storyType, p.Style, p.Length, culture)},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(userPromptTemplate, p.Text)},
		},
		MaxTokens:   w.cfg.MaxTokens,
		Temperature: w.cfg.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: chat completion: %w", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrGeneration)
	}

	raw := stripCodeFence(resp.Choices[0].Message.Content)
	var out Generated
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%w: decoding story: %w", ErrGeneration, err)
	}
	if out.Title == "" || out.Content == "" {
		return nil, fmt.Errorf("%w: story missing title or content", ErrGeneration)
	}
	w.logger.Debug("story generated", "type", storyType, "tokens", resp.Usage.TotalTokens)
	return &out, nil
}

// stripCodeFence removes a ```json wrapper some models add despite JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

type openAINarrator struct {
	client *openai.Client
	cfg    OpenAIConfig
	logger *slog.Logger
}

func (n *openAINarrator) Synthesize(ctx context.Context, text, voice string, speed float64) (AudioHandle, error) {
	v, err := checkSpeech(text, voice, speed)
	if err != nil {
		return "", err
	}

	resp, err := n.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(n.cfg.SpeechModel),
		Input:          text,
		Voice:          openAIVoices[v.Name],
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          speed,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	defer func() { _ = resp.Close() }()

	rel := filepath.Join("audio", uuid.NewString()+".mp3")
	path := filepath.Join(n.cfg.MediaDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("%w: creating audio dir: %w", ErrSynthesis, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: creating audio file: %w", ErrSynthesis, err)
	}
	written, copyErr := io.Copy(f, resp)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(path)
		if copyErr == nil {
			copyErr = closeErr
		}
		return "", fmt.Errorf("%w: writing audio: %w", ErrSynthesis, copyErr)
	}

	n.logger.Info("narration synthesized", "voice", v.Name, "bytes", written, "file", rel)
	return AudioHandle(filepath.ToSlash(rel)), nil
}

type openAIIllustrator struct {
	client *openai.Client
	cfg    OpenAIConfig
	logger *slog.Logger
}

func (i *openAIIllustrator) Generate(ctx context.Context, prompt string, count int) ([]string, error) {
	if count <= 0 {
		return []string{}, nil
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, ErrEmptyInput)
	}

	resp, err := i.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         "Traditional Indian cultural art illustration: " + prompt,
		Model:          i.cfg.ImageModel,
		N:              count,
		Size:           i.cfg.ImageSize,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create image: %w", ErrGeneration, err)
	}

	urls := make([]string, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.URL != "" {
			urls = append(urls, d.URL)
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: no images returned", ErrGeneration)
	}
	if len(urls) > count {
		urls = urls[:count]
	}
	return urls, nil
}
