// ABOUTME: Tests for provider selection, metrics instrumentation and fallback
// ABOUTME: A recording metrics fake captures generation outcomes

package generate

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/cultural-storyteller/internal/metrics"
)

type generationCall struct{ kind, result string }

type recordingMetrics struct {
	metrics.Nop
	calls []generationCall
}

func (r *recordingMetrics) RecordGeneration(kind, result string) {
	r.calls = append(r.calls, generationCall{kind, result})
}

func TestNew_SelectsProvider(t *testing.T) {
	p, err := New(Config{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderStub, p.Name)

	p, err = New(Config{Provider: ProviderOpenAI}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderStub, p.Name, "no api key falls back to stub")

	p, err = New(Config{Provider: ProviderOpenAI, OpenAI: OpenAIConfig{APIKey: "k", MediaDir: t.TempDir()}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Name)

	_, err = New(Config{Provider: "elevenlabs"}, nil, nil)
	assert.Error(t, err)
}

func TestNew_RecordsMetrics(t *testing.T) {
	rec := &recordingMetrics{}
	p, err := New(Config{Provider: ProviderStub}, rec, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = p.Text.Generate(ctx, Prompt{Text: "x"})
	require.NoError(t, err)
	_, err = p.Speech.Synthesize(ctx, "text", DefaultVoice, 9)
	require.Error(t, err)
	_, err = p.Images.Generate(ctx, "x", 2)
	require.NoError(t, err)

	assert.Equal(t, []generationCall{
		{"content", "ok"},
		{"speech", "error"},
		{"image", "ok"},
	}, rec.calls)
}

func TestNew_CollectorSatisfiesRecorder(t *testing.T) {
	_, err := New(Config{}, metrics.NewCollector(prometheus.NewRegistry()), nil)
	assert.NoError(t, err)
}

func TestWithFallback_ServesStubOnFailure(t *testing.T) {
	fake := &fakeOpenAI{chatContent: "garbage", failImages: true}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	p, err := New(Config{
		Provider:        ProviderOpenAI,
		FallbackOnError: true,
		OpenAI:          OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1", MediaDir: t.TempDir()},
	}, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	out, err := p.Text.Generate(ctx, Prompt{Text: "a king", Type: "Mythology Retelling"})
	require.NoError(t, err)
	assert.Equal(t, "The Test of Hanuman's Devotion", out.Title)

	urls, err := p.Images.Generate(ctx, "a king", 2)
	require.NoError(t, err)
	assert.Len(t, urls, 2)

	_, err = p.Text.Generate(ctx, Prompt{Text: ""})
	assert.ErrorIs(t, err, ErrEmptyInput, "validation errors are not masked")

	_, err = p.Speech.Synthesize(ctx, "hello", DefaultVoice, 0.1)
	assert.ErrorIs(t, err, ErrSynthesis)
}
