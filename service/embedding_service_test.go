package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doqment/docqa-be/config"
)

// fakeEmbeddingProvider returns a per-text deterministic vector and can be
// programmed to fail a number of times first.
type fakeEmbeddingProvider struct {
	calls     [][]string
	failTimes int
	failWith  error
}

func (f *fakeEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, append([]string(nil), texts...))
	if f.failTimes > 0 {
		f.failTimes--
		return nil, f.failWith
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), float32(text[0])}
	}
	return vectors, nil
}

func (f *fakeEmbeddingProvider) IsRateLimitError(err error) bool {
	return messageLooksRateLimited(err)
}

func testEmbeddingConfig() config.EmbeddingConfig {
	return config.EmbeddingConfig{
		BatchSize:    16,
		BatchDelay:   time.Millisecond,
		MaxRetries:   5,
		BackoffFloor: time.Millisecond,
	}
}

func TestGenerateEmbeddingsEmptyInput(t *testing.T) {
	provider := &fakeEmbeddingProvider{}
	embedder := NewEmbeddingService(provider, testEmbeddingConfig())

	vectors, err := embedder.GenerateEmbeddings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Empty(t, provider.calls, "no provider call for empty input")
}

func TestGenerateEmbeddingsSplitsBatchesPreservingOrder(t *testing.T) {
	provider := &fakeEmbeddingProvider{}
	embedder := NewEmbeddingService(provider, testEmbeddingConfig())

	texts := make([]string, 20)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%02d%s", i, strings.Repeat("x", i))
	}

	vectors, err := embedder.GenerateEmbeddings(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 20)

	require.Len(t, provider.calls, 2)
	assert.Len(t, provider.calls[0], 16)
	assert.Len(t, provider.calls[1], 4)

	for i, text := range texts {
		assert.Equal(t, []float32{float32(len(text)), float32(text[0])}, vectors[i], "vector %d must match input %d", i, i)
	}
}

func TestGenerateEmbeddingsRetriesRateLimit(t *testing.T) {
	provider := &fakeEmbeddingProvider{
		failTimes: 2,
		failWith:  errors.New("429 too many requests, please retry after 0 seconds"),
	}
	embedder := NewEmbeddingService(provider, testEmbeddingConfig())

	vectors, err := embedder.GenerateEmbeddings(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	assert.Len(t, provider.calls, 3, "two rate-limited attempts plus the success")
}

func TestGenerateEmbeddingsExhaustsRetries(t *testing.T) {
	provider := &fakeEmbeddingProvider{
		failTimes: 100,
		failWith:  errors.New("rate limit exceeded, try again in 0s"),
	}
	embedder := NewEmbeddingService(provider, testEmbeddingConfig())

	_, err := embedder.GenerateEmbeddings(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries exhausted")
	assert.Len(t, provider.calls, 5)
}

func TestGenerateEmbeddingsFatalErrorNotRetried(t *testing.T) {
	provider := &fakeEmbeddingProvider{
		failTimes: 100,
		failWith:  errors.New("invalid api key"),
	}
	embedder := NewEmbeddingService(provider, testEmbeddingConfig())

	_, err := embedder.GenerateEmbeddings(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Len(t, provider.calls, 1, "non-rate-limit errors propagate immediately")
}

func TestEmbedQuery(t *testing.T) {
	provider := &fakeEmbeddingProvider{}
	embedder := NewEmbeddingService(provider, testEmbeddingConfig())

	vector, err := embedder.EmbedQuery(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, []float32{8, 'q'}, vector)
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		msg  string
		want time.Duration
		ok   bool
	}{
		{"Rate limit reached. Please retry after 26 seconds.", 26 * time.Second, true},
		{"quota exceeded, try again in 3.5s", 3500 * time.Millisecond, true},
		{"Retry After 60", 60 * time.Second, true},
		{"too many requests", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseRetryAfter(tt.msg)
		assert.Equal(t, tt.ok, ok, tt.msg)
		assert.Equal(t, tt.want, got, tt.msg)
	}
}
