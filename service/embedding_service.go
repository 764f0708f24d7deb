package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/doqment/docqa-be/config"
)

// EmbeddingProvider is the boundary to an external embedding model: one call
// per bounded batch, vectors returned in input order. Providers may fail with
// a rate-limit-shaped error carrying a retry-after hint in its message.
type EmbeddingProvider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// IsRateLimitError reports whether err is the provider's throttling
	// signal, as opposed to a permanent failure.
	IsRateLimitError(err error) bool
}

// EmbeddingService partitions arbitrary-length text lists into fixed-size
// batches, calls the provider once per batch with an unconditional delay in
// between, and retries rate-limited batches honouring server retry-after
// hints. Batches run strictly sequentially; parallelizing them would defeat
// the backoff contract.
type EmbeddingService struct {
	provider     EmbeddingProvider
	batchSize    int
	batchDelay   time.Duration
	maxRetries   int
	backoffFloor time.Duration
	backoffCap   time.Duration
}

func NewEmbeddingService(provider EmbeddingProvider, cfg config.EmbeddingConfig) *EmbeddingService {
	return &EmbeddingService{
		provider:     provider,
		batchSize:    cfg.BatchSize,
		batchDelay:   cfg.BatchDelay,
		maxRetries:   cfg.MaxRetries,
		backoffFloor: cfg.BackoffFloor,
		backoffCap:   cfg.BackoffFloor,
	}
}

// GenerateEmbeddings embeds all texts, preserving order: output vector i
// corresponds to input text i. Empty input returns an empty slice without
// calling the provider.
func (s *EmbeddingService) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	if len(texts) == 0 {
		return vectors, nil
	}

	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		if start > 0 {
			// Steady-state spacing between batches to stay under the
			// provider's rate limits.
			if err := sleepCtx(ctx, s.batchDelay); err != nil {
				return nil, err
			}
		}

		batch, err := s.embedBatchWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// EmbedQuery embeds a single text.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	return vectors[0], nil
}

// embedBatchWithRetry retries rate-limited batches up to maxRetries times.
// The wait between attempts comes from the server's retry-after hint when one
// is parseable, otherwise exponential backoff from the provider floor.
// Non-rate-limit errors propagate immediately; exhausting retries is fatal
// for the indexing run.
func (s *EmbeddingService) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		vectors, err := s.provider.EmbedBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if !s.provider.IsRateLimitError(err) {
			return nil, err
		}
		lastErr = err

		if attempt == s.maxRetries-1 {
			break
		}
		wait := s.retryWait(err, attempt)
		log.Printf("Embedding batch rate-limited, retrying in %s (attempt %d/%d)", wait, attempt+1, s.maxRetries)
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("embedding rate limit retries exhausted: %v", lastErr)
}

func (s *EmbeddingService) retryWait(err error, attempt int) time.Duration {
	if hint, ok := parseRetryAfter(err.Error()); ok {
		return hint
	}
	wait := s.backoffFloor << attempt
	if wait > s.backoffCap {
		wait = s.backoffCap
	}
	return wait
}

// retryAfterPattern matches the numeric seconds in provider rate-limit
// messages like "Please retry after 26 seconds" or "try again in 12s".
var retryAfterPattern = regexp.MustCompile(`(?i)(?:retry after|try again in)\s*(\d+(?:\.\d+)?)`)

// parseRetryAfter extracts the seconds value from a retry-after hint in the
// error message.
func parseRetryAfter(msg string) (time.Duration, bool) {
	matches := retryAfterPattern.FindStringSubmatch(msg)
	if len(matches) != 2 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

// messageLooksRateLimited is the fallback detection shared by providers whose
// errors are not typed: rate-limit or quota wording in the message.
func messageLooksRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "quota")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
