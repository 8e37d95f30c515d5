package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// Fetcher bounds the number of concurrent provider requests with a counting
// semaphore and retries retryable failures with exponential backoff plus
// jitter. Headroom is intentionally smaller than the keyword fan-out so a
// provider never sees the whole batch at once.
type Fetcher struct {
	sem        chan struct{}
	maxRetries int
	baseDelay  time.Duration
}

func NewFetcher(concurrency, maxRetries int, baseDelay time.Duration) *Fetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}

	return &Fetcher{
		sem:        make(chan struct{}, concurrency),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// Do runs fn under the concurrency cap. ErrRateLimited and ErrTransient
// results are retried up to maxRetries times; any other error returns
// immediately. The semaphore is held across retries so backing-off requests
// still count against the cap.
func (f *Fetcher) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case f.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-f.sem }()

	var lastErr error

	for attempt := 0; ; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt >= f.maxRetries {
			return fmt.Errorf("giving up after %d retries: %w", f.maxRetries, lastErr)
		}

		delay := f.backoff(attempt)
		slog.Debug("Retrying provider request", "attempt", attempt+1, "delay", delay, "error", lastErr)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	delay := f.baseDelay * (1 << attempt)
	jitter := time.Duration(rand.Int63n(int64(f.baseDelay)))
	return delay + jitter
}

func isRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}
