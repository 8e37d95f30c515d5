package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetcherConcurrencyBound(t *testing.T) {
	fetcher := NewFetcher(2, 0, time.Millisecond)

	var inFlight, peak int32
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = fetcher.Do(context.Background(), func(ctx context.Context) error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}()
	}

	wg.Wait()

	if got := atomic.LoadInt32(&peak); got > 2 {
		t.Errorf("Expected at most 2 concurrent calls, observed %d", got)
	}
}

func TestFetcherRetriesRetryableErrors(t *testing.T) {
	fetcher := NewFetcher(1, 3, time.Millisecond)

	var calls int
	err := fetcher.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("quota: %w", ErrRateLimited)
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Expected success after retries, got %s", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestFetcherExhaustsRetries(t *testing.T) {
	fetcher := NewFetcher(1, 3, time.Millisecond)

	var calls int
	err := fetcher.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fmt.Errorf("upstream: %w", ErrTransient)
	})

	if !errors.Is(err, ErrTransient) {
		t.Errorf("Expected ErrTransient after exhaustion, got %v", err)
	}
	if calls != 4 {
		t.Errorf("Expected initial call plus 3 retries, got %d calls", calls)
	}
}

func TestFetcherDoesNotRetryOtherErrors(t *testing.T) {
	fetcher := NewFetcher(1, 3, time.Millisecond)

	var calls int
	err := fetcher.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("bad request")
	})

	if err == nil {
		t.Fatal("Expected error")
	}
	if calls != 1 {
		t.Errorf("Expected single call for a non-retryable error, got %d", calls)
	}
}

func TestFetcherHonorsContextDuringBackoff(t *testing.T) {
	fetcher := NewFetcher(1, 3, time.Second)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- fetcher.Do(ctx, func(ctx context.Context) error {
			return ErrTransient
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected cancellation to interrupt the backoff sleep")
	}
}

func TestFetcherHonorsContextWhileQueued(t *testing.T) {
	fetcher := NewFetcher(1, 0, time.Millisecond)

	release := make(chan struct{})
	go func() {
		_ = fetcher.Do(context.Background(), func(ctx context.Context) error {
			<-release
			return nil
		})
	}()

	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := fetcher.Do(ctx, func(ctx context.Context) error { return nil })
	close(release)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error while waiting for a slot, got %v", err)
	}
}
