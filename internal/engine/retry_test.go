package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"arbcore/internal/model"
)

func transient(msg string) error {
	return fmt.Errorf("%w: %s", model.ErrTransientVenue, msg)
}

func TestRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	err := quoteRetryPolicy(3, time.Millisecond).do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return transient("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	sentinel := transient("down")
	err := quoteRetryPolicy(2, time.Millisecond).do(context.Background(), func(context.Context) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetrySkipsPermanentErrors(t *testing.T) {
	calls := 0
	err := quoteRetryPolicy(5, time.Millisecond).do(context.Background(), func(context.Context) error {
		calls++
		return fmt.Errorf("%w: pair mismatch", model.ErrValidation)
	})
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := quoteRetryPolicy(5, time.Hour).do(ctx, func(context.Context) error {
		calls++
		cancel()
		return transient("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryCapsBackoff(t *testing.T) {
	p := retryPolicy{retries: 3, baseDelay: time.Millisecond, maxDelay: 2 * time.Millisecond}
	started := time.Now()
	calls := 0
	_ = p.do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("down")
	})
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
	if took := time.Since(started); took > time.Second {
		t.Fatalf("backoff not capped, took %s", took)
	}
}
