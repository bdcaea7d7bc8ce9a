package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
)

func TestWithRetryRecovers(t *testing.T) {
	attempts := 0
	notified := 0
	got, err := withRetry(context.Background(), 2, time.Millisecond, func(error, time.Duration) { notified++ }, func(context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("rpc unavailable")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 || attempts != 3 || notified != 2 {
		t.Fatalf("got=%d attempts=%d notified=%d", got, attempts, notified)
	}
}

func TestWithRetryGivesUp(t *testing.T) {
	attempts := 0
	rpcErr := errors.New("rpc unavailable")
	_, err := withRetry(context.Background(), 1, time.Millisecond, nil, func(context.Context) (int, error) {
		attempts++
		return 0, rpcErr
	})
	if !errors.Is(err, rpcErr) {
		t.Fatalf("expected rpc error, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts=%d", attempts)
	}
}

func TestWithRetryPermanent(t *testing.T) {
	attempts := 0
	badRange := errors.New("bad range")
	_, err := withRetry(context.Background(), 5, time.Millisecond, nil, func(context.Context) (int, error) {
		attempts++
		return 0, backoff.Permanent(badRange)
	})
	if !errors.Is(err, badRange) {
		t.Fatalf("expected bad range, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts=%d", attempts)
	}
}
