package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(retries int) Config {
	return Config{
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), nil, func(ctx context.Context) error {
		attempts++
		return nil
	})
	if err != nil {
		t.Fatalf("Do() returned error = %v, want nil", err)
	}
	if attempts != 1 {
		t.Fatalf("Do() made %d attempts, want 1", attempts)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), nil, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	if err != nil || attempts != 3 {
		t.Fatalf("expected success on third attempt, got err=%v attempts=%d", err, attempts)
	}
}

func TestDoPermanentError(t *testing.T) {
	attempts := 0
	boom := errors.New("bad secret")
	err := Do(context.Background(), fastConfig(3), nil, func(ctx context.Context) error {
		attempts++
		return Permanent(boom)
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Do() returned error = %v, want %v", err, boom)
	}
	if attempts != 1 {
		t.Fatalf("Do() made %d attempts, want 1", attempts)
	}
}

func TestDoMaxRetriesExceeded(t *testing.T) {
	attempts := 0
	flaky := errors.New("flaky")
	err := Do(context.Background(), fastConfig(2), nil, func(ctx context.Context) error {
		attempts++
		return flaky
	})
	if !errors.Is(err, flaky) {
		t.Fatalf("expected wrapped flaky error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("Do() made %d attempts, want 3", attempts)
	}
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxRetries: 5, InitialBackoff: time.Second, MaxBackoff: time.Second, Multiplier: 1}
	attempts := 0
	err := Do(ctx, cfg, nil, func(ctx context.Context) error {
		attempts++
		cancel()
		return errors.New("temporary")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}
