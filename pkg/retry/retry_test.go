package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(maxRetries int) *Config {
	return &Config{
		MaxRetries:   maxRetries,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("expected MaxRetries=3, got %d", cfg.MaxRetries)
	}
	if cfg.InitialDelay != 100*time.Millisecond {
		t.Errorf("expected InitialDelay=100ms, got %v", cfg.InitialDelay)
	}
	if cfg.JitterFactor != 0.1 {
		t.Errorf("expected JitterFactor=0.1, got %f", cfg.JitterFactor)
	}
}

func TestDo_Success(t *testing.T) {
	callCount := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	callCount := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestDo_MaxRetriesExhausted(t *testing.T) {
	expectedErr := errors.New("persistent error")
	callCount := 0
	err := Do(context.Background(), fastConfig(2), func() error {
		callCount++
		return expectedErr
	})

	if err != expectedErr {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	// MaxRetries=2 means: initial attempt + 2 retries = 3 total calls
	if callCount != 3 {
		t.Errorf("expected 3 calls (1 initial + 2 retries), got %d", callCount)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{
		MaxRetries:   5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	callCount := 0
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, cfg, func() error {
		callCount++
		return errors.New("error")
	})

	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", callCount)
	}
}

func TestDo_NilConfig(t *testing.T) {
	callCount := 0
	err := Do(context.Background(), nil, func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("expected no error with nil config, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestApplyJitter_Bounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		jittered := applyJitter(base, 0.1)
		if jittered < 90*time.Millisecond || jittered > 110*time.Millisecond {
			t.Fatalf("jittered delay %v outside +/-10%% of %v", jittered, base)
		}
	}

	if applyJitter(base, 0) != base {
		t.Error("zero jitter factor should leave delay unchanged")
	}
}

func TestDoIfRetryable_NonRetryableShortCircuits(t *testing.T) {
	expectedErr := errors.New("authentication failed")
	callCount := 0
	err := DoIfRetryable(context.Background(), fastConfig(3), func() error {
		callCount++
		return expectedErr
	})

	if err != expectedErr {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call (no retries), got %d", callCount)
	}
}

func TestDoIfRetryable_RetryableError(t *testing.T) {
	callCount := 0
	err := DoIfRetryable(context.Background(), fastConfig(3), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("connection timeout")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

// typedError exercises the RetryableError interface path, which takes
// precedence over string matching.
type typedError struct {
	retryable bool
}

func (e *typedError) Error() string     { return "typed failure" }
func (e *typedError) IsRetryable() bool { return e.retryable }

func TestDoIfRetryable_TypedErrors(t *testing.T) {
	callCount := 0
	err := DoIfRetryable(context.Background(), fastConfig(2), func() error {
		callCount++
		return &typedError{retryable: true}
	})
	if err == nil {
		t.Error("expected error after exhausting retries")
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls for retryable typed error, got %d", callCount)
	}

	callCount = 0
	err = DoIfRetryable(context.Background(), fastConfig(2), func() error {
		callCount++
		return &typedError{retryable: false}
	})
	if err == nil {
		t.Error("expected error")
	}
	if callCount != 1 {
		t.Errorf("expected 1 call for non-retryable typed error, got %d", callCount)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("connection refused"), true},
		{"Connection Refused (uppercase)", errors.New("Connection Refused"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"timeout", errors.New("context deadline exceeded: timeout"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"http 503", errors.New("unexpected status 503"), true},
		{"typed retryable", &typedError{retryable: true}, true},
		{"typed non-retryable", &typedError{retryable: false}, false},
		{"auth error", errors.New("authentication failed"), false},
		{"invalid input", errors.New("invalid request payload"), false},
		{"not found", errors.New("item not found"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable(%v) = %v, expected %v", tt.err, got, tt.expected)
			}
		})
	}
}
