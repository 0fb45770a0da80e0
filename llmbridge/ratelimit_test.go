package llmbridge

import (
	"context"
	"testing"
	"time"
)

func TestAcquireUnconfiguredProviderIsNoOp(t *testing.T) {
	r := NewRateLimiter()

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := r.Acquire(context.Background(), "unknown", 1000); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("unmetered acquire should resolve immediately, took %v", elapsed)
	}
	if requests, _ := r.InWindow("unknown"); requests != 0 {
		t.Errorf("unmetered provider should record no usage, got %d", requests)
	}
}

func TestAcquireRecordsUsage(t *testing.T) {
	r := NewRateLimiter()
	r.SetLimit("openai", RateLimit{RequestCap: 10, TokenCap: 1000})

	for i := 0; i < 3; i++ {
		if err := r.Acquire(context.Background(), "openai", 100); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	requests, tokens := r.InWindow("openai")
	if requests != 3 || tokens != 300 {
		t.Errorf("expected 3 requests / 300 tokens, got %d / %d", requests, tokens)
	}
}

func TestAcquireNoOvercommit(t *testing.T) {
	window := 150 * time.Millisecond
	buffer := 10 * time.Millisecond
	r := NewRateLimiter(WithWindow(window), WithSafetyBuffer(buffer))
	r.SetLimit("openai", RateLimit{RequestCap: 2})

	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := r.Acquire(context.Background(), "openai", 10); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("first %d acquires should be immediate, took %v", 2, elapsed)
	}

	// The third admission must wait for the oldest entry to leave the window.
	if err := r.Acquire(context.Background(), "openai", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("over-capacity acquire resolved too early: %v", elapsed)
	}

	// And at no point may more than the cap be in the window.
	if requests, _ := r.InWindow("openai"); requests > 2 {
		t.Errorf("window holds %d entries, cap is 2", requests)
	}
}

func TestAcquireTokenCap(t *testing.T) {
	window := 120 * time.Millisecond
	r := NewRateLimiter(WithWindow(window), WithSafetyBuffer(5*time.Millisecond))
	r.SetLimit("anthropic", RateLimit{RequestCap: 100, TokenCap: 250})

	if err := r.Acquire(context.Background(), "anthropic", 200); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 200 + 100 > 250, so this waits for the window to clear.
	start := time.Now()
	if err := r.Acquire(context.Background(), "anthropic", 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("token-capped acquire resolved too early: %v", elapsed)
	}
}

func TestAcquireTokenCapDisabled(t *testing.T) {
	r := NewRateLimiter()
	r.SetLimit("ollama", RateLimit{RequestCap: 5, TokenCap: 0})

	// Huge token estimates are irrelevant without a token cap.
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := r.Acquire(context.Background(), "ollama", 1_000_000); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("token predicate should be disabled, took %v", elapsed)
	}
}

func TestWindowInvariantAfterExpiry(t *testing.T) {
	window := 60 * time.Millisecond
	r := NewRateLimiter(WithWindow(window), WithSafetyBuffer(5*time.Millisecond))
	r.SetLimit("openai", RateLimit{RequestCap: 3})

	for i := 0; i < 3; i++ {
		if err := r.Acquire(context.Background(), "openai", 10); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	time.Sleep(window + 20*time.Millisecond)

	// Expired entries no longer count toward any capacity decision.
	requests, tokens := r.InWindow("openai")
	if requests != 0 || tokens != 0 {
		t.Errorf("expected empty window after expiry, got %d requests / %d tokens", requests, tokens)
	}

	start := time.Now()
	if err := r.Acquire(context.Background(), "openai", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 30*time.Millisecond {
		t.Errorf("acquire after expiry should be immediate, took %v", elapsed)
	}
}

func TestAcquireCancellable(t *testing.T) {
	r := NewRateLimiter() // 60s window; a blocked acquire would wait a long time
	r.SetLimit("openai", RateLimit{RequestCap: 1})

	if err := r.Acquire(context.Background(), "openai", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := r.Acquire(ctx, "openai", 10)
	if err == nil {
		t.Fatal("expected context error")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("cancel did not interrupt capacity wait, took %v", elapsed)
	}
}

func TestConcurrentAcquiresRespectCap(t *testing.T) {
	window := 200 * time.Millisecond
	r := NewRateLimiter(WithWindow(window), WithSafetyBuffer(10*time.Millisecond))
	r.SetLimit("openai", RateLimit{RequestCap: 4})

	done := make(chan time.Duration, 8)
	start := time.Now()
	for i := 0; i < 8; i++ {
		go func() {
			if err := r.Acquire(context.Background(), "openai", 10); err != nil {
				done <- -1
				return
			}
			done <- time.Since(start)
		}()
	}

	immediate := 0
	for i := 0; i < 8; i++ {
		d := <-done
		if d < 0 {
			t.Fatal("acquire failed")
		}
		if d < window/2 {
			immediate++
		}
	}
	// Two concurrent callers must never both slip through on stale state.
	if immediate > 4 {
		t.Errorf("%d acquires resolved within the first window, cap is 4", immediate)
	}
}
