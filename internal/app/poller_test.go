package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCalculateBackoff(t *testing.T) {
	baseInterval := 2 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"one failure", 1, 4 * time.Second},
		{"two failures", 2, 8 * time.Second},
		{"three failures", 3, 16 * time.Second},
		{"four failures capped", 4, 30 * time.Second}, // Would be 32s, capped to 30s
		{"many failures capped", 10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, baseInterval)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, baseInterval, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_MaxCap(t *testing.T) {
	baseInterval := 2 * time.Second
	for failures := 0; failures <= 20; failures++ {
		got := calculateBackoff(failures, baseInterval)
		if got > maxBackoff {
			t.Errorf("calculateBackoff(%d, %v) = %v, exceeds maxBackoff %v", failures, baseInterval, got, maxBackoff)
		}
	}
}

func TestCalculateBackoff_LongIntervalKept(t *testing.T) {
	if got := calculateBackoff(3, time.Minute); got != time.Minute {
		t.Fatalf("calculateBackoff(3, 1m) = %v, want 1m", got)
	}
}

type countingRefresher struct {
	mu    sync.Mutex
	calls int
	err   error
	hit   chan struct{}
}

func (c *countingRefresher) RefreshActive(ctx context.Context) error {
	c.mu.Lock()
	c.calls++
	err := c.err
	c.mu.Unlock()
	select {
	case c.hit <- struct{}{}:
	default:
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("refresh without deadline")
	}
	return err
}

func TestStartPoller_RefreshesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &countingRefresher{hit: make(chan struct{}, 1)}

	done := StartPoller(ctx, r, 5*time.Millisecond, time.Second, nil)
	for i := 0; i < 3; i++ {
		select {
		case <-r.hit:
		case <-time.After(2 * time.Second):
			t.Fatalf("poller did not refresh (round %d)", i)
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after cancel")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls < 3 {
		t.Fatalf("calls = %d, want at least 3", r.calls)
	}
}
