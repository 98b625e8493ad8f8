package peripheral

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

// newTestWatchdog swaps the process exit for a channel send.
func newTestWatchdog(timeout time.Duration) (*Watchdog, chan int) {
	w := NewWatchdog(timeout, zap.NewNop())
	exited := make(chan int, 1)
	w.exit = func(code int) { exited <- code }
	return w, exited
}

func TestWatchdog_StarvationForcesExit(t *testing.T) {
	w, exited := newTestWatchdog(50 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.Start(ctx)
	select {
	case code := <-exited:
		if code == 0 {
			t.Errorf("expected a non-zero exit code, got %d", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("starved watchdog never fired")
	}
}

func TestWatchdog_FeedingKeepsProcessAlive(t *testing.T) {
	w, exited := newTestWatchdog(100 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.Start(ctx)
	deadline := time.After(400 * time.Millisecond)
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.Feed()
		case code := <-exited:
			t.Fatalf("fed watchdog fired with code %d", code)
		case <-deadline:
			return
		}
	}
}

func TestWatchdog_CancelStopsCleanly(t *testing.T) {
	w, exited := newTestWatchdog(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	w.Start(ctx)
	cancel()
	w.Stop()

	select {
	case code := <-exited:
		t.Fatalf("cancelled watchdog fired with code %d", code)
	default:
	}
}
