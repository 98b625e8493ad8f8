package peripheral

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
)

// Watchdog is the liveness supervisor: the controller must Feed it within
// the timeout during any phase of a cycle, including blocking reconnection.
// A starved watchdog force-exits the process so the service manager
// restarts it with every in-memory slot (debounce, escalation,
// connectivity, suppression) reset to zero. Nothing is expected to survive
// the restart.
type Watchdog struct {
	timeout time.Duration
	fed     chan struct{}
	done    chan struct{}
	logger  *zap.Logger

	// exit is swapped out in tests.
	exit func(code int)
}

func NewWatchdog(timeout time.Duration, logger *zap.Logger) *Watchdog {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Watchdog{
		timeout: timeout,
		fed:     make(chan struct{}, 1),
		done:    make(chan struct{}),
		logger:  logger.With(zap.String("mod", "watchdog")),
		exit:    os.Exit,
	}
}

// Feed acknowledges liveness. Never blocks; safe to call from any phase.
func (w *Watchdog) Feed() {
	select {
	case w.fed <- struct{}{}:
	default:
	}
}

// Start runs the supervision loop until ctx is cancelled.
func (w *Watchdog) Start(ctx context.Context) {
	go w.loop(ctx)
}

func (w *Watchdog) loop(ctx context.Context) {
	defer close(w.done)

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.fed:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.timeout)
		case <-timer.C:
			w.logger.Error("liveness starved, forcing restart",
				zap.Duration("timeout", w.timeout))
			w.exit(2)
			return
		}
	}
}

// Stop waits for the supervision loop to exit after ctx cancellation.
func (w *Watchdog) Stop() { <-w.done }
