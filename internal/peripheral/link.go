package peripheral

import (
	"context"
	"net"
	"time"

	"github.com/avast/retry-go/v5"
	"go.uber.org/zap"
)

// Link exposes the radio/network stack's health. The stack itself handles
// reassociation; Up is a cheap reachability probe and Reconnect waits, with
// bounded backoff, for the stack's own recovery to take effect.
type Link interface {
	Up(ctx context.Context) bool
	Reconnect(ctx context.Context) error
}

// ProbeLink checks the link by dialing a nearby TCP endpoint (typically the
// gateway or the directory host).
type ProbeLink struct {
	addr     string
	timeout  time.Duration
	attempts uint
	logger   *zap.Logger

	// OnAttempt is called before each reconnect probe so the caller can
	// feed the watchdog during the blocking wait. Optional.
	OnAttempt func()
}

func NewProbeLink(addr string, timeout time.Duration, logger *zap.Logger) *ProbeLink {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ProbeLink{
		addr:     addr,
		timeout:  timeout,
		attempts: 5,
		logger:   logger.With(zap.String("mod", "link"), zap.String("probe", addr)),
	}
}

func (l *ProbeLink) Up(_ context.Context) bool {
	conn, err := net.DialTimeout("tcp", l.addr, l.timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (l *ProbeLink) Reconnect(ctx context.Context) error {
	attempt := uint(0)
	return retry.New(
		retry.Context(ctx),
		retry.Attempts(l.attempts),
		retry.Delay(time.Second),
	).Do(func() error {
		attempt++
		if l.OnAttempt != nil {
			l.OnAttempt()
		}
		l.logger.Info("waiting for link", zap.Uint("attempt", attempt))

		conn, err := net.DialTimeout("tcp", l.addr, l.timeout)
		if err != nil {
			return err
		}
		_ = conn.Close()
		return nil
	})
}
