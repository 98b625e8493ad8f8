// Package peripheral wraps the controller's external collaborators: the
// credential reader, the feedback display, the network link, and the
// liveness watchdog. Implementations talk to device files and sockets
// directly; everything the decision core touches is an interface so tests
// can substitute fakes.
package peripheral

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Reader delivers raw credential identifiers from the physical reader
// peripheral, one per presentation.
type Reader interface {
	// Next blocks until a credential is presented or ctx is cancelled.
	Next(ctx context.Context) (string, error)
}

// readerPollInterval caps how long a Next call can sit in a blocking read
// before re-checking ctx. Keeps the controller loop responsive to shutdown
// and lets the caller feed the watchdog between polls.
const readerPollInterval = 500 * time.Millisecond

// SerialReader reads newline-terminated identifiers from a serial device
// file (the reader module writes one line per badge presentation).
type SerialReader struct {
	f      *os.File
	buf    []byte
	poll   time.Duration
	logger *zap.Logger

	// OnPoll is called on every poll timeout while the door is idle, so
	// the caller can feed the watchdog however long Next blocks. Optional.
	OnPoll func()
}

// OpenSerialReader opens the reader device. An unavailable device at
// startup is a fatal initialization fault; callers must halt rather than
// run without a reader.
func OpenSerialReader(path string, logger *zap.Logger) (*SerialReader, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open reader device %s: %w", path, err)
	}
	return &SerialReader{
		f:      f,
		poll:   readerPollInterval,
		logger: logger.With(zap.String("mod", "reader"), zap.String("device", path)),
	}, nil
}

func (r *SerialReader) Next(ctx context.Context) (string, error) {
	poll := r.poll
	if poll <= 0 {
		poll = readerPollInterval
	}
	one := make([]byte, 1)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := r.f.SetReadDeadline(time.Now().Add(poll)); err != nil {
			return "", fmt.Errorf("reader deadline: %w", err)
		}

		n, err := r.f.Read(one)
		if n == 1 {
			if one[0] == '\n' || one[0] == '\r' {
				line := strings.TrimSpace(string(r.buf))
				r.buf = r.buf[:0]
				if line != "" {
					return line, nil
				}
				continue
			}
			r.buf = append(r.buf, one[0])
			continue
		}
		if err != nil {
			if !os.IsTimeout(err) {
				return "", fmt.Errorf("reader: %w", err)
			}
			if r.OnPoll != nil {
				r.OnPoll()
			}
		}
	}
}

func (r *SerialReader) Close() error { return r.f.Close() }
