package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ostium-io/ostium/internal/diag"
	"github.com/ostium-io/ostium/internal/ostium/service"
	"github.com/ostium-io/ostium/internal/ostium/types"
)

// fakeClock hands out a controllable instant so window decisions and
// suppression timing are deterministic.
type fakeClock struct {
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
func (c *fakeClock) Set(t time.Time)         { c.now = t }

// recordingJournal captures local journal writes in memory.
type recordingJournal struct {
	cycles []diag.CycleEntry
	faults []types.FaultRecord
	err    error
}

func (j *recordingJournal) AppendCycle(_ context.Context, e diag.CycleEntry) error {
	if j.err != nil {
		return j.err
	}
	j.cycles = append(j.cycles, e)
	return nil
}

func (j *recordingJournal) AppendFault(_ context.Context, rec types.FaultRecord) error {
	if j.err != nil {
		return j.err
	}
	j.faults = append(j.faults, rec)
	return nil
}

// shownLine is one display update.
type shownLine struct {
	Line1 string
	Line2 string
}

type recordingDisplay struct {
	shown []shownLine
}

func (d *recordingDisplay) Show(line1, line2 string, _ time.Duration) {
	d.shown = append(d.shown, shownLine{Line1: line1, Line2: line2})
}

func (d *recordingDisplay) last(t *testing.T) shownLine {
	t.Helper()
	if len(d.shown) == 0 {
		t.Fatal("nothing was displayed")
	}
	return d.shown[len(d.shown)-1]
}

// fakeLink scripts the network probe.
type fakeLink struct {
	up           bool
	reconnectErr error
	reconnects   int
}

func (l *fakeLink) Up(_ context.Context) bool { return l.up }

func (l *fakeLink) Reconnect(_ context.Context) error {
	l.reconnects++
	if l.reconnectErr != nil {
		return l.reconnectErr
	}
	l.up = true
	return nil
}

func newTestMetrics() *service.Metrics {
	return service.NewMetrics(prometheus.NewRegistry())
}

func nopLogger() *zap.Logger { return zap.NewNop() }
