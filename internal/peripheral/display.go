package peripheral

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// Display is the two-line visual feedback peripheral. Show is
// fire-and-forget: there is no acknowledgment and the controller never
// reads display state back.
type Display interface {
	Show(line1, line2 string, hold time.Duration)
}

// SerialDisplay frames show commands onto a serial device file. The display
// module consumes STX line1 US line2 US holdMs ETX frames.
type SerialDisplay struct {
	f      *os.File
	logger *zap.Logger
}

func OpenSerialDisplay(path string, logger *zap.Logger) (*SerialDisplay, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open display device %s: %w", path, err)
	}
	return &SerialDisplay{
		f:      f,
		logger: logger.With(zap.String("mod", "display"), zap.String("device", path)),
	}, nil
}

func (d *SerialDisplay) Show(line1, line2 string, hold time.Duration) {
	frame := fmt.Sprintf("\x02%s\x1f%s\x1f%d\x03", line1, line2, hold.Milliseconds())
	if _, err := d.f.WriteString(frame); err != nil {
		// Fire-and-forget: a lost frame is not worth a fault.
		d.logger.Debug("display write failed", zap.Error(err))
	}
}

func (d *SerialDisplay) Close() error { return d.f.Close() }

// LogDisplay renders show commands into the logger. Dev environments and
// the export host run without a physical display.
type LogDisplay struct {
	logger *zap.Logger
}

func NewLogDisplay(logger *zap.Logger) *LogDisplay {
	return &LogDisplay{logger: logger.With(zap.String("mod", "display"))}
}

func (d *LogDisplay) Show(line1, line2 string, hold time.Duration) {
	d.logger.Info("display",
		zap.String("line1", line1),
		zap.String("line2", line2),
		zap.Duration("hold", hold),
	)
}
