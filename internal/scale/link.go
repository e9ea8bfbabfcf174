package scale

import (
	"context"
	"fmt"
	"time"

	"github.com/tarm/serial"

	"weigh_station/internal/config"
)

const defaultReadTimeout = 250 * time.Millisecond

// Link owns one open serial handle. Read honors the configured timeout, so
// the owning goroutine can poll its context between reads.
type Link struct {
	Port string
	Baud int
	port *serial.Port
}

// Open connects at the primary rate. When that fails for anything other than
// a busy port it runs the indicator's wake cycle first: open once at the
// reset rate, close, wait a second, then retry the primary rate. The E550
// stops answering after an unclean close until this cycle runs.
func Open(ctx context.Context, name string, cfg config.Scale) (*Link, error) {
	port, err := openPort(name, cfg.Baud, cfg.ReadTimeout)
	if err == nil {
		return &Link{Port: name, Baud: cfg.Baud, port: port}, nil
	}
	if isBusyErr(err) {
		return nil, fmt.Errorf("%w: %s", ErrPortBusy, name)
	}

	if reset, rerr := openPort(name, cfg.ResetBaud, cfg.ReadTimeout); rerr == nil {
		_ = reset.Close()
		if !sleepWithContext(ctx, time.Second) {
			return nil, ctx.Err()
		}
		if port, err = openPort(name, cfg.Baud, cfg.ReadTimeout); err == nil {
			return &Link{Port: name, Baud: cfg.Baud, port: port}, nil
		}
	}

	return nil, fmt.Errorf("open %s @ %d: %w", name, cfg.Baud, err)
}

func openPort(name string, baud int, readTimeout time.Duration) (*serial.Port, error) {
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	return serial.OpenPort(&serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout})
}

// Read fills p with received bytes. n == 0 with a nil error means the read
// timed out with nothing received.
func (l *Link) Read(p []byte) (int, error) {
	return l.port.Read(p)
}

// Close releases the port.
func (l *Link) Close() error {
	return l.port.Close()
}
