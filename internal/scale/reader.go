package scale

import (
	"context"
	"sync"
	"time"

	"weigh_station/internal/config"
	"weigh_station/internal/events"
	"weigh_station/internal/logger"
	"weigh_station/internal/metrics"
	"weigh_station/internal/models"
)

// maxPendingBytes bounds the unparsed tail kept between reads.
const maxPendingBytes = 1024

const initialBackoff = time.Second

// Reader is the acquisition task: it discovers the scale, keeps the link
// open across disconnects, feeds frames through the parser and detector, and
// publishes every reading on the bus. Nothing is buffered across a
// disconnect; the pipeline returns to "no data" until the link is back.
type Reader struct {
	store    *config.Store
	parser   FrameParser
	detector *Detector
	bus      *events.Bus
	log      *logger.Logger

	mu        sync.RWMutex
	conn      models.Connection
	sample    *models.WeightSample
	stability models.StabilityState
}

// NewReader wires the acquisition task. Run must be started by the caller.
func NewReader(store *config.Store, parser FrameParser, detector *Detector, bus *events.Bus, log *logger.Logger) *Reader {
	return &Reader{
		store:    store,
		parser:   parser,
		detector: detector,
		bus:      bus,
		log:      log.Named("scale"),
	}
}

// Run drives discovery, connection, and streaming until ctx is done.
// Reconnects use exponential backoff starting at one second, capped by
// scale.reconnect_max_backoff, and reset after every successful connect.
func (r *Reader) Run(ctx context.Context) {
	backoff := initialBackoff
	for ctx.Err() == nil {
		snap := r.store.Snapshot()

		link, err := r.connect(ctx, snap)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			r.log.Warnw("scale connect failed", "error", err)
			r.setConnection(models.ConnDisconnected, "", 0, err.Error())
			metrics.ReconnectsTotal.Inc()
			if !sleepWithContext(ctx, backoff) {
				break
			}
			backoff = nextBackoff(backoff, snap.Scale.MaxBackoff)
			continue
		}

		backoff = initialBackoff
		metrics.ScaleConnected.Set(1)
		r.setConnection(models.ConnConnected, link.Port, link.Baud, "")
		r.log.Infow("scale connected", "port", link.Port, "baud", link.Baud)

		streamErr := r.stream(ctx, link)
		_ = link.Close()
		metrics.ScaleConnected.Set(0)
		r.dropReading()

		if ctx.Err() != nil {
			r.setConnection(models.ConnDisconnected, link.Port, link.Baud, "")
			break
		}

		r.log.Warnw("scale link lost", "port", link.Port, "error", streamErr)
		r.setConnection(models.ConnDisconnected, link.Port, link.Baud, streamErr.Error())
		metrics.ReconnectsTotal.Inc()
		if !sleepWithContext(ctx, backoff) {
			break
		}
		backoff = nextBackoff(backoff, snap.Scale.MaxBackoff)
	}

	r.log.Infow("scale reader stopped")
}

// connect discovers candidates and opens the first that yields a link.
func (r *Reader) connect(ctx context.Context, snap config.Snapshot) (*Link, error) {
	r.setConnection(models.ConnConnecting, snap.Device.SerialPort, snap.Scale.Baud, "")

	candidates, err := Discover(snap.Device.SerialPort)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, name := range candidates {
		link, err := Open(ctx, name, snap.Scale)
		if err == nil {
			return link, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.log.Debugw("port open failed", "port", name, "error", err)
		lastErr = err
	}
	return nil, lastErr
}

// stream reads the link until an I/O error or cancellation. A nil return
// means ctx ended; anything else is the link-lost cause.
func (r *Reader) stream(ctx context.Context, link *Link) error {
	buf := make([]byte, 256)
	var pending []byte

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := link.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}

		pending = appendBounded(pending, buf[:n], maxPendingBytes)
		for {
			frame, rest, ok := r.parser.Next(pending)
			if !ok {
				pending = rest
				break
			}
			pending = rest

			metrics.FramesTotal.Inc()
			sample, err := r.parser.Decode(frame)
			if err != nil {
				metrics.FrameErrorsTotal.Inc()
				r.log.Debugw("frame rejected", "error", err, "raw", sanitizeInline(frame, 48))
				continue
			}
			r.publishSample(sample)
		}
	}
}

func (r *Reader) publishSample(s models.WeightSample) {
	state := r.detector.Observe(s)

	r.mu.Lock()
	prevStable := r.stability.IsStable
	r.sample = &s
	r.stability = state
	r.mu.Unlock()

	metrics.CurrentWeight.Set(s.ValueKg)
	metrics.WeightStable.Set(boolGauge(state.IsStable))

	r.bus.Publish(events.Event{Type: events.TypeReading, At: s.CapturedAt, Data: s})
	if state.IsStable != prevStable {
		r.bus.Publish(events.Event{Type: events.TypeStability, At: s.CapturedAt, Data: state})
		r.log.Infow("stability changed", "stable", state.IsStable, "weight_kg", state.CurrentValue)
	}
}

// dropReading forgets the live sample and stability window after a
// disconnect. The window that existed before the drop is never resumed.
func (r *Reader) dropReading() {
	r.detector.Reset()

	r.mu.Lock()
	wasStable := r.stability.IsStable
	r.sample = nil
	r.stability = models.StabilityState{}
	r.mu.Unlock()

	metrics.CurrentWeight.Set(0)
	metrics.WeightStable.Set(0)
	if wasStable {
		r.bus.Publish(events.Event{Type: events.TypeStability, Data: models.StabilityState{}})
	}
}

func (r *Reader) setConnection(status, port string, baud int, detail string) {
	r.mu.Lock()
	changed := r.conn.Status != status || r.conn.PortName != port || r.conn.LastError != detail
	r.conn = models.Connection{
		PortName:  port,
		BaudRate:  baud,
		Status:    status,
		LastError: detail,
		UpdatedAt: time.Now(),
	}
	conn := r.conn
	r.mu.Unlock()

	if changed {
		r.bus.Publish(events.Event{Type: events.TypeConnection, Data: conn})
	}
}

// Status returns the live view served to display collaborators.
func (r *Reader) Status() models.ScaleStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := models.ScaleStatus{Connection: r.conn, Stability: r.stability}
	if r.sample != nil {
		s := *r.sample
		st.Sample = &s
	}
	return st
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if max > 0 && next > max {
		return max
	}
	return next
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
