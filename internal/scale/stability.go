package scale

import (
	"sync"
	"time"

	"weigh_station/internal/config"
	"weigh_station/internal/models"
)

// maxWindow bounds detector memory during long steady periods.
const maxWindow = 512

// Detector classifies the live reading as stable or unstable from a sliding
// window of recent samples. The device's own stability hint is advisory; this
// windowed computation is what upload gating trusts.
//
// Stable means the window holds at least Window samples, the newest and
// oldest are at least Span apart, and the spread across the window is within
// Epsilon. One out-of-bound sample discards the window and restarts
// accumulation seeded with that sample, so stability cannot flicker at the
// boundary.
type Detector struct {
	minCount int
	span     time.Duration
	epsilon  float64

	mu     sync.Mutex
	window []models.WeightSample
	state  models.StabilityState
}

// NewDetector builds a detector with the configured constants.
func NewDetector(cfg config.Stability) *Detector {
	return &Detector{
		minCount: cfg.Window,
		span:     cfg.Span,
		epsilon:  cfg.Epsilon,
	}
}

// Observe folds one sample into the window and returns the resulting state.
func (d *Detector) Observe(s models.WeightSample) models.StabilityState {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n := len(d.window); n > 0 && s.CapturedAt.Sub(d.window[n-1].CapturedAt) > d.span {
		// Gap in the stream longer than the required span: whatever was
		// accumulating no longer describes the present.
		d.window = d.window[:0]
	}

	d.window = append(d.window, s)
	if lo, hi := windowBounds(d.window); hi-lo > d.epsilon {
		d.window = append(d.window[:0], s)
	}
	if len(d.window) > maxWindow {
		d.window = append(d.window[:0], d.window[len(d.window)-maxWindow:]...)
	}

	stable := len(d.window) >= d.minCount &&
		s.CapturedAt.Sub(d.window[0].CapturedAt) >= d.span
	if stable != d.state.IsStable {
		d.state.Since = s.CapturedAt
	}
	d.state.IsStable = stable
	d.state.CurrentValue = s.ValueKg
	return d.state
}

// Reset clears the window and returns the state to unstable. Called on
// disconnect, when no past sample should influence the next session.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.window = d.window[:0]
	d.state = models.StabilityState{}
}

// State returns the last computed state.
func (d *Detector) State() models.StabilityState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func windowBounds(window []models.WeightSample) (lo, hi float64) {
	lo, hi = window[0].ValueKg, window[0].ValueKg
	for _, s := range window[1:] {
		if s.ValueKg < lo {
			lo = s.ValueKg
		}
		if s.ValueKg > hi {
			hi = s.ValueKg
		}
	}
	return lo, hi
}
