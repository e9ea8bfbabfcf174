package scale

import (
	"testing"
	"time"

	"weigh_station/internal/config"
	"weigh_station/internal/models"
)

func testStabilityCfg() config.Stability {
	return config.Stability{
		Window:  5,
		Span:    1500 * time.Millisecond,
		Epsilon: 0.005,
	}
}

func sampleAt(v float64, at time.Time) models.WeightSample {
	return models.WeightSample{ValueKg: v, RawUnit: models.UnitKg, CapturedAt: at}
}

func TestDetectorStableAfterFullWindowAndSpan(t *testing.T) {
	t.Parallel()

	d := NewDetector(testStabilityCfg())
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	values := []float64{12.345, 12.346, 12.344, 12.345, 12.345}
	var state models.StabilityState
	for i, v := range values {
		state = d.Observe(sampleAt(v, base.Add(time.Duration(i)*400*time.Millisecond)))
		if i < len(values)-1 && state.IsStable {
			t.Fatalf("stable after %d samples, want unstable until window and span hold", i+1)
		}
	}

	// Five samples within 0.005 kg spanning 1.6s.
	if !state.IsStable {
		t.Fatal("expected stable state")
	}
	if state.CurrentValue != 12.345 {
		t.Errorf("CurrentValue = %v, want 12.345", state.CurrentValue)
	}
	if !state.Since.Equal(base.Add(1600 * time.Millisecond)) {
		t.Errorf("Since = %v, want the flipping sample's timestamp", state.Since)
	}
}

func TestDetectorFastBurstIsNotStable(t *testing.T) {
	t.Parallel()

	d := NewDetector(testStabilityCfg())
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	// Five identical readings inside 0.4s: full count, but the value has not
	// held for the required span yet.
	var state models.StabilityState
	for i := 0; i < 5; i++ {
		state = d.Observe(sampleAt(7.5, base.Add(time.Duration(i)*100*time.Millisecond)))
	}
	if state.IsStable {
		t.Error("burst shorter than the span must stay unstable")
	}

	state = d.Observe(sampleAt(7.5, base.Add(1500*time.Millisecond)))
	if !state.IsStable {
		t.Error("same value held for the span must become stable")
	}
}

func TestDetectorOutlierRestartsAccumulation(t *testing.T) {
	t.Parallel()

	d := NewDetector(testStabilityCfg())
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		d.Observe(sampleAt(12.345, base.Add(time.Duration(i)*400*time.Millisecond)))
	}
	if !d.State().IsStable {
		t.Fatal("precondition: stable window")
	}

	// A package lands: the window is discarded and restarts around the new
	// value.
	at := base.Add(2 * time.Second)
	state := d.Observe(sampleAt(13.120, at))
	if state.IsStable {
		t.Fatal("outlier must reset stability")
	}

	for i := 1; i <= 4; i++ {
		state = d.Observe(sampleAt(13.120, at.Add(time.Duration(i)*400*time.Millisecond)))
	}
	if !state.IsStable {
		t.Error("new value held for window and span must re-stabilize")
	}
	if state.CurrentValue != 13.120 {
		t.Errorf("CurrentValue = %v, want 13.120", state.CurrentValue)
	}
}

func TestDetectorSpreadJustInsideEpsilonCounts(t *testing.T) {
	t.Parallel()

	// Exactly representable values so the boundary comparison is exact.
	d := NewDetector(config.Stability{Window: 3, Span: time.Second, Epsilon: 0.5})
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	// max-min exactly epsilon is still stable; beyond it is not.
	values := []float64{10.0, 10.5, 10.25}
	var state models.StabilityState
	for i, v := range values {
		state = d.Observe(sampleAt(v, base.Add(time.Duration(i)*500*time.Millisecond)))
	}
	if !state.IsStable {
		t.Error("spread equal to epsilon must count as stable")
	}

	state = d.Observe(sampleAt(11.25, base.Add(1500*time.Millisecond)))
	if state.IsStable {
		t.Error("spread above epsilon must reset")
	}
}

func TestDetectorGapResetsWindow(t *testing.T) {
	t.Parallel()

	d := NewDetector(testStabilityCfg())
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		d.Observe(sampleAt(5.0, base.Add(time.Duration(i)*400*time.Millisecond)))
	}
	if !d.State().IsStable {
		t.Fatal("precondition: stable window")
	}

	// Silence longer than the span (parse errors, device pause): the old
	// window no longer describes the present.
	state := d.Observe(sampleAt(5.0, base.Add(5*time.Second)))
	if state.IsStable {
		t.Error("gap beyond span must reset the window")
	}
}

func TestDetectorResetClearsState(t *testing.T) {
	t.Parallel()

	d := NewDetector(testStabilityCfg())
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		d.Observe(sampleAt(5.0, base.Add(time.Duration(i)*400*time.Millisecond)))
	}

	d.Reset()

	state := d.State()
	if state.IsStable || state.CurrentValue != 0 || !state.Since.IsZero() {
		t.Errorf("Reset left state %+v", state)
	}

	// Post-reset samples start a fresh accumulation.
	if got := d.Observe(sampleAt(5.0, base.Add(10 * time.Second))); got.IsStable {
		t.Error("single sample after reset must not be stable")
	}
}
