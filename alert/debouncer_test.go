package alert

import (
	"testing"
	"time"
)

var t0 = time.Date(2025, 9, 14, 6, 30, 0, 0, time.UTC)

func newTestDebouncer(t *testing.T) *Debouncer {
	t.Helper()
	d, err := NewDebouncer(DefaultConfig())
	if err != nil {
		t.Fatalf("NewDebouncer returned error: %v", err)
	}
	return d
}

func TestImmediateEscalation(t *testing.T) {
	t.Parallel()

	d := newTestDebouncer(t)
	state, transitioned := d.Observe("elephant", 0.85, t0)

	if state.Tier != TierHigh {
		t.Fatalf("expected tier high, got %s", state.Tier)
	}
	if !transitioned {
		t.Fatal("expected transitioned=true for a fresh detection")
	}
	if !state.LockedUntil.Equal(t0.Add(5 * time.Second)) {
		t.Fatalf("expected lock until t0+5s, got %v", state.LockedUntil)
	}
	if !state.ActiveSince.Equal(t0) {
		t.Fatalf("expected active since t0, got %v", state.ActiveSince)
	}
}

func TestDeEscalationIsDebounced(t *testing.T) {
	t.Parallel()

	d := newTestDebouncer(t)
	d.Observe("elephant", 0.85, t0)

	state, transitioned := d.Observe("not_elephant", 0.1, t0.Add(2*time.Second))
	if state.Tier != TierHigh {
		t.Fatalf("tier reverted mid-dwell: got %s", state.Tier)
	}
	if transitioned {
		t.Fatal("expected transitioned=false while the dwell window holds")
	}
}

func TestReleaseAfterDwell(t *testing.T) {
	t.Parallel()

	d := newTestDebouncer(t)
	d.Observe("elephant", 0.85, t0)

	state, transitioned := d.Observe("not_elephant", 0.1, t0.Add(5100*time.Millisecond))
	if state.Tier != TierNone {
		t.Fatalf("expected release to none after dwell, got %s", state.Tier)
	}
	if !transitioned {
		t.Fatal("expected transitioned=true on release")
	}
}

func TestSustainedDetectionRestartsLock(t *testing.T) {
	t.Parallel()

	d := newTestDebouncer(t)
	d.Observe("elephant", 0.85, t0)

	later := t0.Add(5100 * time.Millisecond)
	state, transitioned := d.Observe("elephant", 0.85, later)
	if state.Tier != TierHigh {
		t.Fatalf("expected sustained high tier, got %s", state.Tier)
	}
	if transitioned {
		t.Fatal("same-tier continuation must not count as a transition")
	}
	if !state.LockedUntil.Equal(later.Add(5 * time.Second)) {
		t.Fatalf("expected lock extended to t0+10.1s, got %v", state.LockedUntil)
	}
	if !state.ActiveSince.Equal(later) {
		t.Fatalf("expected active-since reset on re-lock, got %v", state.ActiveSince)
	}
}

func TestTierChangePreemptsLock(t *testing.T) {
	t.Parallel()

	d := newTestDebouncer(t)
	d.Observe("elephant", 0.85, t0)

	mid := t0.Add(1 * time.Second)
	state, transitioned := d.Observe("elephant", 0.35, mid)
	if state.Tier != TierMedium {
		t.Fatalf("expected mid-dwell de-escalation to medium, got %s", state.Tier)
	}
	if !transitioned {
		t.Fatal("tier change must report transitioned=true even mid-dwell")
	}
	if !state.LockedUntil.Equal(mid.Add(5 * time.Second)) {
		t.Fatalf("expected lock restarted at t0+6s, got %v", state.LockedUntil)
	}
}

func TestIdleStreamIsIdempotent(t *testing.T) {
	t.Parallel()

	d := newTestDebouncer(t)
	for i := 0; i < 10; i++ {
		now := t0.Add(time.Duration(i) * time.Second)
		state, transitioned := d.Observe("not_elephant", 0.0, now)
		if transitioned {
			t.Fatalf("no-op observation %d reported a transition", i)
		}
		if state.Tier != TierNone {
			t.Fatalf("no-op observation %d changed tier to %s", i, state.Tier)
		}
		if !state.ActiveSince.IsZero() || !state.LockedUntil.IsZero() {
			t.Fatalf("no-op observation %d mutated timestamps: %+v", i, state)
		}
	}
}

func TestLockNeverPrecedesItsTimestamp(t *testing.T) {
	t.Parallel()

	d := newTestDebouncer(t)

	// A mixed call sequence; locked_until must always sit at or after the
	// now that most recently set it, and must not decrease while a tier
	// stays up.
	steps := []struct {
		label string
		conf  float64
		at    time.Duration
	}{
		{"elephant", 0.9, 0},
		{"not_elephant", 0.1, 1 * time.Second},
		{"elephant", 0.4, 2 * time.Second},
		{"elephant", 0.4, 8 * time.Second},
		{"elephant", 0.9, 9 * time.Second},
		{"not_elephant", 0.0, 15 * time.Second},
	}

	var prevLock time.Time
	var prevTier Tier
	for i, step := range steps {
		now := t0.Add(step.at)
		state, _ := d.Observe(step.label, step.conf, now)
		if state.Tier != TierNone {
			if state.LockedUntil.Before(now) {
				t.Fatalf("step %d: locked_until %v precedes now %v", i, state.LockedUntil, now)
			}
			if prevTier != TierNone && state.LockedUntil.Before(prevLock) {
				t.Fatalf("step %d: locked_until decreased from %v to %v", i, prevLock, state.LockedUntil)
			}
			prevLock = state.LockedUntil
		}
		prevTier = state.Tier
	}
}

func TestRemainingCountdown(t *testing.T) {
	t.Parallel()

	d := newTestDebouncer(t)
	if d.Remaining(t0) != 0 {
		t.Fatal("expected zero remaining while idle")
	}

	d.Observe("elephant", 0.85, t0)
	if got := d.Remaining(t0.Add(2 * time.Second)); got != 3*time.Second {
		t.Fatalf("expected 3s remaining, got %v", got)
	}
	if got := d.Remaining(t0.Add(7 * time.Second)); got != 0 {
		t.Fatalf("expected clamped zero past expiry, got %v", got)
	}

	// Remaining is a pure query; the state must be untouched.
	if state := d.State(); state.Tier != TierHigh || !state.LockedUntil.Equal(t0.Add(5*time.Second)) {
		t.Fatalf("Remaining mutated state: %+v", state)
	}
}

func TestCandidateTierMapping(t *testing.T) {
	t.Parallel()

	d := newTestDebouncer(t)
	cases := []struct {
		label string
		conf  float64
		want  Tier
	}{
		{"elephant", 0.85, TierHigh},
		{"elephant", 0.51, TierHigh},
		{"elephant", 0.5, TierMedium},
		{"elephant", 0.35, TierMedium},
		{"elephant", 0.3, TierLow},
		{"elephant", 0.05, TierLow},
		{"elephant", 0.0, TierLow},
		{"elephant", -0.2, TierLow},
		{"elephant", 1.7, TierHigh},
		{"not_elephant", 0.99, TierNone},
		{"unknown", 0.99, TierNone},
	}
	for _, tc := range cases {
		if got := d.CandidateTier(tc.label, tc.conf); got != tc.want {
			t.Errorf("CandidateTier(%q, %v) = %s, want %s", tc.label, tc.conf, got, tc.want)
		}
	}
}

func TestTwoTierVariant(t *testing.T) {
	t.Parallel()

	d, err := NewDebouncer(TwoTierConfig())
	if err != nil {
		t.Fatalf("NewDebouncer returned error: %v", err)
	}
	if got := d.CandidateTier("elephant", 0.4); got != TierLow {
		t.Fatalf("expected low tier without a medium band, got %s", got)
	}
	if got := d.CandidateTier("elephant", 0.8); got != TierHigh {
		t.Fatalf("expected high tier, got %s", got)
	}
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	base := DefaultConfig()

	noThresholds := base
	noThresholds.Thresholds = nil
	if _, err := NewDebouncer(noThresholds); err == nil {
		t.Error("expected error for empty thresholds")
	}

	unordered := base
	unordered.Thresholds = []TierThreshold{
		{Floor: 0.3, Tier: TierMedium},
		{Floor: 0.5, Tier: TierHigh},
	}
	if _, err := NewDebouncer(unordered); err == nil {
		t.Error("expected error for ascending floors")
	}

	noneTier := base
	noneTier.Thresholds = []TierThreshold{{Floor: 0.5, Tier: TierNone}}
	if _, err := NewDebouncer(noneTier); err == nil {
		t.Error("expected error for a threshold mapping to none")
	}

	zeroDwell := base
	zeroDwell.DwellDuration = 0
	if _, err := NewDebouncer(zeroDwell); err == nil {
		t.Error("expected error for non-positive dwell")
	}
}
