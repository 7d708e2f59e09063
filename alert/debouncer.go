package alert

import (
	"fmt"
	"time"
)

// Tier is a discrete alert severity derived from a classification confidence.
type Tier int

const (
	TierNone Tier = iota
	TierLow
	TierMedium
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	default:
		return "none"
	}
}

// TierThreshold maps a confidence floor to a tier. A candidate observation
// takes the tier of the first threshold whose floor its confidence exceeds.
type TierThreshold struct {
	Floor float64
	Tier  Tier
}

// Config fixes the debouncer behaviour at construction time.
type Config struct {
	// DwellDuration is the minimum time a non-none tier stays on display
	// before it may revert to none.
	DwellDuration time.Duration

	// PositiveLabel is the classification label that maps to an alert tier.
	// Any other label maps to TierNone regardless of confidence.
	PositiveLabel string

	// Thresholds must be ordered by strictly descending floor. The last
	// entry is the fallback tier for confidences at or below every floor.
	Thresholds []TierThreshold
}

// DefaultConfig mirrors the deployed three-tier setup: confidence above 0.5
// is high, above 0.3 medium, anything else from the positive class low, with
// a five second dwell.
func DefaultConfig() Config {
	return Config{
		DwellDuration: 5 * time.Second,
		PositiveLabel: "elephant",
		Thresholds: []TierThreshold{
			{Floor: 0.5, Tier: TierHigh},
			{Floor: 0.3, Tier: TierMedium},
			{Floor: 0.0, Tier: TierLow},
		},
	}
}

// TwoTierConfig omits the medium tier, matching the reduced display variant.
func TwoTierConfig() Config {
	return Config{
		DwellDuration: 5 * time.Second,
		PositiveLabel: "elephant",
		Thresholds: []TierThreshold{
			{Floor: 0.5, Tier: TierHigh},
			{Floor: 0.0, Tier: TierLow},
		},
	}
}

// DisplayState is the debouncer's stable output. It is mutated only by
// Observe. While Tier is TierNone, LockedUntil and ActiveSince carry no
// meaning.
type DisplayState struct {
	Tier        Tier      `json:"tier"`
	LockedUntil time.Time `json:"lockedUntil"`
	ActiveSince time.Time `json:"activeSince"`
}

// Debouncer converts a noisy per-sample classification stream into a display
// state that holds each detection tier for a fixed dwell time before it may
// revert, suppressing flicker. Escalation and tier changes are never
// debounced; only the fall back to TierNone is.
//
// A Debouncer is not safe for concurrent use; drive it from a single
// goroutine with non-decreasing timestamps.
type Debouncer struct {
	cfg   Config
	state DisplayState
}

// NewDebouncer validates the configuration and returns a debouncer with the
// display state at TierNone.
func NewDebouncer(cfg Config) (*Debouncer, error) {
	if cfg.DwellDuration <= 0 {
		return nil, fmt.Errorf("dwell duration must be positive, got %v", cfg.DwellDuration)
	}
	if cfg.PositiveLabel == "" {
		return nil, fmt.Errorf("positive label is required")
	}
	if len(cfg.Thresholds) == 0 {
		return nil, fmt.Errorf("at least one tier threshold is required")
	}
	for i, th := range cfg.Thresholds {
		if th.Tier == TierNone {
			return nil, fmt.Errorf("threshold %d maps to tier none", i)
		}
		if i > 0 && th.Floor >= cfg.Thresholds[i-1].Floor {
			return nil, fmt.Errorf("threshold floors must be strictly descending (entry %d: %v >= %v)",
				i, th.Floor, cfg.Thresholds[i-1].Floor)
		}
	}

	thresholds := make([]TierThreshold, len(cfg.Thresholds))
	copy(thresholds, cfg.Thresholds)
	cfg.Thresholds = thresholds

	return &Debouncer{cfg: cfg}, nil
}

// CandidateTier maps a raw observation to the tier it would display,
// ignoring any active lock. Confidence values are compared as-is; the
// device does not clamp them and neither do we.
func (d *Debouncer) CandidateTier(label string, confidence float64) Tier {
	if label != d.cfg.PositiveLabel {
		return TierNone
	}
	for _, th := range d.cfg.Thresholds {
		if confidence > th.Floor {
			return th.Tier
		}
	}
	return d.cfg.Thresholds[len(d.cfg.Thresholds)-1].Tier
}

// Observe feeds one classification sample into the state machine and returns
// the resulting display state plus whether the visible tier changed.
//
// Timestamps must be non-decreasing across calls; out-of-order input is a
// caller error and leaves behaviour undefined.
func (d *Debouncer) Observe(label string, confidence float64, now time.Time) (DisplayState, bool) {
	candidate := d.CandidateTier(label, confidence)

	switch {
	case candidate != TierNone && (d.state.Tier == TierNone || candidate != d.state.Tier):
		// New detection episode, escalation or de-escalation between
		// tiers: takes effect immediately and restarts the lock window.
		d.state = DisplayState{
			Tier:        candidate,
			ActiveSince: now,
			LockedUntil: now.Add(d.cfg.DwellDuration),
		}
		return d.state, true

	case d.state.Tier != TierNone:
		if now.Before(d.state.LockedUntil) {
			// Dwell window still active: hold the displayed tier even
			// if the candidate dropped to none. This is the debounce.
			return d.state, false
		}
		if candidate == TierNone {
			d.state = DisplayState{Tier: TierNone}
			return d.state, true
		}
		// Same tier persisted past the dwell window: extend the lock
		// without counting it as a transition.
		d.state.ActiveSince = now
		d.state.LockedUntil = now.Add(d.cfg.DwellDuration)
		return d.state, false

	default:
		// Nothing detected and nothing displayed.
		return d.state, false
	}
}

// State returns the current display state without side effects.
func (d *Debouncer) State() DisplayState {
	return d.state
}

// Remaining reports how long the current tier stays locked, for countdown
// display. It is zero once the window has elapsed or while the tier is none.
func (d *Debouncer) Remaining(now time.Time) time.Duration {
	if d.state.Tier == TierNone {
		return 0
	}
	if rem := d.state.LockedUntil.Sub(now); rem > 0 {
		return rem
	}
	return 0
}

// DwellDuration exposes the configured dwell window.
func (d *Debouncer) DwellDuration() time.Duration {
	return d.cfg.DwellDuration
}
