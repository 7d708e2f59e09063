// Package monitor runs one live monitoring session: a single goroutine owns
// the detection debouncer and its display state, fed by decoded device
// messages and a periodic tick, so every state mutation is serialized through
// one execution context.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"elephant-logger/alert"
	"elephant-logger/dataset"
	"elephant-logger/models"
	"elephant-logger/telemetry"
	"elephant-logger/utils"
)

// DefaultTickInterval paces countdown updates and lock-expiry checks between
// device messages.
const DefaultTickInterval = 100 * time.Millisecond

var errSessionEnded = errors.New("monitor session has ended")

// Commander is the outbound half of the device link.
type Commander interface {
	SendLabel(label string) error
	SaveData() error
	ClearData() error
	RequestStatus() error
}

// Stats summarises a running session for the status bar.
type Stats struct {
	SessionID       string               `json:"sessionId"`
	StartedAt       time.Time            `json:"startedAt"`
	SamplesReceived int                  `json:"samplesReceived"`
	HighAlerts      int                  `json:"highAlerts"`
	Episodes        int                  `json:"episodes"`
	LabeledSamples  int                  `json:"labeledSamples"`
	DeviceStatus    *models.DeviceStatus `json:"deviceStatus,omitempty"`
	Dataset         *models.DatasetInfo  `json:"dataset,omitempty"`
}

// Snapshot is what downstream renderers consume after every debouncer step.
type Snapshot struct {
	State        alert.DisplayState  `json:"state"`
	Tier         string              `json:"tier"`
	RemainingSec float64             `json:"remainingSec"`
	Transitioned bool                `json:"transitioned"`
	Observation  *models.Observation `json:"observation,omitempty"`
	Stats        Stats               `json:"stats"`
}

// Handlers receive session output. Nil funcs are skipped. All handlers are
// invoked from the session goroutine and must not block.
type Handlers struct {
	OnSnapshot  func(Snapshot)
	OnDetection func(models.Detection)
	OnStatus    func(models.DeviceStatus)
	OnProtocol  func(telemetry.Message)
}

// Session wires device messages through the debouncer and out to handlers.
type Session struct {
	debouncer *alert.Debouncer
	commander Commander
	buffer    *dataset.Buffer
	handlers  Handlers
	tick      time.Duration

	commands chan func()
	done     chan struct{}
	stats    Stats

	lastObs *models.Observation
}

// NewSession builds a session around a validated debouncer. commander may be
// nil when replaying a log with no device attached.
func NewSession(debouncer *alert.Debouncer, commander Commander, buffer *dataset.Buffer, handlers Handlers) *Session {
	return &Session{
		debouncer: debouncer,
		commander: commander,
		buffer:    buffer,
		handlers:  handlers,
		tick:      DefaultTickInterval,
		commands:  make(chan func(), 16),
		done:      make(chan struct{}),
		stats: Stats{
			SessionID: uuid.NewString(),
			StartedAt: time.Now(),
		},
	}
}

// SetTickInterval overrides the countdown tick; call before Run.
func (s *Session) SetTickInterval(d time.Duration) {
	if d > 0 {
		s.tick = d
	}
}

// Run consumes messages until the channel closes or the context ends.
// It is the only goroutine that touches the debouncer.
func (s *Session) Run(ctx context.Context, messages <-chan telemetry.Message) {
	logger := utils.GetLogger()

	defer close(s.done)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case cmd := <-s.commands:
			cmd()

		case now := <-ticker.C:
			// Re-evaluate the lock between samples so the countdown
			// advances and an expired window can release even when
			// the device goes quiet.
			if s.lastObs != nil && s.debouncer.State().Tier != alert.TierNone {
				s.step(*s.lastObs, now)
			}

		case msg, ok := <-messages:
			if !ok {
				logger.InfoContext(ctx, "device stream ended",
					slog.String("sessionID", s.stats.SessionID),
					slog.Int("samples", s.stats.SamplesReceived),
				)
				return
			}
			s.handle(ctx, msg)
		}
	}
}

func (s *Session) handle(ctx context.Context, msg telemetry.Message) {
	logger := utils.GetLogger()

	switch msg.Kind {
	case telemetry.KindFeatures, telemetry.KindClassification:
		obs := msg.Observation
		if obs.Features != nil {
			s.stats.SamplesReceived++
		}
		if obs.Label == "" {
			// Feature-only frame: remember it for labeling but leave
			// the alert state alone until a classification arrives.
			s.lastObs = obs
			s.emit(Snapshot{
				State:        s.debouncer.State(),
				Tier:         s.debouncer.State().Tier.String(),
				RemainingSec: s.debouncer.Remaining(obs.ReceivedAt).Seconds(),
				Observation:  obs,
				Stats:        s.stats,
			})
			return
		}
		if obs.Features == nil && s.lastObs != nil && s.lastObs.Features != nil {
			// CLASSIFICATION lines follow a FEATURES line; carry the
			// frame forward so detections and labels keep context.
			frame := *s.lastObs.Features
			obs.Features = &frame
		}
		s.lastObs = obs
		s.step(*obs, obs.ReceivedAt)

	case telemetry.KindStatus:
		s.stats.DeviceStatus = msg.Status
		if s.handlers.OnStatus != nil {
			s.handlers.OnStatus(*msg.Status)
		}

	case telemetry.KindDataset:
		s.stats.Dataset = msg.Dataset
		s.forwardProtocol(msg)

	case telemetry.KindError:
		logger.WarnContext(ctx, "device reported error", slog.String("detail", msg.Text))
		s.forwardProtocol(msg)

	default:
		s.forwardProtocol(msg)
	}
}

// step runs one debouncer observation and fans out the results.
func (s *Session) step(obs models.Observation, now time.Time) {
	state, transitioned := s.debouncer.Observe(obs.Label, obs.Confidence, now)

	if transitioned && state.Tier != alert.TierNone {
		s.stats.Episodes++
		if state.Tier == alert.TierHigh {
			s.stats.HighAlerts++
		}
		if s.handlers.OnDetection != nil {
			s.handlers.OnDetection(models.Detection{
				SessionID:  s.stats.SessionID,
				Timestamp:  now,
				Tier:       state.Tier.String(),
				Label:      obs.Label,
				Confidence: obs.Confidence,
				Features:   obs.Features,
			})
		}
	}

	s.emit(Snapshot{
		State:        state,
		Tier:         state.Tier.String(),
		RemainingSec: s.debouncer.Remaining(now).Seconds(),
		Transitioned: transitioned,
		Observation:  &obs,
		Stats:        s.stats,
	})
}

func (s *Session) emit(snapshot Snapshot) {
	if s.handlers.OnSnapshot != nil {
		s.handlers.OnSnapshot(snapshot)
	}
}

func (s *Session) forwardProtocol(msg telemetry.Message) {
	if s.handlers.OnProtocol != nil {
		s.handlers.OnProtocol(msg)
	}
}

// Label forwards an operator label to the device and appends the most recent
// feature frame to the training buffer. It runs on the session goroutine.
func (s *Session) Label(label string) error {
	return s.do(func() error {
		if s.commander != nil {
			if err := s.commander.SendLabel(label); err != nil {
				return err
			}
		}
		if s.buffer != nil && s.lastObs != nil && s.lastObs.Features != nil {
			s.buffer.Add(models.LabeledSample{
				Timestamp:  time.Now(),
				Features:   *s.lastObs.Features,
				Label:      label,
				Confidence: s.lastObs.Confidence,
			})
			s.stats.LabeledSamples++
		}
		return nil
	})
}

// SaveData forwards a SAVE_DATA command.
func (s *Session) SaveData() error {
	return s.do(func() error {
		if s.commander == nil {
			return nil
		}
		return s.commander.SaveData()
	})
}

// ClearData forwards a CLEAR_DATA command.
func (s *Session) ClearData() error {
	return s.do(func() error {
		if s.commander == nil {
			return nil
		}
		return s.commander.ClearData()
	})
}

// RequestStatus asks the device for a fresh STATUS line.
func (s *Session) RequestStatus() error {
	return s.do(func() error {
		if s.commander == nil {
			return nil
		}
		return s.commander.RequestStatus()
	})
}

// Stats returns a copy of the session counters, read on the session goroutine.
// After the session ends it returns the final counters.
func (s *Session) Stats() Stats {
	result := make(chan Stats, 1)
	select {
	case s.commands <- func() { result <- s.stats }:
	case <-s.done:
		return s.stats
	}
	select {
	case stats := <-result:
		return stats
	case <-s.done:
		return s.stats
	}
}

// do queues work onto the session goroutine and waits for its result, keeping
// all state access on one logical thread.
func (s *Session) do(fn func() error) error {
	result := make(chan error, 1)
	select {
	case s.commands <- func() { result <- fn() }:
	case <-s.done:
		return errSessionEnded
	}
	select {
	case err := <-result:
		return err
	case <-s.done:
		return errSessionEnded
	}
}
