package device

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"elephant-logger/telemetry"
	"elephant-logger/utils"
)

// Port is the minimal serial surface the session needs; go.bug.st/serial's
// Port satisfies it, and tests substitute an in-memory pipe.
type Port interface {
	io.ReadWriteCloser
}

// Session drives one connected device: it reads protocol lines, decodes them
// and fans the messages out on a channel. Malformed lines are logged and
// dropped so parse failures never reach the alert logic.
type Session struct {
	port     Port
	messages chan telemetry.Message
	errs     chan error

	writeMu sync.Mutex
	once    sync.Once
}

// NewSession wraps an open port and starts the read loop.
func NewSession(ctx context.Context, port Port) *Session {
	s := &Session{
		port:     port,
		messages: make(chan telemetry.Message, 64),
		errs:     make(chan error, 1),
	}
	go s.readLoop(ctx)
	return s
}

// Messages delivers decoded protocol messages. The channel closes when the
// read loop ends (port closed, read error or context cancellation).
func (s *Session) Messages() <-chan telemetry.Message {
	return s.messages
}

// Errs reports the terminal read error, if any.
func (s *Session) Errs() <-chan error {
	return s.errs
}

func (s *Session) readLoop(ctx context.Context) {
	logger := utils.GetLogger()
	defer close(s.messages)

	scanner := bufio.NewScanner(s.port)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		msg, err := telemetry.Decode(line, time.Now())
		if err != nil {
			logger.WarnContext(ctx, "dropping malformed line",
				slog.String("line", line),
				slog.Any("error", err),
			)
			continue
		}

		select {
		case s.messages <- msg:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		select {
		case s.errs <- fmt.Errorf("serial read: %w", err):
		default:
		}
	}
}

// Send writes one command line to the device.
func (s *Session) Send(command string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.port.Write([]byte(command + "\n")); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

// SendLabel tags the device's current sample buffer with an operator label.
func (s *Session) SendLabel(label string) error {
	cmd, err := telemetry.EncodeLabelCommand(label)
	if err != nil {
		return err
	}
	return s.Send(cmd)
}

// SaveData asks the firmware to persist its labeled dataset to flash.
func (s *Session) SaveData() error {
	return s.Send(telemetry.CommandSaveData)
}

// ClearData asks the firmware to drop its labeled dataset.
func (s *Session) ClearData() error {
	return s.Send(telemetry.CommandClearData)
}

// RequestStatus asks the firmware for an immediate STATUS line.
func (s *Session) RequestStatus() error {
	return s.Send(telemetry.CommandGetStatus)
}

// Close terminates the session; the read loop ends once the port unblocks.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		err = s.port.Close()
	})
	return err
}
