package device

import (
	"bufio"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"elephant-logger/telemetry"
)

// fakePort bridges two in-memory pipes so tests can play the device side.
type fakePort struct {
	reader *io.PipeReader
	writer *io.PipeWriter
	sent   *io.PipeReader
}

func newFakePort() (*fakePort, *io.PipeWriter) {
	deviceOut, deviceIn := io.Pipe()
	hostOut, hostIn := io.Pipe()
	return &fakePort{reader: deviceOut, writer: hostIn, sent: hostOut}, deviceIn
}

func (p *fakePort) Read(b []byte) (int, error)  { return p.reader.Read(b) }
func (p *fakePort) Write(b []byte) (int, error) { return p.writer.Write(b) }
func (p *fakePort) Close() error {
	p.reader.Close()
	return p.writer.Close()
}

func collectMessages(t *testing.T, s *Session, n int) []telemetry.Message {
	t.Helper()
	var got []telemetry.Message
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case msg, ok := <-s.Messages():
			if !ok {
				t.Fatalf("message channel closed after %d of %d messages", len(got), n)
			}
			got = append(got, msg)
		case <-timeout:
			t.Fatalf("timed out after %d of %d messages", len(got), n)
		}
	}
	return got
}

func TestSessionDecodesStream(t *testing.T) {
	t.Parallel()

	port, deviceIn := newFakePort()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := NewSession(ctx, port)
	defer session.Close()

	go func() {
		lines := []string{
			telemetry.ReadyBanner,
			"STATUS:100,5000,45000",
			"CLASSIFICATION:elephant,0.82",
			"FEATURES:bad,line",
			"CLASSIFICATION:not_elephant,0.40",
		}
		for _, line := range lines {
			io.WriteString(deviceIn, line+"\n")
		}
	}()

	got := collectMessages(t, session, 4)

	wantKinds := []telemetry.Kind{
		telemetry.KindReady,
		telemetry.KindStatus,
		telemetry.KindClassification,
		telemetry.KindClassification,
	}
	for i, kind := range wantKinds {
		if got[i].Kind != kind {
			t.Errorf("message %d kind = %v, want %v", i, got[i].Kind, kind)
		}
	}
	if got[2].Observation.Label != "elephant" {
		t.Errorf("label = %q, want elephant", got[2].Observation.Label)
	}
}

func TestSessionSendsCommands(t *testing.T) {
	t.Parallel()

	port, _ := newFakePort()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := NewSession(ctx, port)
	defer session.Close()

	reader := bufio.NewReader(port.sent)
	read := func() string {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("failed to read host command: %v", err)
		}
		return strings.TrimSuffix(line, "\n")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := session.SendLabel("elephant"); err != nil {
			t.Errorf("SendLabel: %v", err)
		}
		if err := session.SaveData(); err != nil {
			t.Errorf("SaveData: %v", err)
		}
		if err := session.ClearData(); err != nil {
			t.Errorf("ClearData: %v", err)
		}
	}()

	for i, want := range []string{"LABEL:elephant", "SAVE_DATA", "CLEAR_DATA"} {
		if got := read(); got != want {
			t.Errorf("command %d = %q, want %q", i, got, want)
		}
	}
	<-done

	if err := session.SendLabel("a,b"); err == nil {
		t.Error("expected delimiter-containing label to be rejected")
	}
}

func TestSessionClosesChannelOnPortClose(t *testing.T) {
	t.Parallel()

	port, deviceIn := newFakePort()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := NewSession(ctx, port)
	deviceIn.Close()

	select {
	case _, ok := <-session.Messages():
		if ok {
			t.Fatal("expected closed channel, got message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message channel did not close after port EOF")
	}
}
