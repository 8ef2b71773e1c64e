package transport

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"go.bug.st/serial"

	"github.com/muurk/ecomax360/internal/deviceerr"
)

type fakePort struct {
	reads   [][]byte
	written bytes.Buffer
	timeout time.Duration
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.reads) == 0 {
		return 0, nil
	}
	n := copy(b, p.reads[0])
	p.reads = p.reads[1:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) { return p.written.Write(b) }

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

func withFakePort(t *testing.T, port *fakePort, openErr error) {
	t.Helper()
	orig := openSerial
	openSerial = func(device string, mode *serial.Mode) (serialPort, error) {
		if openErr != nil {
			return nil, openErr
		}
		return port, nil
	}
	t.Cleanup(func() { openSerial = orig })
}

func TestSerialSession(t *testing.T) {
	port := &fakePort{reads: [][]byte{{0x68, 0x16}}}
	withFakePort(t, port, nil)

	s := NewSerialSession(SerialConfig{Device: "/dev/ttyUSB0"})
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := s.Send([]byte{0x68, 0x01, 0x16}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !bytes.Equal(port.written.Bytes(), []byte{0x68, 0x01, 0x16}) {
		t.Errorf("written = %x", port.written.Bytes())
	}

	got, err := s.Receive(1024, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if !bytes.Equal(got, []byte{0x68, 0x16}) {
		t.Errorf("Receive() = %x", got)
	}
	if port.timeout != 200*time.Millisecond {
		t.Errorf("read timeout = %v, want 200ms", port.timeout)
	}

	// Zero-byte read is the driver's timeout
	if _, err := s.Receive(1024, 10*time.Millisecond); !deviceerr.IsTimeoutError(err) {
		t.Errorf("Receive() error = %v, want TimeoutError", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !port.closed {
		t.Error("port not closed")
	}
	if err := s.Send([]byte{0x68}); !deviceerr.IsConnectionError(err) {
		t.Errorf("Send() after Close error = %v, want ConnectionError", err)
	}
}

func TestSerialSessionOpenFailure(t *testing.T) {
	withFakePort(t, nil, errors.New("no such file or directory"))

	s := NewSerialSession(SerialConfig{Device: "/dev/ttyMissing"})
	if err := s.Open(context.Background()); !deviceerr.IsConnectionError(err) {
		t.Errorf("Open() error = %v, want ConnectionError", err)
	}
	if s.IsOpen() {
		t.Error("IsOpen() = true after failed Open")
	}
}

func TestSerialSessionMode(t *testing.T) {
	tests := []struct {
		name       string
		cfg        SerialConfig
		wantParity serial.Parity
		wantStop   serial.StopBits
		wantErr    bool
	}{
		{"defaults", SerialConfig{Device: "d"}, serial.NoParity, serial.OneStopBit, false},
		{"even two stop", SerialConfig{Device: "d", Parity: "EVEN", StopBits: 2}, serial.EvenParity, serial.TwoStopBits, false},
		{"bad parity", SerialConfig{Device: "d", Parity: "mark"}, 0, 0, true},
		{"bad stop bits", SerialConfig{Device: "d", StopBits: 3}, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, err := NewSerialSession(tt.cfg).mode()
			if (err != nil) != tt.wantErr {
				t.Fatalf("mode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if mode.BaudRate != DefaultBaudRate {
				t.Errorf("BaudRate = %d, want %d", mode.BaudRate, DefaultBaudRate)
			}
			if mode.Parity != tt.wantParity {
				t.Errorf("Parity = %v, want %v", mode.Parity, tt.wantParity)
			}
			if mode.StopBits != tt.wantStop {
				t.Errorf("StopBits = %v, want %v", mode.StopBits, tt.wantStop)
			}
		})
	}
}
