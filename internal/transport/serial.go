package transport

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/muurk/ecomax360/internal/deviceerr"
	"github.com/muurk/ecomax360/internal/logging"
)

// SerialConfig addresses a controller wired directly to an RS-485 adapter
type SerialConfig struct {
	Device   string
	BaudRate int
	Parity   string // "none", "even" or "odd"
	StopBits int    // 1 or 2
}

// serialPort is the part of serial.Port a session uses
type serialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

var openSerial = func(device string, mode *serial.Mode) (serialPort, error) {
	return serial.Open(device, mode)
}

// SerialSession is a Transport over a local serial port
type SerialSession struct {
	cfg SerialConfig

	mu   sync.Mutex
	port serialPort
}

// NewSerialSession creates a closed session; call Open to connect.
func NewSerialSession(cfg SerialConfig) *SerialSession {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Parity == "" {
		cfg.Parity = "none"
	}
	if cfg.StopBits == 0 {
		cfg.StopBits = 1
	}
	return &SerialSession{cfg: cfg}
}

func (s *SerialSession) String() string {
	return fmt.Sprintf("serial://%s@%d", s.cfg.Device, s.cfg.BaudRate)
}

func (s *SerialSession) mode() (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: s.cfg.BaudRate,
		DataBits: 8,
	}

	switch strings.ToLower(s.cfg.Parity) {
	case "none":
		mode.Parity = serial.NoParity
	case "even":
		mode.Parity = serial.EvenParity
	case "odd":
		mode.Parity = serial.OddParity
	default:
		return nil, fmt.Errorf("unknown parity %q", s.cfg.Parity)
	}

	switch s.cfg.StopBits {
	case 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("unsupported stop bits %d", s.cfg.StopBits)
	}

	return mode, nil
}

// Open opens the serial device
func (s *SerialSession) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return deviceerr.NewConnectionError("open cancelled", err, s.cfg.Device).WithOp("open")
	}

	mode, err := s.mode()
	if err != nil {
		return deviceerr.NewConnectionError("invalid serial settings", err, s.cfg.Device).WithOp("open")
	}

	port, err := openSerial(s.cfg.Device, mode)
	if err != nil {
		return deviceerr.NewConnectionError(fmt.Sprintf("failed to open %s", s.cfg.Device), err, s.cfg.Device).WithOp("open")
	}

	s.port = port
	logging.LogConnection(s.cfg.Device, "opened")
	return nil
}

func (s *SerialSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	logging.LogConnection(s.cfg.Device, "closed")
	if err != nil {
		return deviceerr.NewTransportError("close failed", err, s.cfg.Device).WithOp("close")
	}
	return nil
}

func (s *SerialSession) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port != nil
}

func (s *SerialSession) current() serialPort {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *SerialSession) Send(b []byte) error {
	port := s.current()
	if port == nil {
		return deviceerr.NewClosedError(s.cfg.Device).WithOp("send")
	}

	logging.LogFrame("sent", b)
	n, err := port.Write(b)
	if err != nil {
		return deviceerr.NewTransportError("send failed", err, s.cfg.Device).WithOp("send")
	}
	if n != len(b) {
		return deviceerr.NewTransportError("short write", io.ErrShortWrite, s.cfg.Device).WithOp("send")
	}
	return nil
}

// Receive reads once with a read timeout of wait. The serial driver
// reports an expired timeout as a zero-byte read.
func (s *SerialSession) Receive(maxBytes int, wait time.Duration) ([]byte, error) {
	port := s.current()
	if port == nil {
		return nil, deviceerr.NewClosedError(s.cfg.Device).WithOp("receive")
	}
	if wait <= 0 {
		wait = DefaultReceiveWait
	}

	if err := port.SetReadTimeout(wait); err != nil {
		return nil, deviceerr.NewTransportError("set read timeout", err, s.cfg.Device).WithOp("receive")
	}

	buf := make([]byte, maxBytes)
	n, err := port.Read(buf)
	if err != nil {
		return nil, deviceerr.ClassifyIOError("receive", err, s.cfg.Device)
	}
	if n == 0 {
		return nil, deviceerr.NewTimeoutError("receive timed out", nil, s.cfg.Device).WithOp("receive")
	}

	logging.LogRawBytes("received", buf[:n])
	return buf[:n], nil
}
