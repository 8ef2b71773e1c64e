package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/muurk/ecomax360/internal/deviceerr"
	"github.com/muurk/ecomax360/internal/logging"
)

// TCPConfig addresses a controller behind a serial-to-TCP bridge
type TCPConfig struct {
	Host         string
	Port         int
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// TCPSession is a Transport over one TCP connection
type TCPSession struct {
	cfg  TCPConfig
	addr string

	mu   sync.Mutex
	conn net.Conn
}

// NewTCPSession creates a closed session; call Open to connect.
func NewTCPSession(cfg TCPConfig) *TCPSession {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	return &TCPSession{
		cfg:  cfg,
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
	}
}

// Address returns host:port
func (s *TCPSession) Address() string {
	return s.addr
}

func (s *TCPSession) String() string {
	return "tcp://" + s.addr
}

// Open dials the controller. There is no internal retry: a refused or
// timed out dial is returned as a connection error.
func (s *TCPSession) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}

	d := net.Dialer{Timeout: s.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return deviceerr.ClassifyNetworkError(err, s.addr).WithOp("open")
	}

	s.conn = conn
	logging.LogConnection(s.addr, "opened")
	return nil
}

// Close closes the connection. Any Receive blocked on it returns.
func (s *TCPSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	logging.LogConnection(s.addr, "closed")
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return deviceerr.NewTransportError("close failed", err, s.addr).WithOp("close")
	}
	return nil
}

func (s *TCPSession) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func (s *TCPSession) current() net.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Send writes the whole buffer within the write timeout
func (s *TCPSession) Send(b []byte) error {
	conn := s.current()
	if conn == nil {
		return deviceerr.NewClosedError(s.addr).WithOp("send")
	}

	if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return sendError(err, s.addr)
	}

	logging.LogFrame("sent", b)
	n, err := conn.Write(b)
	if err != nil {
		return sendError(err, s.addr)
	}
	if n != len(b) {
		return deviceerr.NewTransportError("short write", io.ErrShortWrite, s.addr).WithOp("send")
	}
	return nil
}

// sendError reports every write failure as a transport error, except on a
// session closed underneath us.
func sendError(err error, addr string) error {
	if errors.Is(err, net.ErrClosed) {
		return deviceerr.NewClosedError(addr).WithOp("send")
	}
	return deviceerr.NewTransportError("send failed", err, addr).WithOp("send")
}

// Receive performs a single read with a deadline of wait
func (s *TCPSession) Receive(maxBytes int, wait time.Duration) ([]byte, error) {
	conn := s.current()
	if conn == nil {
		return nil, deviceerr.NewClosedError(s.addr).WithOp("receive")
	}
	if wait <= 0 {
		wait = DefaultReceiveWait
	}

	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return nil, deviceerr.ClassifyIOError("receive", err, s.addr)
	}

	buf := make([]byte, maxBytes)
	n, err := conn.Read(buf)
	if n > 0 {
		logging.LogRawBytes("received", buf[:n])
		return buf[:n], nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return nil, deviceerr.ClassifyIOError("receive", err, s.addr)
}
