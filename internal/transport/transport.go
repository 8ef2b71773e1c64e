package transport

import (
	"context"
	"fmt"
	"time"
)

// Transport is a byte-stream link to one controller. Implementations are
// safe to Close from another goroutine while a Receive is blocked; the
// blocked call then returns a connection error.
type Transport interface {
	// Open connects. Calling Open on an open transport is a no-op.
	Open(ctx context.Context) error
	// Close disconnects. Calling Close on a closed transport is a no-op.
	Close() error
	// Send writes all of b.
	Send(b []byte) error
	// Receive performs one read of at most maxBytes, waiting up to wait.
	// A read that sees no data in time fails with a timeout error.
	Receive(maxBytes int, wait time.Duration) ([]byte, error)
	IsOpen() bool
}

// Link kinds
const (
	KindTCP    = "tcp"
	KindSerial = "serial"
)

const (
	DefaultPort         = 8899
	DefaultDialTimeout  = 5 * time.Second
	DefaultWriteTimeout = 5 * time.Second
	DefaultReceiveWait  = 5 * time.Second
	DefaultBaudRate     = 115200
)

// Config selects and configures a transport
type Config struct {
	Kind   string
	TCP    TCPConfig
	Serial SerialConfig
}

// New builds the transport described by cfg. An empty kind means TCP.
func New(cfg Config) (Transport, error) {
	switch cfg.Kind {
	case "", KindTCP:
		if cfg.TCP.Host == "" {
			return nil, fmt.Errorf("tcp transport: host is required")
		}
		return NewTCPSession(cfg.TCP), nil
	case KindSerial:
		if cfg.Serial.Device == "" {
			return nil, fmt.Errorf("serial transport: device is required")
		}
		return NewSerialSession(cfg.Serial), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q (want %s or %s)", cfg.Kind, KindTCP, KindSerial)
	}
}
