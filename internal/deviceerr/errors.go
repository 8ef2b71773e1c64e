package deviceerr

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeEncoding indicates malformed input to frame construction (programmer error)
	ErrTypeEncoding ErrorType = iota
	// ErrTypeDecoding indicates a schema/payload size mismatch
	ErrTypeDecoding
	// ErrTypeConnection indicates the session could not be opened or is not open
	ErrTypeConnection
	// ErrTypeTransport indicates a send or receive failed on an open session
	ErrTypeTransport
	// ErrTypeTimeout indicates no data arrived before the receive wait elapsed
	ErrTypeTimeout
	// ErrTypeNoResponse indicates the retry budget was exhausted without a matching frame
	ErrTypeNoResponse
)

// ConnectionSubtype provides more specific connection error classification
type ConnectionSubtype int

const (
	ConnectionGeneral ConnectionSubtype = iota
	ConnectionRefused
	ConnectionDNS
	ConnectionHostUnreachable
	ConnectionNetworkUnreachable
	ConnectionClosed
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeEncoding:
		return "Encoding Error"
	case ErrTypeDecoding:
		return "Decoding Error"
	case ErrTypeConnection:
		return "Connection Error"
	case ErrTypeTransport:
		return "Transport Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeNoResponse:
		return "No Response"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError represents an error that occurred while talking to a controller
type DeviceError struct {
	Type      ErrorType         // Category of error
	Op        string            // Operation in progress (e.g. "encode", "GET_THERMOSTAT")
	Message   string            // Human-readable error message
	Err       error             // Underlying error (if any)
	Subtype   ConnectionSubtype // More specific connection error type
	Address   string            // Controller address (for context)
	Attempts  int               // Attempts made (no-response errors)
	Retryable bool              // Whether the caller may retry the whole operation
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	prefix := e.Type.String()
	if e.Op != "" {
		prefix = e.Op + ": " + prefix
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// WithOp returns a copy of the error tagged with the operation name.
func (e *DeviceError) WithOp(op string) *DeviceError {
	c := *e
	c.Op = op
	return &c
}

// NewEncodingError creates a frame construction error
func NewEncodingError(message string, err error) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeEncoding,
		Message: message,
		Err:     err,
	}
}

// NewDecodingError creates a payload decoding error
func NewDecodingError(message string) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeDecoding,
		Message: message,
	}
}

// NewConnectionError creates a connection error with automatic classification
func NewConnectionError(message string, err error, address string) *DeviceError {
	classified := ClassifyNetworkError(err, address)
	if classified != nil {
		classified.Message = message
		return classified
	}
	return &DeviceError{
		Type:      ErrTypeConnection,
		Message:   message,
		Address:   address,
		Retryable: true,
	}
}

// NewClosedError reports an operation on a session that is not open
func NewClosedError(address string) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeConnection,
		Message:   "session is not open",
		Subtype:   ConnectionClosed,
		Address:   address,
		Retryable: true,
	}
}

// NewTransportError creates a send/receive failure on an open session
func NewTransportError(message string, err error, address string) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeTransport,
		Message:   message,
		Err:       err,
		Address:   address,
		Retryable: true,
	}
}

// NewTimeoutError creates a receive timeout error
func NewTimeoutError(message string, err error, address string) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeTimeout,
		Message:   message,
		Err:       err,
		Address:   address,
		Retryable: true,
	}
}

// NewNoResponseError reports an exhausted retry budget
func NewNoResponseError(op string, attempts int) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeNoResponse,
		Op:        op,
		Message:   fmt.Sprintf("no matching frame after %d attempts", attempts),
		Attempts:  attempts,
		Retryable: true,
	}
}

// ClassifyNetworkError analyzes a dial error and returns a more specific error type
func ClassifyNetworkError(err error, address string) *DeviceError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		return &DeviceError{
			Type:      ErrTypeConnection,
			Message:   "Connection timed out",
			Err:       err,
			Address:   address,
			Retryable: true,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &DeviceError{
			Type:      ErrTypeConnection,
			Message:   fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:       err,
			Subtype:   ConnectionDNS,
			Address:   address,
			Retryable: false,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return &DeviceError{
				Type:      ErrTypeConnection,
				Message:   "Controller refused connection",
				Err:       err,
				Subtype:   ConnectionRefused,
				Address:   address,
				Retryable: true,
			}
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return &DeviceError{
				Type:      ErrTypeConnection,
				Message:   "Host unreachable",
				Err:       err,
				Subtype:   ConnectionHostUnreachable,
				Address:   address,
				Retryable: true,
			}
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			return &DeviceError{
				Type:      ErrTypeConnection,
				Message:   "Network unreachable",
				Err:       err,
				Subtype:   ConnectionNetworkUnreachable,
				Address:   address,
				Retryable: true,
			}
		}
	}

	return &DeviceError{
		Type:      ErrTypeConnection,
		Message:   "Connection failed",
		Err:       err,
		Subtype:   ConnectionGeneral,
		Address:   address,
		Retryable: true,
	}
}

// ClassifyIOError maps an error from a read or write on an open session.
// Deadline expiry becomes a timeout, a locally closed socket a connection
// error, everything else a transport error.
func ClassifyIOError(op string, err error, address string) *DeviceError {
	if err == nil {
		return nil
	}
	if os.IsTimeout(err) {
		return NewTimeoutError(op+" timed out", err, address)
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) {
		e := NewClosedError(address)
		e.Err = err
		return e
	}
	if errors.Is(err, io.EOF) {
		return NewTransportError("controller closed the connection", err, address)
	}
	return NewTransportError(op+" failed", err, address)
}

func typeOf(err error) (ErrorType, bool) {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Type, true
	}
	return 0, false
}

func isType(err error, want ErrorType) bool {
	got, ok := typeOf(err)
	return ok && got == want
}

// IsEncodingError checks if an error is an encoding error
func IsEncodingError(err error) bool { return isType(err, ErrTypeEncoding) }

// IsDecodingError checks if an error is a decoding error
func IsDecodingError(err error) bool { return isType(err, ErrTypeDecoding) }

// IsConnectionError checks if an error is a connection error
func IsConnectionError(err error) bool { return isType(err, ErrTypeConnection) }

// IsTransportError checks if an error is a transport error
func IsTransportError(err error) bool { return isType(err, ErrTypeTransport) }

// IsTimeoutError checks if an error is a receive timeout
func IsTimeoutError(err error) bool { return isType(err, ErrTypeTimeout) }

// IsNoResponseError checks if an error is an exhausted retry budget
func IsNoResponseError(err error) bool { return isType(err, ErrTypeNoResponse) }

// IsLinkError reports whether the session itself failed (connection or
// transport). Such errors leave the session unusable until it is reopened.
func IsLinkError(err error) bool {
	return IsConnectionError(err) || IsTransportError(err)
}

// IsRetryable checks if the caller may retry the whole operation
func IsRetryable(err error) bool {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Retryable
	}
	// Unknown errors are not retryable by default
	return false
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) []string {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return []string{"An unexpected error occurred. Please try again."}
	}

	switch devErr.Type {
	case ErrTypeConnection:
		switch devErr.Subtype {
		case ConnectionRefused:
			return []string{
				"The bridge refused the connection",
				"Verify the port number (default is 8899)",
				"Only one client may be connected to most serial bridges",
			}
		case ConnectionDNS:
			return []string{
				"Use the IP address instead of the hostname",
				"Check your network DNS settings",
			}
		case ConnectionHostUnreachable, ConnectionNetworkUnreachable:
			return []string{
				"Verify the controller IP address is correct",
				"Check that you're on the same network as the bridge",
				"Try pinging the bridge: ping " + hostOnly(devErr.Address),
			}
		case ConnectionClosed:
			return []string{"The session was closed while the operation was running"}
		default:
			return []string{
				"Check that the controller and its TCP bridge are powered on",
				"Try increasing the dial timeout",
			}
		}

	case ErrTypeTransport:
		return []string{
			"The connection dropped during the exchange",
			"Retry the command; the session is reopened automatically",
		}

	case ErrTypeTimeout, ErrTypeNoResponse:
		return []string{
			"The controller did not answer with a matching frame",
			"The bus may be busy; retry or raise --attempts",
			"Broadcast frames can take a minute to appear; use listen with a larger budget",
		}

	case ErrTypeDecoding:
		return []string{
			"A frame matched but was shorter than the schema expects",
			"The controller firmware may use a different layout",
		}

	case ErrTypeEncoding:
		return []string{"Check the hex arguments: addresses are 2 bytes, the function code 1 byte"}

	default:
		return nil
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return err.Error()
	}

	switch devErr.Type {
	case ErrTypeConnection:
		if devErr.Subtype == ConnectionRefused {
			return "Bridge refused connection"
		}
		return "Cannot connect to controller"
	case ErrTypeTransport:
		return "Connection lost"
	case ErrTypeTimeout:
		return "Controller not responding (timeout)"
	case ErrTypeNoResponse:
		return "No data available from controller"
	default:
		return devErr.Message
	}
}

func hostOnly(address string) string {
	if host, _, err := net.SplitHostPort(address); err == nil {
		return host
	}
	return strings.TrimSpace(address)
}
