package ecomax

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ecomax360/internal/config"
	"github.com/muurk/ecomax360/internal/deviceerr"
	"github.com/muurk/ecomax360/internal/engine"
	"github.com/muurk/ecomax360/internal/logging"
	"github.com/muurk/ecomax360/internal/params"
	"github.com/muurk/ecomax360/internal/payload"
	"github.com/muurk/ecomax360/internal/protocol"
	"github.com/muurk/ecomax360/internal/transport"
)

const (
	// DefaultRetries is the number of whole-operation retries. The engine
	// already retries the exchange itself.
	DefaultRetries = 0

	// DefaultRetryDelay is the initial delay between operation retries
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay caps exponential backoff
	DefaultMaxRetryDelay = 30 * time.Second
)

// Client is the high-level interface to one controller
type Client struct {
	// KeepAlive keeps the session open between operations. When false,
	// every operation opens the session and closes it afterwards.
	KeepAlive bool

	// Retries is how many times a failed operation is repeated
	Retries int

	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration

	// UseExponentialBackoff doubles RetryDelay after each retry
	UseExponentialBackoff bool

	// Per-operation attempt budgets handed to the engine, 0 for its defaults
	RequestAttempts int
	CommandAttempts int
	ListenAttempts  int

	transport transport.Transport
	engine    *engine.Engine

	// sessionMu guards opening and closing the transport
	sessionMu sync.Mutex

	// ops admits one operation at a time, from opening the session to
	// closing it
	ops chan struct{}
}

// NewClient creates a client over t with default settings
func NewClient(t transport.Transport) *Client {
	return &Client{
		KeepAlive:             true,
		Retries:               DefaultRetries,
		RetryDelay:            DefaultRetryDelay,
		MaxRetryDelay:         DefaultMaxRetryDelay,
		UseExponentialBackoff: true,
		transport:             t,
		engine:                engine.New(t),
		ops:                   make(chan struct{}, 1),
	}
}

// NewClientFromConfig creates a client for a configured controller
func NewClientFromConfig(ctrl *config.Controller) (*Client, error) {
	if err := ctrl.Validate(); err != nil {
		return nil, err
	}
	t, err := transport.New(ctrl.TransportConfig())
	if err != nil {
		return nil, err
	}

	c := NewClient(t)
	c.ApplyConfig(ctrl)
	return c, nil
}

// ApplyConfig copies the session and timing settings of ctrl. The
// transport is left alone.
func (c *Client) ApplyConfig(ctrl *config.Controller) {
	c.KeepAlive = ctrl.KeepsAlive()
	c.Retries = ctrl.Retries
	c.RequestAttempts = ctrl.RequestAttempts
	c.CommandAttempts = ctrl.CommandAttempts
	c.ListenAttempts = ctrl.ListenAttempts
	if ctrl.ReceiveWait > 0 {
		c.engine.Wait = ctrl.ReceiveWait.D()
	}
	if ctrl.ListenWait > 0 {
		c.engine.ListenWait = ctrl.ListenWait.D()
	}
	if ctrl.Pause > 0 {
		c.engine.Pause = ctrl.Pause.D()
	}
}

// Engine returns the exchange engine, for tuning its timing
func (c *Client) Engine() *engine.Engine {
	return c.engine
}

// String describes the link
func (c *Client) String() string {
	if s, ok := c.transport.(fmt.Stringer); ok {
		return s.String()
	}
	return "ecomax"
}

// OpenSession opens the link if it is not already open
func (c *Client) OpenSession(ctx context.Context) error {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	if c.transport.IsOpen() {
		return nil
	}
	return c.transport.Open(ctx)
}

// CloseSession closes the link. Closing a closed session is a no-op.
func (c *Client) CloseSession() error {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	return c.transport.Close()
}

// do runs op with session management and the retry policy
func (c *Client) do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	var lastErr error
	currentDelay := c.RetryDelay

	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			logging.Debug("Retrying operation",
				zap.String("op", name),
				zap.Int("retry", attempt),
				zap.Duration("delay", currentDelay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(currentDelay):
			}

			if c.UseExponentialBackoff {
				currentDelay *= 2
				if currentDelay > c.MaxRetryDelay {
					currentDelay = c.MaxRetryDelay
				}
			}
		}

		err := c.attempt(ctx, op)
		if err == nil {
			return nil
		}
		lastErr = err

		if !deviceerr.IsRetryable(err) || ctx.Err() != nil {
			return err
		}
	}

	return lastErr
}

func (c *Client) attempt(ctx context.Context, op func(ctx context.Context) error) error {
	select {
	case c.ops <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.ops }()

	if err := c.OpenSession(ctx); err != nil {
		return err
	}

	err := op(ctx)
	if !c.KeepAlive || deviceerr.IsLinkError(err) {
		// A broken link is reopened by the next operation
		if cerr := c.CloseSession(); cerr != nil {
			logging.Warn("Failed to close session", zap.Error(cerr))
		}
	}
	return err
}

// Read fetches a parameter. Parameters with a request template are asked
// for; broadcast-only ones are listened for.
func (c *Client) Read(ctx context.Context, name string) (payload.Reading, error) {
	p, err := params.Lookup(name)
	if err != nil {
		return nil, err
	}
	if p.Broadcast() {
		return c.listen(ctx, p)
	}

	var reading payload.Reading
	err = c.do(ctx, p.Name, func(ctx context.Context) error {
		var err error
		reading, err = c.engine.Request(ctx, engine.Request{
			Name:        p.Name,
			Destination: p.Request.Destination,
			Source:      p.Request.Source,
			Function:    p.Request.Function,
			Payload:     p.Request.Payload,
			Schema:      p.Schema,
			Marker:      p.Marker,
			AckFlag:     p.Request.AckFlag,
			MaxAttempts: c.RequestAttempts,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return reading, nil
}

// ListenBroadcast waits for the named parameter's frame without sending
func (c *Client) ListenBroadcast(ctx context.Context, name string) (payload.Reading, error) {
	p, err := params.Lookup(name)
	if err != nil {
		return nil, err
	}
	return c.listen(ctx, p)
}

func (c *Client) listen(ctx context.Context, p *params.Parameter) (payload.Reading, error) {
	var reading payload.Reading
	err := c.do(ctx, p.Name, func(ctx context.Context) error {
		var err error
		reading, err = c.engine.Listen(ctx, engine.Broadcast{
			Name:           p.Name,
			Schema:         p.Schema,
			Marker:         p.Marker,
			ExpectedLength: p.ExpectedLength,
			Source:         p.Source,
			Destination:    p.Destination,
			MaxAttempts:    c.ListenAttempts,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return reading, nil
}

// Write validates value against the named register and writes it
func (c *Client) Write(ctx context.Context, registerName string, value any) error {
	reg, err := params.LookupRegister(registerName)
	if err != nil {
		return err
	}
	encoded, err := reg.Validate(value)
	if err != nil {
		return err
	}

	logging.Info("Writing register",
		zap.String("register", reg.Name),
		zap.Any("value", value),
	)
	return c.write(ctx, reg.Name, reg.Selector, encoded)
}

// WriteRaw writes already encoded bytes to a register selector
func (c *Client) WriteRaw(ctx context.Context, register, value []byte) error {
	return c.write(ctx, fmt.Sprintf("WRITE_%x", register), register, value)
}

func (c *Client) write(ctx context.Context, name string, register, value []byte) error {
	data, err := protocol.BuildWritePayload(register, value)
	if err != nil {
		return err
	}

	return c.do(ctx, name, func(ctx context.Context) error {
		return c.engine.SendAndAwaitAck(ctx, engine.Command{
			Name:        name,
			Destination: params.WriteDestination,
			Source:      params.WriteSource,
			Function:    protocol.FuncWrite,
			Payload:     data,
			AckFlag:     params.WriteAckFlag,
			MaxAttempts: c.CommandAttempts,
		})
	})
}

// SetPreset switches the thermostat to a preset such as "eco"
func (c *Client) SetPreset(ctx context.Context, preset string) error {
	code, err := params.PresetToCode(preset)
	if err != nil {
		return deviceerr.NewEncodingError(err.Error(), nil)
	}
	return c.Write(ctx, params.SetPreset, int(code))
}

// SetSetpoint writes the day or night target temperature
func (c *Client) SetSetpoint(ctx context.Context, night bool, celsius float64) error {
	register := params.SetSetpointDay
	if night {
		register = params.SetSetpointNight
	}
	return c.Write(ctx, register, celsius)
}

// SetTargetTemperature reads the thermostat and writes celsius to the
// setpoint currently in effect. It returns the register written.
func (c *Client) SetTargetTemperature(ctx context.Context, celsius float64) (string, error) {
	reading, err := c.Read(ctx, params.GetThermostat)
	if err != nil {
		return "", fmt.Errorf("read thermostat: %w", err)
	}
	mode, _ := reading.Int("MODE")
	auto, _ := reading.Int("AUTO")

	register := params.SetpointRegister(mode, auto)
	if err := c.Write(ctx, register, celsius); err != nil {
		return "", err
	}
	return register, nil
}

// shutdowner is a transport holding resources that outlive a session
type shutdowner interface {
	Shutdown() error
}

// Close releases the link and anything the transport keeps across
// sessions. The client is not usable afterwards.
func (c *Client) Close() error {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	if s, ok := c.transport.(shutdowner); ok {
		return s.Shutdown()
	}
	return c.transport.Close()
}
