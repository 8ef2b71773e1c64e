package engine

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ecomax360/internal/deviceerr"
	"github.com/muurk/ecomax360/internal/logging"
	"github.com/muurk/ecomax360/internal/payload"
	"github.com/muurk/ecomax360/internal/protocol"
	"github.com/muurk/ecomax360/internal/transport"
)

const (
	// DefaultWait is how long one attempt listens for a matching frame
	DefaultWait = 5 * time.Second

	// DefaultListenWait bounds each receive of a passive listen. Broadcasts
	// come at the controller's pace, not ours.
	DefaultListenWait = 15 * time.Second

	// DefaultBufferSize is the most bytes taken from the link per receive
	DefaultBufferSize = 1024

	// DefaultPause separates attempts so the bus is not flooded
	DefaultPause = 100 * time.Millisecond

	DefaultRequestAttempts = 5
	DefaultCommandAttempts = 10
	DefaultListenAttempts  = 100

	// maxCarry bounds the unterminated tail kept between receives
	maxCarry = 4096
)

// State is the position of the engine in its request cycle
type State int

const (
	StateIdle State = iota
	StateSending
	StateAwaitingMatch
	StateMatched
	StateRetrying
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSending:
		return "Sending"
	case StateAwaitingMatch:
		return "AwaitingMatch"
	case StateMatched:
		return "Matched"
	case StateRetrying:
		return "Retrying"
	case StateExhausted:
		return "Exhausted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Request asks the controller for data and decodes its answer
type Request struct {
	Name        string
	Destination protocol.Address
	Source      protocol.Address
	Function    byte
	Payload     []byte
	Schema      *payload.Schema
	// Marker is hex text the answer must contain; empty matches any frame
	Marker string
	// AckFlag is the function byte expected in the answer; 0 skips the check
	AckFlag     byte
	MaxAttempts int
}

// Command is a write that only needs acknowledging
type Command struct {
	Name        string
	Destination protocol.Address
	Source      protocol.Address
	Function    byte
	Payload     []byte
	AckFlag     byte
	MaxAttempts int
}

// Broadcast describes an unsolicited frame to wait for
type Broadcast struct {
	Name   string
	Schema *payload.Schema
	Marker string
	// ExpectedLength is the exact frame size; 0 disables the filter
	ExpectedLength int
	// Source and Destination filter on frame addresses when non-nil
	Source      *protocol.Address
	Destination *protocol.Address
	MaxAttempts int
}

func (b Broadcast) accepts(frame []byte) bool {
	if b.ExpectedLength > 0 && len(frame) != b.ExpectedLength {
		return false
	}
	if b.Source != nil && !bytes.Equal(frame[protocol.OffsetSource:protocol.OffsetDestination], b.Source[:]) {
		return false
	}
	if b.Destination != nil && !bytes.Equal(frame[protocol.OffsetDestination:protocol.OffsetFunction], b.Destination[:]) {
		return false
	}
	return protocol.ContainsMarker(frame, b.Marker)
}

// Engine runs request/response exchanges over one transport. Its entry
// points are serialized: callers sharing an Engine wait for each other.
type Engine struct {
	transport transport.Transport

	// Wait bounds each attempt of Request and SendAndAwaitAck
	Wait time.Duration

	// ListenWait bounds each receive of Listen
	ListenWait time.Duration

	// BufferSize is the receive size
	BufferSize int

	// Pause is slept between attempts
	Pause time.Duration

	// sem admits one exchange at a time. Waiting for it honours ctx.
	sem chan struct{}

	stateMu sync.Mutex
	state   State
}

// New creates an engine with default timing
func New(t transport.Transport) *Engine {
	return &Engine{
		transport:  t,
		Wait:       DefaultWait,
		ListenWait: DefaultListenWait,
		BufferSize: DefaultBufferSize,
		Pause:      DefaultPause,
		sem:        make(chan struct{}, 1),
	}
}

func (e *Engine) acquire(ctx context.Context) error {
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) release() {
	<-e.sem
}

// Transport returns the link the engine runs over
func (e *Engine) Transport() transport.Transport {
	return e.transport
}

// State returns the current state
func (e *Engine) State() State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

func (e *Engine) setState(op string, s State) {
	e.stateMu.Lock()
	prev := e.state
	e.state = s
	e.stateMu.Unlock()

	if prev != s {
		logging.Debug("Engine state",
			zap.String("op", op),
			zap.Stringer("from", prev),
			zap.Stringer("to", s),
		)
	}
}

// matcher decides whether a verified candidate is the one we wait for
type matcher func(frame []byte) bool

func ackMatcher(marker string, ack byte) matcher {
	return func(frame []byte) bool {
		if !protocol.ContainsMarker(frame, marker) {
			return false
		}
		if ack == 0 {
			return true
		}
		flag, ok := protocol.AckFlag(frame)
		return ok && flag == ack
	}
}

// Request sends req and returns the decoded first matching answer. Each
// attempt resends the frame. With a nil schema the matched frame is not
// decoded and an empty Reading is returned.
func (e *Engine) Request(ctx context.Context, req Request) (payload.Reading, error) {
	frame, err := protocol.Encode(req.Destination[:], req.Source[:], []byte{req.Function}, req.Payload)
	if err != nil {
		return nil, err
	}

	attempts := req.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultRequestAttempts
	}

	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()

	matched, err := e.exchange(ctx, opName(req.Name, "request"), frame, attempts, ackMatcher(req.Marker, req.AckFlag))
	if err != nil {
		return nil, err
	}
	if req.Schema == nil {
		return payload.Reading{}, nil
	}
	return payload.Decode(matched, req.Schema)
}

// SendAndAwaitAck sends cmd until a frame carrying its ack flag comes back
func (e *Engine) SendAndAwaitAck(ctx context.Context, cmd Command) error {
	frame, err := protocol.Encode(cmd.Destination[:], cmd.Source[:], []byte{cmd.Function}, cmd.Payload)
	if err != nil {
		return err
	}

	attempts := cmd.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultCommandAttempts
	}

	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release()

	_, err = e.exchange(ctx, opName(cmd.Name, "command"), frame, attempts, ackMatcher("", cmd.AckFlag))
	return err
}

// Listen waits for a broadcast without sending anything. Each attempt is
// a single receive.
func (e *Engine) Listen(ctx context.Context, b Broadcast) (payload.Reading, error) {
	attempts := b.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultListenAttempts
	}
	op := opName(b.Name, "listen")

	wait := e.ListenWait
	if wait <= 0 {
		wait = e.Wait
	}

	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()

	e.setState(op, StateAwaitingMatch)
	var carry []byte
	for attempt := 1; attempt <= attempts; attempt++ {
		logging.LogAttempt(op, attempt, attempts)
		if err := ctx.Err(); err != nil {
			e.setState(op, StateIdle)
			return nil, err
		}

		data, err := e.transport.Receive(e.BufferSize, wait)
		if err != nil {
			if deviceerr.IsTimeoutError(err) {
				continue
			}
			e.setState(op, StateIdle)
			return nil, err
		}

		var frame []byte
		frame, carry = scan(append(carry, data...), b.accepts)
		if frame != nil {
			e.setState(op, StateMatched)
			if b.Schema == nil {
				return payload.Reading{}, nil
			}
			return payload.Decode(frame, b.Schema)
		}
	}

	e.setState(op, StateExhausted)
	return nil, deviceerr.NewNoResponseError(op, attempts)
}

// exchange runs the send/await/retry cycle and returns the matched frame.
// Caller holds the semaphore.
func (e *Engine) exchange(ctx context.Context, op string, frame []byte, attempts int, match matcher) ([]byte, error) {
	for attempt := 1; attempt <= attempts; attempt++ {
		logging.LogAttempt(op, attempt, attempts)
		if err := ctx.Err(); err != nil {
			e.setState(op, StateIdle)
			return nil, err
		}

		e.setState(op, StateSending)
		if err := e.transport.Send(frame); err != nil {
			e.setState(op, StateIdle)
			return nil, err
		}

		e.setState(op, StateAwaitingMatch)
		matched, err := e.await(ctx, match)
		if err != nil {
			e.setState(op, StateIdle)
			return nil, err
		}
		if matched != nil {
			e.setState(op, StateMatched)
			return matched, nil
		}

		if attempt < attempts {
			e.setState(op, StateRetrying)
			if err := sleep(ctx, e.Pause); err != nil {
				e.setState(op, StateIdle)
				return nil, err
			}
		}
	}

	e.setState(op, StateExhausted)
	logging.Warn("No matching response", zap.String("op", op), zap.Int("attempts", attempts))
	return nil, deviceerr.NewNoResponseError(op, attempts)
}

// await receives until a candidate matches or the attempt's wait budget
// runs out. A nil frame with a nil error means the budget ran out.
func (e *Engine) await(ctx context.Context, match matcher) ([]byte, error) {
	deadline := time.Now().Add(e.Wait)
	var carry []byte

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := e.transport.Receive(e.BufferSize, remaining)
		if err != nil {
			if deviceerr.IsTimeoutError(err) {
				return nil, nil
			}
			return nil, err
		}

		var frame []byte
		frame, carry = scan(append(carry, data...), match)
		if frame != nil {
			return frame, nil
		}
	}
}

// scan splits buf and returns the first verified candidate accepted by
// match, plus the unterminated tail to carry into the next receive.
func scan(buf []byte, match matcher) ([]byte, []byte) {
	candidates, rest := protocol.SplitStream(buf)
	for _, c := range candidates {
		if !protocol.Verify(c) {
			logging.Debug("Dropping invalid candidate", zap.String("hex", hex.EncodeToString(c)))
			continue
		}
		if match(c) {
			return c, nil
		}
	}
	if len(rest) > maxCarry {
		rest = nil
	}
	return nil, rest
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func opName(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
