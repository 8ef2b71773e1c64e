package poller

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ecomax360/internal/deviceerr"
	"github.com/muurk/ecomax360/internal/logging"
	"github.com/muurk/ecomax360/internal/payload"
)

// DefaultInterval between polling rounds
const DefaultInterval = 30 * time.Second

// Reader fetches a parameter by name. *ecomax.Client implements it.
type Reader interface {
	Read(ctx context.Context, name string) (payload.Reading, error)
}

// Snapshot is the last known state of one parameter
type Snapshot struct {
	Parameter string          `json:"parameter"`
	Reading   payload.Reading `json:"reading,omitempty"`
	UpdatedAt time.Time       `json:"updated_at,omitzero"` // Last successful read
	CheckedAt time.Time       `json:"checked_at"`          // Last attempt
	Error     string          `json:"error,omitempty"`     // Last failure, cleared on success
	Stale     bool            `json:"stale"`               // Reading is from an earlier round
}

// Sink receives every snapshot the poller produces
type Sink interface {
	Publish(s Snapshot)
}

// SinkFunc adapts a function to a Sink
type SinkFunc func(s Snapshot)

func (f SinkFunc) Publish(s Snapshot) { f(s) }

// Poller reads a fixed set of parameters on an interval and keeps the last
// good reading of each. A failed read leaves the previous reading in place,
// marked stale.
type Poller struct {
	Interval   time.Duration
	Parameters []string

	reader Reader

	mu     sync.RWMutex
	latest map[string]Snapshot

	sinksMu sync.RWMutex
	sinks   []Sink

	now func() time.Time
}

// New creates a poller over reader
func New(reader Reader, interval time.Duration, parameters []string) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		Interval:   interval,
		Parameters: slices.Clone(parameters),
		reader:     reader,
		latest:     make(map[string]Snapshot),
		now:        time.Now,
	}
}

// AddSink registers s to receive snapshots
func (p *Poller) AddSink(s Sink) {
	p.sinksMu.Lock()
	defer p.sinksMu.Unlock()
	p.sinks = append(p.sinks, s)
}

// Run polls immediately and then on every tick until ctx is done
func (p *Poller) Run(ctx context.Context) error {
	logging.Info("Poller started",
		zap.Duration("interval", p.Interval),
		zap.Strings("parameters", p.Parameters),
	)

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		p.PollOnce(ctx)

		select {
		case <-ctx.Done():
			logging.Info("Poller stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PollOnce reads every parameter once, in order
func (p *Poller) PollOnce(ctx context.Context) {
	for _, name := range p.Parameters {
		if ctx.Err() != nil {
			return
		}
		p.Refresh(ctx, name)
	}
}

// Refresh reads one parameter, updates the cache and notifies the sinks
func (p *Poller) Refresh(ctx context.Context, name string) Snapshot {
	reading, err := p.reader.Read(ctx, name)
	now := p.now()

	p.mu.Lock()
	snap := p.latest[name]
	snap.Parameter = name
	snap.CheckedAt = now
	if err != nil {
		snap.Error = deviceerr.GetShortErrorMessage(err)
		snap.Stale = snap.Reading != nil
	} else {
		snap.Reading = reading
		snap.UpdatedAt = now
		snap.Error = ""
		snap.Stale = false
	}
	p.latest[name] = snap
	p.mu.Unlock()

	if err != nil {
		logging.Warn("Poll failed, keeping last value",
			zap.String("parameter", name),
			zap.Bool("has_value", snap.Reading != nil),
			zap.Error(err),
		)
	} else {
		logging.Debug("Poll succeeded", zap.String("parameter", name), zap.Int("fields", len(reading)))
	}

	p.sinksMu.RLock()
	sinks := slices.Clone(p.sinks)
	p.sinksMu.RUnlock()
	for _, s := range sinks {
		s.Publish(snap)
	}
	return snap
}

// Latest returns the cached snapshot of a parameter
func (p *Poller) Latest(name string) (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.latest[name]
	return s, ok
}

// Snapshots returns every cached snapshot sorted by parameter name
func (p *Poller) Snapshots() []Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Snapshot, 0, len(p.latest))
	for _, s := range p.latest {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b Snapshot) int {
		if a.Parameter < b.Parameter {
			return -1
		}
		if a.Parameter > b.Parameter {
			return 1
		}
		return 0
	})
	return out
}
