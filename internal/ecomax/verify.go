package ecomax

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ecomax360/internal/logging"
	"github.com/muurk/ecomax360/internal/params"
	"github.com/muurk/ecomax360/internal/payload"
)

// VerificationOptions configures how a write is checked against the
// thermostat afterwards
type VerificationOptions struct {
	// MaxRetries is the number of re-reads after the first one
	// Default: 3
	MaxRetries int

	// InitialDelay gives the thermostat time to apply the change
	// Default: 1s
	InitialDelay time.Duration

	// RetryDelay is the delay between re-reads
	// Default: 2s
	RetryDelay time.Duration

	// UseExponentialBackoff doubles RetryDelay after each re-read, up to
	// MaxRetryDelay
	UseExponentialBackoff bool
	MaxRetryDelay         time.Duration
}

// DefaultVerificationOptions returns sensible defaults for verification
func DefaultVerificationOptions() *VerificationOptions {
	return &VerificationOptions{
		MaxRetries:            3,
		InitialDelay:          1 * time.Second,
		RetryDelay:            2 * time.Second,
		UseExponentialBackoff: true,
		MaxRetryDelay:         10 * time.Second,
	}
}

// Expectation is what the thermostat should report after a write. Nil
// fields are not checked.
type Expectation struct {
	Preset        *string
	DaySetpoint   *float64
	NightSetpoint *float64
}

// setpointTolerance absorbs float32 rounding on the wire
const setpointTolerance = 0.05

// VerificationResult contains the results of a write verification
type VerificationResult struct {
	Success    bool
	Attempts   int
	Reading    payload.Reading // Last thermostat reading
	Mismatches []string
	Error      error
}

// Mismatches compares a thermostat reading with the expectation
func (e Expectation) Mismatches(r payload.Reading) []string {
	var mismatches []string

	if e.Preset != nil {
		mode, ok := r.Int("MODE")
		got, known := params.CodeToPreset(mode)
		switch {
		case !ok:
			mismatches = append(mismatches, "preset: MODE missing from reading")
		case !known || got != *e.Preset:
			mismatches = append(mismatches, fmt.Sprintf("preset: expected %s, got %s (mode %d)", *e.Preset, got, mode))
		}
	}
	check := func(key, label string, want *float64) {
		if want == nil {
			return
		}
		got, ok := r.Float(key)
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("%s: %s missing from reading", label, key))
			return
		}
		if math.Abs(got-*want) > setpointTolerance {
			mismatches = append(mismatches, fmt.Sprintf("%s: expected %.1f, got %.1f", label, *want, got))
		}
	}
	check("JOUR", "day setpoint", e.DaySetpoint)
	check("NUIT", "night setpoint", e.NightSetpoint)

	return mismatches
}

// Verify re-reads the thermostat until it reports what e expects or the
// retries run out
func (c *Client) Verify(ctx context.Context, e Expectation, opts *VerificationOptions) *VerificationResult {
	if opts == nil {
		opts = DefaultVerificationOptions()
	}

	result := &VerificationResult{}

	if err := sleepCtx(ctx, opts.InitialDelay); err != nil {
		result.Error = err
		return result
	}

	currentDelay := opts.RetryDelay
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, currentDelay); err != nil {
				result.Error = err
				return result
			}
			if opts.UseExponentialBackoff {
				currentDelay *= 2
				if opts.MaxRetryDelay > 0 && currentDelay > opts.MaxRetryDelay {
					currentDelay = opts.MaxRetryDelay
				}
			}
		}
		result.Attempts++

		reading, err := c.Read(ctx, params.GetThermostat)
		if err != nil {
			result.Error = fmt.Errorf("attempt %d: failed to read thermostat: %w", attempt+1, err)
			continue
		}
		result.Reading = reading
		result.Mismatches = e.Mismatches(reading)

		if len(result.Mismatches) == 0 {
			result.Success = true
			result.Error = nil
			return result
		}

		logging.Debug("Thermostat does not match yet",
			zap.Int("attempt", result.Attempts),
			zap.Strings("mismatches", result.Mismatches),
		)
		result.Error = fmt.Errorf("verification failed after %d attempts: %s", result.Attempts, formatMismatches(result.Mismatches))
	}

	return result
}

// formatMismatches creates a human-readable summary of mismatches
func formatMismatches(mismatches []string) string {
	switch len(mismatches) {
	case 0:
		return "none"
	case 1:
		return mismatches[0]
	}
	return fmt.Sprintf("%d mismatches: %s", len(mismatches), strings.Join(mismatches, "; "))
}

// SetPresetAndVerify switches the preset and checks the thermostat took it
func (c *Client) SetPresetAndVerify(ctx context.Context, preset string, opts *VerificationOptions) *VerificationResult {
	if err := c.SetPreset(ctx, preset); err != nil {
		return &VerificationResult{Error: fmt.Errorf("update failed: %w", err)}
	}
	return c.Verify(ctx, Expectation{Preset: &preset}, opts)
}

// SetSetpointAndVerify writes a setpoint and checks the thermostat reports it
func (c *Client) SetSetpointAndVerify(ctx context.Context, night bool, celsius float64, opts *VerificationOptions) *VerificationResult {
	if err := c.SetSetpoint(ctx, night, celsius); err != nil {
		return &VerificationResult{Error: fmt.Errorf("update failed: %w", err)}
	}
	e := Expectation{DaySetpoint: &celsius}
	if night {
		e = Expectation{NightSetpoint: &celsius}
	}
	return c.Verify(ctx, e, opts)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
