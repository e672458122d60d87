package network

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oszuidwest/zwfm-selftest/internal/util"
)

// Probe defaults.
const (
	DefaultIterations = 5
	DefaultTimeout    = 8 * time.Second
	DefaultDelay      = 200 * time.Millisecond
)

// ErrNoEndpoints is returned when a probe has nothing to measure.
var ErrNoEndpoints = errors.New("no connectivity endpoints configured")

// Config controls a probe run. Zero values select the defaults.
type Config struct {
	// Endpoints are tried in order each iteration; the first answer counts.
	Endpoints  []string
	Iterations int
	// Timeout applies to each endpoint attempt.
	Timeout time.Duration
	// Delay separates iterations.
	Delay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Iterations <= 0 {
		c.Iterations = DefaultIterations
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Delay <= 0 {
		c.Delay = DefaultDelay
	}
	return c
}

// Probe runs repeated timed round trips against a list of endpoints.
type Probe struct {
	prober Prober
	cfg    Config
}

// NewProbe creates a probe.
func NewProbe(prober Prober, cfg Config) *Probe {
	return &Probe{prober: prober, cfg: cfg.withDefaults()}
}

// Run performs every iteration and returns the computed stats. onProgress, if
// not nil, is called after each iteration with the completed percentage.
func (p *Probe) Run(ctx context.Context, onProgress func(pct int)) (Stats, error) {
	if len(p.cfg.Endpoints) == 0 {
		return Stats{}, ErrNoEndpoints
	}

	slog.Info("starting connectivity test", "endpoints", len(p.cfg.Endpoints), "iterations", p.cfg.Iterations)

	samples := make([]Sample, 0, p.cfg.Iterations)
	for i := range p.cfg.Iterations {
		if i > 0 {
			if err := sleep(ctx, p.cfg.Delay); err != nil {
				return Stats{}, util.WrapError("run connectivity test", err)
			}
		}

		sample := p.iteration(ctx)
		if err := ctx.Err(); err != nil {
			return Stats{}, util.WrapError("run connectivity test", err)
		}
		samples = append(samples, sample)

		if onProgress != nil {
			onProgress((i + 1) * 100 / p.cfg.Iterations)
		}
	}

	stats := ComputeStats(samples)
	slog.Info("connectivity test finished", "status", stats.Status, "valid_samples", stats.ValidSamples)
	return stats, nil
}

// iteration returns the round trip of the first endpoint that answers, or
// the sentinel when none does.
func (p *Probe) iteration(ctx context.Context) Sample {
	for _, endpoint := range p.cfg.Endpoints {
		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		rtt, err := p.prober.Probe(attemptCtx, endpoint)
		cancel()
		if err == nil {
			return Sample{RTTMs: float64(rtt.Microseconds()) / 1000}
		}
		slog.Debug("endpoint did not answer", "endpoint", endpoint, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return Sample{RTTMs: SentinelMs, TimedOut: true}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
