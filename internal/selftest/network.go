package selftest

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/oszuidwest/zwfm-selftest/internal/network"
	"github.com/oszuidwest/zwfm-selftest/internal/readiness"
)

// NetworkTest runs the connectivity probe on demand. Only one run may be in
// progress at a time.
type NetworkTest struct {
	prober    network.Prober
	readiness *readiness.Evaluator
	config    func() network.Config

	mu      sync.Mutex
	running bool
	last    *network.Stats
}

// NewNetworkTest creates a network test. config is read at the start of every run.
func NewNetworkTest(prober network.Prober, eval *readiness.Evaluator, config func() network.Config) *NetworkTest {
	return &NetworkTest{
		prober:    prober,
		readiness: eval,
		config:    config,
	}
}

// Run probes connectivity, records the result and returns it with a run ID.
func (n *NetworkTest) Run(ctx context.Context, onProgress func(pct int)) (string, network.Stats, error) {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return "", network.Stats{}, ErrAlreadyRunning
	}
	n.running = true
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		n.running = false
		n.mu.Unlock()
	}()

	runID := uuid.NewString()
	stats, err := network.NewProbe(n.prober, n.config()).Run(ctx, onProgress)
	if err != nil {
		return runID, network.Stats{}, err
	}

	n.readiness.RecordConnectivity(stats)

	n.mu.Lock()
	n.last = &stats
	n.mu.Unlock()
	return runID, stats, nil
}

// Running reports whether a run is in progress.
func (n *NetworkTest) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

// Last returns the stats of the last completed run.
func (n *NetworkTest) Last() (network.Stats, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.last == nil {
		return network.Stats{}, false
	}
	return *n.last, true
}
