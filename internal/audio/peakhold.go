package audio

import (
	"sync"
	"time"
)

// DefaultPeakHoldDuration is the default duration that peak values are held before decaying.
const DefaultPeakHoldDuration = 3000 * time.Millisecond

// PeakHolder tracks the peak-hold value of a level meter.
// It is safe for concurrent use.
type PeakHolder struct {
	mu           sync.Mutex
	heldPeak     float64
	heldAt       time.Time
	holdDuration time.Duration
}

// NewPeakHolder creates a peak holder at the minimum level with the given
// hold duration. A non-positive duration selects DefaultPeakHoldDuration.
func NewPeakHolder(hold time.Duration) *PeakHolder {
	if hold <= 0 {
		hold = DefaultPeakHoldDuration
	}
	return &PeakHolder{
		heldPeak:     MinDB,
		holdDuration: hold,
	}
}

// Update records a new peak and returns the held peak.
func (p *PeakHolder) Update(peak float64, now time.Time) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if peak >= p.heldPeak || now.Sub(p.heldAt) > p.holdDuration {
		p.heldPeak = peak
		p.heldAt = now
	}
	return p.heldPeak
}

// Reset clears the held peak to the minimum level.
func (p *PeakHolder) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heldPeak = MinDB
	p.heldAt = time.Time{}
}
