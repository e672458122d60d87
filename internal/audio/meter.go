package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-selftest/internal/capture"
)

// pcmChunkSize is how much PCM the feeder reads at once.
const pcmChunkSize = 4096

// ErrUnsupportedFormat is returned for PCM that is not 16-bit stereo.
var ErrUnsupportedFormat = errors.New("unsupported pcm format")

// Reading is one meter tick.
type Reading struct {
	// Level is the spectrum average scaled into [0, 1].
	Level float64
	// RMSDB and PeakDB are measured since the previous tick.
	RMSDB  float64
	PeakDB float64
	// HeldPeakDB is PeakDB with peak hold applied.
	HeldPeakDB float64
	Clipped    bool
}

// Meter samples a live audio stream once per frame. A feeder goroutine pushes
// PCM into the analyser; each frame averages the spectrum into a Reading and
// schedules the next frame. Close stops scheduling: no callback runs after
// Close returns.
type Meter struct {
	src       io.Reader
	channels  int
	analyser  *Analyser
	scheduler FrameScheduler
	onReading func(Reading)
	now       func() time.Time

	accMu  sync.Mutex
	levels LevelData

	mu       sync.Mutex
	started  bool
	closed   bool
	cancel   CancelFunc
	spectrum []byte
	peak     *PeakHolder

	fed chan struct{}
}

// MeterOption configures a Meter.
type MeterOption func(*Meter)

// WithClock sets the time source used for peak hold.
func WithClock(now func() time.Time) MeterOption {
	return func(m *Meter) { m.now = now }
}

// WithPeakHold sets the peak hold duration.
func WithPeakHold(d time.Duration) MeterOption {
	return func(m *Meter) { m.peak = NewPeakHolder(d) }
}

// NewMeter creates a meter reading src into analyser. onReading is called from
// the scheduler with every Reading and must not call Close.
func NewMeter(src capture.PCMSource, analyser *Analyser, scheduler FrameScheduler, onReading func(Reading), opts ...MeterOption) (*Meter, error) {
	format := src.Format()
	if format.Channels != 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, format.Channels)
	}

	m := &Meter{
		src:       src.PCM(),
		channels:  format.Channels,
		analyser:  analyser,
		scheduler: scheduler,
		onReading: onReading,
		now:       time.Now,
		spectrum:  make([]byte, analyser.FrequencyBinCount()),
		peak:      NewPeakHolder(DefaultPeakHoldDuration),
		fed:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Start launches the feeder and schedules the first frame. It is a no-op on
// a started or closed meter.
func (m *Meter) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.closed {
		return
	}
	m.started = true
	go m.feed()
	m.cancel = m.scheduler.RequestFrame(m.tick)
}

// Fed is closed once the feeder has stopped reading, which happens when the
// source ends or the analyser is closed.
func (m *Meter) Fed() <-chan struct{} {
	return m.fed
}

// Close cancels the pending frame. It does not wait for the feeder, which ends
// when the capture track is stopped.
func (m *Meter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if !m.started {
		close(m.fed)
	}
	return nil
}

func (m *Meter) feed() {
	defer close(m.fed)

	buf := make([]byte, pcmChunkSize)
	var mono []float64
	for {
		n, err := io.ReadFull(m.src, buf)
		if n > 0 {
			chunk := buf[:n-n%(2*m.channels)]
			mono = DecodeMono(chunk, m.channels, mono[:0])
			if werr := m.analyser.Write(mono); werr != nil {
				return
			}
			m.accMu.Lock()
			ProcessSamples(chunk, &m.levels)
			m.accMu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.ErrClosedPipe) {
				slog.Debug("audio feed ended", "error", err)
			}
			return
		}
	}
}

func (m *Meter) tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.cancel = nil

	n, err := m.analyser.ByteFrequencyData(m.spectrum)
	if err != nil {
		// The analyser was released underneath us; stop the loop.
		m.closed = true
		return
	}

	m.accMu.Lock()
	levels := CalculateLevels(&m.levels)
	m.levels.Reset()
	m.accMu.Unlock()

	peak := levels.Peak()
	m.onReading(Reading{
		Level:      NormalizedLevel(m.spectrum[:n]),
		RMSDB:      levels.RMS(),
		PeakDB:     peak,
		HeldPeakDB: m.peak.Update(peak, m.now()),
		Clipped:    levels.Clipped(),
	})

	m.cancel = m.scheduler.RequestFrame(m.tick)
}
