package audio

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Analyser defaults.
const (
	DefaultFFTSize     = 2048
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0
)

// ErrAnalyserClosed is returned by an Analyser after Close.
var ErrAnalyserClosed = errors.New("analyser closed")

// Analyser is a frequency analysis context for one audio stream. It keeps the
// most recent FFT-size window of mono samples and renders its spectrum as
// bytes, where 0 and 255 correspond to the minimum and maximum decibels.
// The caller that creates it owns it and must Close it.
// It is safe for concurrent use.
type Analyser struct {
	mu     sync.Mutex
	size   int
	fft    *fourier.FFT
	ring   []float64
	pos    int
	frame  []float64
	coeffs []complex128
	minDB  float64
	maxDB  float64
	closed bool
}

// NewAnalyser creates an analyser with the given FFT size, which must be a
// power of two of at least 32.
func NewAnalyser(fftSize int) (*Analyser, error) {
	if fftSize < 32 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("fft size %d is not a power of two >= 32", fftSize)
	}
	return &Analyser{
		size:   fftSize,
		fft:    fourier.NewFFT(fftSize),
		ring:   make([]float64, fftSize),
		frame:  make([]float64, fftSize),
		coeffs: make([]complex128, fftSize/2+1),
		minDB:  DefaultMinDecibels,
		maxDB:  DefaultMaxDecibels,
	}, nil
}

// FrequencyBinCount returns the number of spectrum bins, half the FFT size.
func (a *Analyser) FrequencyBinCount() int {
	return a.size / 2
}

// Write appends mono samples in [-1, 1] to the analysis window.
func (a *Analyser) Write(samples []float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrAnalyserClosed
	}
	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos = (a.pos + 1) % a.size
	}
	return nil
}

// ByteFrequencyData renders the current spectrum into dst and returns the
// number of bins written. The window is Blackman and the result is not
// smoothed over time.
func (a *Analyser) ByteFrequencyData(dst []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return 0, ErrAnalyserClosed
	}

	// Oldest sample first.
	n := copy(a.frame, a.ring[a.pos:])
	copy(a.frame[n:], a.ring[:a.pos])
	window.Blackman(a.frame)
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

	bins := min(len(dst), a.size/2)
	scale := 1 / float64(a.size)
	span := a.maxDB - a.minDB
	for k := range bins {
		db := 20 * math.Log10(cmplx.Abs(a.coeffs[k])*scale)
		v := 255 * (db - a.minDB) / span
		dst[k] = byte(math.Max(0, math.Min(255, v)))
	}
	return bins, nil
}

// Close releases the analyser. Further calls fail with ErrAnalyserClosed.
func (a *Analyser) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.ring = nil
	a.frame = nil
	a.coeffs = nil
	return nil
}

// NormalizedLevel averages the spectrum into one loudness value in [0, 1].
func NormalizedLevel(spectrum []byte) float64 {
	if len(spectrum) == 0 {
		return 0
	}
	var sum int
	for _, v := range spectrum {
		sum += int(v)
	}
	avg := float64(sum) / float64(len(spectrum))
	return math.Max(0, math.Min(1, avg/128))
}
