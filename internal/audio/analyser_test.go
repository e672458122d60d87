package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnalyserRejectsBadSizes(t *testing.T) {
	for _, size := range []int{0, 16, 1000, 2047} {
		_, err := NewAnalyser(size)
		assert.Error(t, err, "size %d", size)
	}
	a, err := NewAnalyser(DefaultFFTSize)
	require.NoError(t, err)
	assert.Equal(t, 1024, a.FrequencyBinCount())
}

func TestAnalyserSilenceIsZero(t *testing.T) {
	a, err := NewAnalyser(DefaultFFTSize)
	require.NoError(t, err)
	defer a.Close()

	spectrum := make([]byte, a.FrequencyBinCount())
	n, err := a.ByteFrequencyData(spectrum)
	require.NoError(t, err)
	assert.Equal(t, len(spectrum), n)
	for _, v := range spectrum {
		require.Zero(t, v)
	}
	assert.Zero(t, NormalizedLevel(spectrum))
}

func TestAnalyserSinePeak(t *testing.T) {
	a, err := NewAnalyser(DefaultFFTSize)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Write(sine(DefaultFFTSize, 64, DefaultFFTSize, 0.5)))

	spectrum := make([]byte, a.FrequencyBinCount())
	_, err = a.ByteFrequencyData(spectrum)
	require.NoError(t, err)

	assert.Equal(t, byte(255), spectrum[64])
	assert.Less(t, spectrum[500], byte(10))
}

func TestAnalyserNoiseIsLoud(t *testing.T) {
	a, err := NewAnalyser(DefaultFFTSize)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Write(noise(DefaultFFTSize, 0.5)))

	spectrum := make([]byte, a.FrequencyBinCount())
	_, err = a.ByteFrequencyData(spectrum)
	require.NoError(t, err)
	assert.Greater(t, NormalizedLevel(spectrum), 0.5)
}

func TestAnalyserClose(t *testing.T) {
	a, err := NewAnalyser(DefaultFFTSize)
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	assert.ErrorIs(t, a.Write([]float64{0.1}), ErrAnalyserClosed)
	_, err = a.ByteFrequencyData(make([]byte, 8))
	assert.ErrorIs(t, err, ErrAnalyserClosed)
}

func TestNormalizedLevel(t *testing.T) {
	assert.Zero(t, NormalizedLevel(nil))
	assert.InDelta(t, 0.5, NormalizedLevel([]byte{64, 64, 64, 64}), 1e-9)
	assert.InDelta(t, 1.0, NormalizedLevel([]byte{255, 255}), 1e-9)
	assert.InDelta(t, 0.25, NormalizedLevel([]byte{0, 64}), 1e-9)
	assert.InDelta(t, 0.5, NormalizedLevel([]byte{0, 128}), 1e-9)
}
