package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStatsDiscardsSentinel(t *testing.T) {
	stats := ComputeStats(SamplesFromMillis([]float64{50, 55, 60, 999, 52}))

	require.NotNil(t, stats.AvgPingMs)
	require.NotNil(t, stats.JitterMs)
	assert.Equal(t, 54.0, *stats.AvgPingMs)
	assert.Equal(t, 4.0, *stats.JitterMs)
	assert.Equal(t, Success, stats.Status)
	assert.Equal(t, 4, stats.ValidSamples)
	assert.Len(t, stats.Samples, 5)
}

func TestComputeStatsTooFewSamples(t *testing.T) {
	stats := ComputeStats(SamplesFromMillis([]float64{999, 999, 999, 50, 999}))
	assert.Equal(t, Failure, stats.Status)
	assert.Nil(t, stats.JitterMs)
	assert.Equal(t, 1, stats.ValidSamples)

	stats = ComputeStats(SamplesFromMillis([]float64{999, 999, 999, 999, 999}))
	assert.Equal(t, Failure, stats.Status)
	assert.Nil(t, stats.AvgPingMs)
	assert.Nil(t, stats.JitterMs)

	stats = ComputeStats(nil)
	assert.Equal(t, Failure, stats.Status)
}

func TestComputeStatsClassification(t *testing.T) {
	tests := []struct {
		name string
		ms   []float64
		want Status
	}{
		{"fast and stable", []float64{20, 21, 22, 20, 21}, Success},
		{"slow", []float64{200, 210, 205, 200, 205}, Warning},
		{"jittery", []float64{10, 130, 10, 130, 10}, Warning},
		{"very slow", []float64{400, 410, 405, 400, 405}, Failure},
		{"very jittery", []float64{10, 300, 10, 300, 10}, Failure},
		{"timeouts ignored", []float64{999, 20, 999, 22, 999}, Success},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeStats(SamplesFromMillis(tt.ms)).Status)
		})
	}
}

func TestClassifyBoundaries(t *testing.T) {
	assert.Equal(t, Success, Classify(150, 50))
	assert.Equal(t, Warning, Classify(151, 0))
	assert.Equal(t, Warning, Classify(0, 51))
	assert.Equal(t, Warning, Classify(300, 100))
	assert.Equal(t, Failure, Classify(301, 0))
	assert.Equal(t, Failure, Classify(0, 101))
}

func TestComputeStatsDoesNotAliasInput(t *testing.T) {
	in := SamplesFromMillis([]float64{10, 20})
	stats := ComputeStats(in)
	in[0].RTTMs = 500
	assert.Equal(t, 10.0, stats.Samples[0].RTTMs)
}
