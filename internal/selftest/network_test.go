package selftest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/oszuidwest/zwfm-selftest/internal/network"
	"github.com/oszuidwest/zwfm-selftest/internal/readiness"
)

func TestNetworkTestRecordsResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	prober := network.NewMockProber(ctrl)
	prober.EXPECT().Probe(gomock.Any(), "https://example.com").Return(40*time.Millisecond, nil).Times(3)

	s := NewSession(nil, prober, Options{
		Connectivity: func() network.Config {
			return network.Config{Endpoints: []string{"https://example.com"}, Iterations: 3, Delay: time.Millisecond}
		},
	})

	_, ok := s.Network.Last()
	assert.False(t, ok)

	var progress []int
	runID, stats, err := s.Network.Run(context.Background(), func(pct int) { progress = append(progress, pct) })
	require.NoError(t, err)
	assert.NotEmpty(t, runID)
	assert.Equal(t, network.Success, stats.Status)
	assert.Equal(t, []int{33, 66, 100}, progress)
	assert.False(t, s.Network.Running())

	last, ok := s.Network.Last()
	require.True(t, ok)
	assert.Equal(t, stats.Status, last.Status)

	res, ok := s.Readiness.Result(readiness.Connectivity)
	require.True(t, ok)
	assert.True(t, res.Passed)
	assert.True(t, s.Readiness.Report().Ready)
}

func TestNetworkTestSingleRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	prober := network.NewMockProber(ctrl)

	started := make(chan struct{})
	release := make(chan struct{})
	prober.EXPECT().Probe(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, string) (time.Duration, error) {
		close(started)
		<-release
		return 10 * time.Millisecond, nil
	})

	s := NewSession(nil, prober, Options{
		Connectivity: func() network.Config {
			return network.Config{Endpoints: []string{"tcp://a:1"}, Iterations: 1}
		},
	})

	done := make(chan error, 1)
	go func() {
		_, _, err := s.Network.Run(context.Background(), nil)
		done <- err
	}()

	<-started
	_, _, err := s.Network.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(release)
	require.NoError(t, <-done)
}

func TestNetworkTestNoEndpoints(t *testing.T) {
	s := NewSession(nil, nil, Options{})
	_, _, err := s.Network.Run(context.Background(), nil)
	assert.ErrorIs(t, err, network.ErrNoEndpoints)

	_, recorded := s.Readiness.Result(readiness.Connectivity)
	assert.False(t, recorded)
}
