package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNewerVersion(t *testing.T) {
	tests := []struct {
		latest, current string
		want            bool
	}{
		{"1.2.0", "1.1.9", true},
		{"v1.2.0", "1.2.0", false},
		{"1.10.0", "1.9.0", true},
		{"1.0.0", "2.0.0", false},
		{"garbage", "1.0.0", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isNewerVersion(tt.latest, tt.current), "%s vs %s", tt.latest, tt.current)
	}
}

func TestVersionCheckerCheckNow(t *testing.T) {
	var etags []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		etags = append(etags, r.Header.Get("If-None-Match"))
		if r.Header.Get("If-None-Match") == `"abc"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"abc"`)
		_, _ = w.Write([]byte(`{"tag_name": "v9.9.9"}`))
	}))
	defer srv.Close()

	vc := NewVersionChecker()
	vc.client = srv.Client()
	vc.url = srv.URL

	require.NoError(t, vc.CheckNow(context.Background()))
	assert.Equal(t, "9.9.9", vc.Info().Latest)

	require.NoError(t, vc.CheckNow(context.Background()))
	assert.Equal(t, []string{"", `"abc"`}, etags)
	assert.Equal(t, "9.9.9", vc.Info().Latest)
}

func TestVersionCheckerSkipsPrerelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name": "v2.0.0-rc1", "prerelease": true}`))
	}))
	defer srv.Close()

	vc := NewVersionChecker()
	vc.client = srv.Client()
	vc.url = srv.URL

	require.NoError(t, vc.CheckNow(context.Background()))
	assert.Empty(t, vc.Info().Latest)
	assert.False(t, vc.Info().UpdateAvail)
}

func TestVersionCheckerRetriesOnRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	vc := NewVersionChecker()
	vc.client = srv.Client()
	vc.url = srv.URL

	assert.ErrorIs(t, vc.CheckNow(context.Background()), errRetryable)
}

func TestVersionCheckerRetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < versionMaxAttempts {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"tag_name": "v3.1.0"}`))
	}))
	defer srv.Close()

	vc := NewVersionChecker()
	vc.client = srv.Client()
	vc.url = srv.URL
	vc.retryDelay = time.Millisecond

	vc.checkWithRetry(context.Background())
	assert.EqualValues(t, versionMaxAttempts, hits.Load())
	assert.Equal(t, "3.1.0", vc.Info().Latest)
}

func TestVersionCheckerGivesUpOnClientError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	vc := NewVersionChecker()
	vc.client = srv.Client()
	vc.url = srv.URL
	vc.retryDelay = time.Millisecond

	err := vc.CheckNow(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, errRetryable)

	vc.checkWithRetry(context.Background())
	assert.EqualValues(t, 2, hits.Load())
}

func TestVersionCheckerStop(t *testing.T) {
	vc := NewVersionChecker()
	vc.Stop()

	vc.Start(context.Background())
	vc.Stop()
	vc.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, pause(ctx, time.Hour))
}
