package network

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProber(t *testing.T) {
	var method, cacheControl, bust string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		cacheControl = r.Header.Get("Cache-Control")
		bust = r.URL.Query().Get("_")
		// Any status counts as reachable.
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := &HTTPProber{Client: srv.Client()}
	rtt, err := p.Probe(context.Background(), srv.URL+"/ping")
	require.NoError(t, err)
	assert.Positive(t, rtt)
	assert.Equal(t, http.MethodHead, method)
	assert.Equal(t, "no-cache", cacheControl)
	assert.NotEmpty(t, bust)
}

func TestHTTPProberTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := (&HTTPProber{Client: srv.Client()}).Probe(ctx, srv.URL)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTCPProber(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if c, err := ln.Accept(); err == nil {
			_ = c.Close()
		}
	}()

	rtt, err := (&TCPProber{}).Probe(context.Background(), "tcp://"+ln.Addr().String())
	require.NoError(t, err)
	assert.Positive(t, rtt)
	<-done
}

func TestSchemeProberDispatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewSchemeProber()
	p.HTTP = &HTTPProber{Client: srv.Client()}
	_, err := p.Probe(context.Background(), srv.URL)
	require.NoError(t, err)

	_, err = p.Probe(context.Background(), "ftp://example.com")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestValidateEndpoint(t *testing.T) {
	assert.NoError(t, ValidateEndpoint("https://www.example.com/generate_204"))
	assert.NoError(t, ValidateEndpoint("tcp://1.1.1.1:443"))
	assert.NoError(t, ValidateEndpoint("icmp://9.9.9.9"))

	assert.ErrorIs(t, ValidateEndpoint("ftp://example.com"), ErrUnsupportedScheme)
	assert.Error(t, ValidateEndpoint("tcp://1.1.1.1"))
	assert.Error(t, ValidateEndpoint("https://"))
}
