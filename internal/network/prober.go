package network

//go:generate mockgen -destination=mock_network.go -package=network github.com/oszuidwest/zwfm-selftest/internal/network Prober

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrUnsupportedScheme is returned for endpoints the prober cannot reach.
var ErrUnsupportedScheme = errors.New("unsupported endpoint scheme")

// Prober performs one timed round trip to an endpoint. The deadline comes
// from ctx.
type Prober interface {
	Probe(ctx context.Context, endpoint string) (time.Duration, error)
}

// HTTPProber times a HEAD request. Any HTTP response counts as reachable.
type HTTPProber struct {
	Client *http.Client
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, endpoint string) (time.Duration, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return 0, err
	}
	// Defeat intermediate caches.
	q := u.Query()
	q.Set("_", strconv.FormatInt(time.Now().UnixNano(), 36))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), http.NoBody)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Cache-Control", "no-cache")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	rtt := time.Since(start)
	_ = resp.Body.Close() //nolint:errcheck // HEAD responses carry no body
	return rtt, nil
}

// TCPProber times a TCP handshake.
type TCPProber struct {
	Dialer net.Dialer
}

// Probe implements Prober. The endpoint is host:port or tcp://host:port.
func (p *TCPProber) Probe(ctx context.Context, endpoint string) (time.Duration, error) {
	address := endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Scheme == "tcp" {
		address = u.Host
	}

	start := time.Now()
	conn, err := p.Dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return 0, err
	}
	rtt := time.Since(start)
	_ = conn.Close() //nolint:errcheck // Connection was only used for timing
	return rtt, nil
}

// SchemeProber dispatches on the endpoint scheme: http and https go to HTTP,
// tcp to TCP and icmp to ICMP.
type SchemeProber struct {
	HTTP Prober
	TCP  Prober
	ICMP Prober
}

// NewSchemeProber returns a prober supporting every endpoint scheme.
func NewSchemeProber() *SchemeProber {
	return &SchemeProber{
		HTTP: &HTTPProber{Client: &http.Client{
			// The first response is the answer; redirects are not followed.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		}},
		TCP:  &TCPProber{},
		ICMP: &ICMPProber{},
	}
}

// Probe implements Prober.
func (p *SchemeProber) Probe(ctx context.Context, endpoint string) (time.Duration, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return 0, err
	}

	var target Prober
	switch u.Scheme {
	case "http", "https":
		target = p.HTTP
	case "tcp":
		target = p.TCP
	case "icmp":
		target = p.ICMP
	}
	if target == nil {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return target.Probe(ctx, endpoint)
}

// ValidateEndpoint checks that endpoint has a scheme SchemeProber supports
// and a host.
func ValidateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "http", "https", "tcp", "icmp":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q has no host", endpoint)
	}
	if u.Scheme == "tcp" && u.Port() == "" {
		return fmt.Errorf("endpoint %q has no port", endpoint)
	}
	return nil
}
