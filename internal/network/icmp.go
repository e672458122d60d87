package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// protocolICMP is the IANA protocol number of ICMP for IPv4.
const protocolICMP = 1

var icmpSeq atomic.Uint32

// ICMPProber times an ICMP echo request over an unprivileged datagram socket.
// On Linux this needs net.ipv4.ping_group_range to include the process group.
type ICMPProber struct {
	Resolver *net.Resolver
}

// Probe implements Prober. The endpoint is icmp://host or a bare host.
func (p *ICMPProber) Probe(ctx context.Context, endpoint string) (time.Duration, error) {
	host := endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Scheme == "icmp" {
		host = u.Hostname()
	}

	ip, err := p.resolve(ctx, host)
	if err != nil {
		return 0, err
	}

	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err != nil {
		return 0, fmt.Errorf("failed to open ICMP socket: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now()) //nolint:errcheck // Unblocks the pending read
	})
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return 0, err
		}
	}

	seq := int(icmpSeq.Add(1) & 0xffff)
	payload := []byte("zwfm-selftest")
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{ID: os.Getpid() & 0xffff, Seq: seq, Data: payload},
	}
	wire, err := msg.Marshal(nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	if _, err := conn.WriteTo(wire, &net.UDPAddr{IP: ip}); err != nil {
		return 0, p.ctxErr(ctx, err)
	}

	buf := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return 0, p.ctxErr(ctx, err)
		}
		reply, err := icmp.ParseMessage(protocolICMP, buf[:n])
		if err != nil || reply.Type != ipv4.ICMPTypeEchoReply {
			continue
		}
		// The kernel rewrites the ID on datagram sockets; match on sequence.
		if echo, ok := reply.Body.(*icmp.Echo); ok && echo.Seq == seq {
			return time.Since(start), nil
		}
	}
}

func (p *ICMPProber) resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, fmt.Errorf("%s is not an IPv4 address", host)
	}

	resolver := p.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("no IPv4 address for %s", host)
}

// ctxErr prefers the context's error over the deadline error it caused.
func (p *ICMPProber) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return context.DeadlineExceeded
	}
	return err
}
