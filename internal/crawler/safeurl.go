package crawler

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Resolver abstracts DNS lookups so the rebinding guard can be tested
// without touching the network.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// SafeURLGate rejects URLs that would let the crawler probe private or
// loopback networks, either through an IP literal or through DNS
// resolving to a blocked range (rebinding guard).
type SafeURLGate struct {
	resolver Resolver
}

// SafeURLGateOption configures optional dependencies.
type SafeURLGateOption func(*SafeURLGate)

// WithResolver overrides the default DNS resolver.
func WithResolver(resolver Resolver) SafeURLGateOption {
	return func(g *SafeURLGate) {
		if resolver != nil {
			g.resolver = resolver
		}
	}
}

// NewSafeURLGate builds a gate backed by the system resolver.
func NewSafeURLGate(opts ...SafeURLGateOption) *SafeURLGate {
	g := &SafeURLGate{resolver: net.DefaultResolver}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check returns nil when the URL is safe to fetch. A non-nil error
// wraps ErrUnsafeURL with the rejection reason. DNS failure is not a
// rejection: the fetch will fail on its own.
func (g *SafeURLGate) Check(ctx context.Context, rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("%w: unparsable url", ErrUnsafeURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q not allowed", ErrUnsafeURL, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrUnsafeURL)
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("%w: loopback host blocked", ErrUnsafeURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if reason, blocked := blockedIP(ip); blocked {
			return fmt.Errorf("%w: %s (%s)", ErrUnsafeURL, reason, ip)
		}
		return nil
	}

	addrs, err := g.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil
	}
	for _, addr := range addrs {
		if reason, blocked := blockedIP(addr.IP); blocked {
			return fmt.Errorf("%w: %s resolves to %s (%s)", ErrUnsafeURL, host, addr.IP, reason)
		}
	}
	return nil
}

// blockedIP tests the address against the SSRF blocklist: loopback,
// RFC1918, link-local, unique-local and the invalid 0/8 range.
func blockedIP(ip net.IP) (string, bool) {
	switch {
	case ip.IsLoopback():
		return "loopback address blocked", true
	case ip.IsPrivate():
		// Covers RFC1918 for IPv4 and fc00::/7 unique-local for IPv6.
		return "private IP address blocked", true
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return "link-local address blocked", true
	case ip.IsUnspecified():
		return "unspecified address blocked", true
	}
	if v4 := ip.To4(); v4 != nil && v4[0] == 0 {
		return "invalid address blocked", true
	}
	return "", false
}
