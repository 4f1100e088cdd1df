package external

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// dnsTimeout bounds the lookup performed before each outbound dial.
const dnsTimeout = 500 * time.Millisecond

var (
	// ErrEgressBlocked is returned when an upstream host resolves to a
	// private, loopback or link-local address.
	ErrEgressBlocked = errors.New("egress: destination address is blocked")
	// ErrEgressDNS is returned when the upstream host cannot be resolved.
	ErrEgressDNS = errors.New("egress: DNS resolution failed")
	// ErrEgressRedirects is returned when the redirect limit is exceeded.
	ErrEgressRedirects = errors.New("egress: too many redirects")
)

// blockedCIDRs covers loopback, RFC 1918, link-local (including the cloud
// metadata endpoint), CGNAT and their IPv6 counterparts.
var blockedCIDRs = []string{
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
}

var blockedNets = mustParseCIDRs(blockedCIDRs)

func mustParseCIDRs(cidrs []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(fmt.Sprintf("egress: bad CIDR %q: %v", c, err))
		}
		nets = append(nets, n)
	}
	return nets
}

func isBlockedIP(ip net.IP) bool {
	for _, n := range blockedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Resolver abstracts DNS resolution for tests.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// GuardedTransport refuses to dial upstream hosts that resolve to internal
// addresses. Every resolved address is checked before the first one is
// dialed, so a mixed answer is rejected as a whole.
type GuardedTransport struct {
	Base     *http.Transport
	Resolver Resolver
}

// NewGuardedTransport wraps base and takes over its DialContext. A nil base
// gets a clone of the default transport without proxy support, since a
// proxy would be dialed in place of the checked host.
func NewGuardedTransport(base *http.Transport) *GuardedTransport {
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
		base.Proxy = nil
	}
	gt := &GuardedTransport{Base: base}
	base.DialContext = gt.dialContext
	return gt
}

// RoundTrip implements http.RoundTripper.
func (gt *GuardedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return gt.Base.RoundTrip(req)
}

func (gt *GuardedTransport) resolver() Resolver {
	if gt.Resolver != nil {
		return gt.Resolver
	}
	return net.DefaultResolver
}

func (gt *GuardedTransport) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("egress: invalid address %q: %w", addr, err)
	}

	ip, err := checkHost(ctx, gt.resolver(), host)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
}

// checkHost resolves host and returns the first address when none of the
// resolved addresses is blocked.
func checkHost(ctx context.Context, r Resolver, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return nil, fmt.Errorf("%w: %s", ErrEgressBlocked, ip)
		}
		return ip, nil
	}

	dnsCtx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	addrs, err := r.LookupIPAddr(dnsCtx, host)
	if err != nil {
		return nil, fmt.Errorf("%w: host %q: %v", ErrEgressDNS, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: host %q has no addresses", ErrEgressDNS, host)
	}
	for _, a := range addrs {
		if isBlockedIP(a.IP) {
			return nil, fmt.Errorf("%w: %s (resolved from %s)", ErrEgressBlocked, a.IP, host)
		}
	}
	return addrs[0].IP, nil
}

// checkRedirect applies the same address check to redirect targets.
func checkRedirect(maxRedirects int, r Resolver) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: limit is %d", ErrEgressRedirects, maxRedirects)
		}
		_, err := checkHost(req.Context(), r, req.URL.Hostname())
		return err
	}
}

// NewGuardedHTTPClient returns a client for upstream APIs outside local
// development. Redirect targets are checked like the original host.
func NewGuardedHTTPClient(timeout time.Duration, maxRedirects int) *http.Client {
	gt := NewGuardedTransport(nil)
	return &http.Client{
		Transport:     gt,
		Timeout:       timeout,
		CheckRedirect: checkRedirect(maxRedirects, gt.resolver()),
	}
}
