package resolver

import (
	"context"
	"crypto/tls"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

const (
	defaultTimeout    = 2 * time.Second
	defaultRetryTimes = 2
	defaultDNSPort    = "53"
	defaultDNSTLSPort = "853"
)

// UDP is a Resolver that uses a UDP DNS server.
type UDP struct {
	addr       string
	client     *dns.Client
	retryTimes int
}

// NewUDP creates a new UDP DNS resolver.
func NewUDP(addr string, timeout time.Duration) Resolver {
	return &UDP{
		addr: addDefaultPort(addr, defaultDNSPort),
		client: &dns.Client{
			Timeout: timeoutOrDefault(timeout),
		},
		retryTimes: defaultRetryTimes,
	}
}

// TCP is a Resolver that uses a TCP DNS server.
type TCP struct {
	addr       string
	client     *dns.Client
	retryTimes int
}

// NewTCP creates a new TCP DNS resolver.
func NewTCP(addr string, timeout time.Duration) Resolver {
	return &TCP{
		addr: addDefaultPort(addr, defaultDNSPort),
		client: &dns.Client{
			Net:     "tcp",
			Timeout: timeoutOrDefault(timeout),
		},
		retryTimes: defaultRetryTimes,
	}
}

// TLS is a Resolver that uses a DNS-over-TLS server.
type TLS struct {
	addr       string
	client     *dns.Client
	retryTimes int
}

// NewTLS creates a new DNS-over-TLS resolver.
func NewTLS(addr string, timeout time.Duration, sni string, insecure bool) Resolver {
	return &TLS{
		addr: addDefaultPort(addr, defaultDNSTLSPort),
		client: &dns.Client{
			Net:     "tcp-tls",
			Timeout: timeoutOrDefault(timeout),
			TLSConfig: &tls.Config{
				ServerName:         sni,
				InsecureSkipVerify: insecure, //nolint:gosec // user configurable
			},
		},
		retryTimes: defaultRetryTimes,
	}
}

func addDefaultPort(addr, defaultPort string) string {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return net.JoinHostPort(addr, defaultPort)
	}
	return addr
}

func timeoutOrDefault(timeout time.Duration) time.Duration {
	if timeout == 0 {
		return defaultTimeout
	}
	return timeout
}

// skipCNAMEChain skips the CNAME chain and returns the last CNAME target.
func skipCNAMEChain(answers []dns.RR) string {
	var lastCNAME string
	for _, a := range answers {
		if cname, ok := a.(*dns.CNAME); ok {
			if lastCNAME == "" {
				lastCNAME = cname.Target
			} else if cname.Hdr.Name == lastCNAME {
				lastCNAME = cname.Target
			} else {
				return lastCNAME
			}
		}
	}
	return lastCNAME
}

type dnsResolver interface {
	exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error)
	getRetryTimes() int
}

func (r *UDP) exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	resp, _, err := r.client.ExchangeContext(ctx, m, r.addr)
	return resp, err
}

func (r *UDP) getRetryTimes() int {
	return r.retryTimes
}

func (r *TCP) exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	resp, _, err := r.client.ExchangeContext(ctx, m, r.addr)
	return resp, err
}

func (r *TCP) getRetryTimes() int {
	return r.retryTimes
}

func (r *TLS) exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	resp, _, err := r.client.ExchangeContext(ctx, m, r.addr)
	return resp, err
}

func (r *TLS) getRetryTimes() int {
	return r.retryTimes
}

// lookupA returns all A records for host in answer order, following the
// CNAME chain when the response carries only CNAMEs.
func lookupA(ctx context.Context, resolver dnsResolver, host string) ([]netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true
	resp, err := resolver.exchange(ctx, m)
	if err != nil {
		return nil, err
	}
	if len(resp.Answer) == 0 {
		return nil, nil
	}
	var ips []netip.Addr
	hasCNAME := false
	for _, a := range resp.Answer {
		switch rec := a.(type) {
		case *dns.A:
			if ip, ok := netip.AddrFromSlice(rec.A.To4()); ok {
				ips = append(ips, ip)
			}
		case *dns.CNAME:
			hasCNAME = true
		}
	}
	if len(ips) == 0 && hasCNAME {
		return lookupA(ctx, resolver, skipCNAMEChain(resp.Answer))
	}
	return ips, nil
}

// lookupAAAA returns all AAAA records for host in answer order, following
// the CNAME chain when the response carries only CNAMEs.
func lookupAAAA(ctx context.Context, resolver dnsResolver, host string) ([]netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeAAAA)
	m.RecursionDesired = true
	resp, err := resolver.exchange(ctx, m)
	if err != nil {
		return nil, err
	}
	if len(resp.Answer) == 0 {
		return nil, nil
	}
	var ips []netip.Addr
	hasCNAME := false
	for _, a := range resp.Answer {
		switch rec := a.(type) {
		case *dns.AAAA:
			if ip, ok := netip.AddrFromSlice(rec.AAAA.To16()); ok {
				ips = append(ips, ip)
			}
		case *dns.CNAME:
			hasCNAME = true
		}
	}
	if len(ips) == 0 && hasCNAME {
		return lookupAAAA(ctx, resolver, skipCNAMEChain(resp.Answer))
	}
	return ips, nil
}

// resolve runs the A and AAAA lookups in parallel, retrying each up to the
// resolver's retry count. IPv4 addresses are ordered ahead of IPv6. A lookup
// error is fatal only when it leaves the result empty.
func resolve(ctx context.Context, resolver dnsResolver, host string) ([]netip.Addr, error) {
	type lookupResult struct {
		ips []netip.Addr
		err error
	}
	ch4, ch6 := make(chan lookupResult, 1), make(chan lookupResult, 1)
	go func() {
		var ips []netip.Addr
		var lookupErr error
		for i := 0; i < resolver.getRetryTimes(); i++ {
			ips, lookupErr = lookupA(ctx, resolver, host)
			if lookupErr == nil {
				break
			}
		}
		ch4 <- lookupResult{ips, lookupErr}
	}()
	go func() {
		var ips []netip.Addr
		var lookupErr error
		for i := 0; i < resolver.getRetryTimes(); i++ {
			ips, lookupErr = lookupAAAA(ctx, resolver, host)
			if lookupErr == nil {
				break
			}
		}
		ch6 <- lookupResult{ips, lookupErr}
	}()
	result4, result6 := <-ch4, <-ch6
	addrs := dedup(append(result4.ips, result6.ips...))
	if len(addrs) == 0 {
		if result4.err != nil {
			return nil, result4.err
		}
		if result6.err != nil {
			return nil, result6.err
		}
	}
	return addrs, nil
}

// Resolve resolves the hostname using the UDP DNS server.
func (r *UDP) Resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	return resolve(ctx, r, host)
}

// Resolve resolves the hostname using the TCP DNS server.
func (r *TCP) Resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	return resolve(ctx, r, host)
}

// Resolve resolves the hostname using the DNS-over-TLS server.
func (r *TLS) Resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	return resolve(ctx, r, host)
}
