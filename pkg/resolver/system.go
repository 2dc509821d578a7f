package resolver

import (
	"context"
	"net"
	"net/netip"
)

// System is a Resolver that uses the operating system's default resolver.
// Address order is whatever the OS returned.
type System struct {
	resolver *net.Resolver
}

// NewSystem creates a new System resolver.
func NewSystem() Resolver {
	return &System{resolver: net.DefaultResolver}
}

// Resolve resolves the hostname using the system resolver.
func (r *System) Resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	res := r.resolver
	if res == nil {
		res = net.DefaultResolver
	}
	ips, err := res.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	return dedup(ips), nil
}
