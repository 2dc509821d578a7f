// Package resolver turns hostnames into ordered candidate address lists for
// the connector. Implementations decide the ordering policy; the connector
// consumes the list front to back.
package resolver

import (
	"context"
	"net/netip"
	"slices"
)

// Resolver defines the interface for hostname resolution.
type Resolver interface {
	// Resolve resolves the hostname into candidate addresses, ordered by
	// preference and deduplicated. An empty list with a nil error means the
	// name has no usable records.
	Resolve(ctx context.Context, host string) ([]netip.Addr, error)
}

// dedup removes duplicate addresses keeping the first occurrence. Addresses
// are unmapped so an IPv4 and its 4-in-6 form count as the same candidate.
func dedup(addrs []netip.Addr) []netip.Addr {
	out := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		a = a.Unmap()
		if !slices.Contains(out, a) {
			out = append(out, a)
		}
	}
	return out
}
