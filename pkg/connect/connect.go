// Package connect establishes a single TCP connection for a logical
// endpoint that may resolve to zero, one, or many candidate addresses.
// Candidates are tried strictly in order until one succeeds or all fail;
// everything around that (resolution, TLS, pooling) is a collaborator
// consumed through a narrow interface.
package connect

import (
	"net"
	"net/netip"
	"slices"
	"strconv"
)

// Endpoint is implemented by request types that identify the logical target
// of a connection, independent of which concrete address ends up serving it.
type Endpoint interface {
	Hostname() string
}

// Host is a minimal Endpoint wrapping a "hostname" or "hostname:port" string.
type Host string

// Hostname returns the wrapped string as-is, including any port suffix.
func (h Host) Hostname() string { return string(h) }

// parseHost splits an optional trailing ":port" off a hostname.
// Returns the input unchanged with port 0 when no valid port is present.
func parseHost(host string) (hostname string, port uint16) {
	h, p, err := net.SplitHostPort(host)
	if err != nil {
		return host, 0
	}
	n, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		return host, 0
	}
	return h, uint16(n)
}

type addrsKind uint8

const (
	addrsNone addrsKind = iota
	addrsOne
	addrsMulti
)

// Addrs is the resolved form of a logical endpoint: no candidate address,
// a single address, or an ordered queue of addresses. Queue order is the
// priority order and no address appears twice.
type Addrs struct {
	kind  addrsKind
	one   netip.AddrPort
	multi []netip.AddrPort
}

// NoAddrs returns the unresolved descriptor.
func NoAddrs() Addrs { return Addrs{} }

// OneAddr returns a single-address descriptor. No queue is ever allocated
// for it.
func OneAddr(addr netip.AddrPort) Addrs {
	return Addrs{kind: addrsOne, one: addr}
}

// AddrList builds a descriptor from an ordered candidate list. Duplicates
// are dropped keeping the first occurrence; zero addresses collapse to the
// unresolved descriptor and a single address to the single-address form.
func AddrList(addrs []netip.AddrPort) Addrs {
	dedup := make([]netip.AddrPort, 0, len(addrs))
	for _, a := range addrs {
		if !slices.Contains(dedup, a) {
			dedup = append(dedup, a)
		}
	}
	switch len(dedup) {
	case 0:
		return Addrs{}
	case 1:
		return Addrs{kind: addrsOne, one: dedup[0]}
	default:
		return Addrs{kind: addrsMulti, multi: dedup}
	}
}

// IsUnresolved reports whether the descriptor carries no candidate address.
func (a Addrs) IsUnresolved() bool { return a.kind == addrsNone }

// Len returns the number of candidate addresses.
func (a Addrs) Len() int {
	switch a.kind {
	case addrsOne:
		return 1
	case addrsMulti:
		return len(a.multi)
	default:
		return 0
	}
}

// List returns the candidate addresses in priority order.
func (a Addrs) List() []netip.AddrPort {
	switch a.kind {
	case addrsOne:
		return []netip.AddrPort{a.one}
	case addrsMulti:
		return slices.Clone(a.multi)
	default:
		return nil
	}
}

// Request describes one logical connect target: the caller's endpoint, the
// target port and the candidate addresses produced by a resolver. A request
// is consumed by exactly one connector call.
type Request[T Endpoint] struct {
	endpoint T
	port     uint16
	addrs    Addrs
}

// NewRequest wraps an endpoint in a connect request. A trailing ":port" in
// the hostname, if any, becomes the request port.
func NewRequest[T Endpoint](endpoint T) *Request[T] {
	_, port := parseHost(endpoint.Hostname())
	return &Request[T]{endpoint: endpoint, port: port}
}

// SetPort overrides the port carried by the request.
func (r *Request[T]) SetPort(port uint16) { r.port = port }

// SetAddr supplies a single pre-resolved address for the request.
func (r *Request[T]) SetAddr(addr netip.AddrPort) { r.addrs = OneAddr(addr) }

// SetAddrs supplies the resolver's ordered candidate list.
func (r *Request[T]) SetAddrs(addrs []netip.AddrPort) { r.addrs = AddrList(addrs) }

// Endpoint returns the caller's endpoint descriptor.
func (r *Request[T]) Endpoint() T { return r.endpoint }

// Hostname returns the bare hostname with any ":port" suffix removed.
func (r *Request[T]) Hostname() string {
	host, _ := parseHost(r.endpoint.Hostname())
	return host
}

// Port returns the request port.
func (r *Request[T]) Port() uint16 { return r.port }

// Addrs returns the address descriptor attached to the request.
func (r *Request[T]) Addrs() Addrs { return r.addrs }
