// Package dialer provides transports that open a TCP connection to a single
// concrete address. Every type here satisfies the connector's Dialer
// contract; the connector owns failover across addresses, a dialer only
// handles one attempt.
package dialer

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"time"

	"github.com/database64128/tfo-go/v2"
)

const defaultDialerTimeout = 10 * time.Second

// Dialer opens a transport connection to one address.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type dialContextFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Direct dials the target over the local network.
type Direct struct {
	dial4 dialContextFunc
	dial6 dialContextFunc
}

// DirectOptions configures a Direct dialer.
type DirectOptions struct {
	// Timeout bounds each individual dial. Zero means 10s.
	Timeout time.Duration

	// BindIP4 and BindIP6 pin the local address per family.
	BindIP4 net.IP
	BindIP6 net.IP

	// DeviceName binds sockets to a network device. Only works on Linux.
	DeviceName string

	// FastOpen enables TCP Fast Open on outgoing connections.
	FastOpen bool
}

// NewDirect creates a Direct dialer with default options. Works on all
// platforms.
func NewDirect() *Direct {
	d, _ := NewDirectWithOptions(DirectOptions{})
	return d
}

// NewDirectWithOptions creates a new Direct dialer with the given options.
func NewDirectWithOptions(opts DirectOptions) (*Direct, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultDialerTimeout
	}
	dialer4 := &net.Dialer{Timeout: timeout}
	if opts.BindIP4 != nil {
		if opts.BindIP4.To4() == nil {
			return nil, errors.New("BindIP4 must be an IPv4 address")
		}
		dialer4.LocalAddr = &net.TCPAddr{
			IP: opts.BindIP4,
		}
	}
	dialer6 := &net.Dialer{Timeout: timeout}
	if opts.BindIP6 != nil {
		if opts.BindIP6.To4() != nil {
			return nil, errors.New("BindIP6 must be an IPv6 address")
		}
		dialer6.LocalAddr = &net.TCPAddr{
			IP: opts.BindIP6,
		}
	}
	if opts.DeviceName != "" {
		if err := dialerBindToDevice(dialer4, opts.DeviceName); err != nil {
			return nil, err
		}
		if err := dialerBindToDevice(dialer6, opts.DeviceName); err != nil {
			return nil, err
		}
	}

	dial4, dial6 := dialer4.DialContext, dialer6.DialContext
	if opts.FastOpen {
		dial4 = newFastOpenDialer(dialer4).DialContext
		dial6 = newFastOpenDialer(dialer6).DialContext
	}

	return &Direct{dial4: dial4, dial6: dial6}, nil
}

// DialContext dials the address, picking the IPv4 or IPv6 dialer by the
// target address family. Hostname targets use the IPv4 dialer's settings.
func (d *Direct) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if ap, err := netip.ParseAddrPort(address); err == nil {
		if addr := ap.Addr().Unmap(); addr.Is6() {
			return d.dial6(ctx, network, address)
		}
	}
	return d.dial4(ctx, network, address)
}

// fastOpenDialer adapts the TFO dialer's payload-taking DialContext to the
// plain transport contract.
type fastOpenDialer struct {
	dialer *tfo.Dialer
}

func newFastOpenDialer(base *net.Dialer) *fastOpenDialer {
	return &fastOpenDialer{dialer: &tfo.Dialer{Dialer: *base}}
}

func (f *fastOpenDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f.dialer.DialContext(ctx, network, address, nil)
}

var _ Dialer = (*Direct)(nil)
