package connect

import (
	"context"
	"log/slog"
	"net/netip"

	"github.com/xflash-panda/connect-engine/pkg/resolver"
)

// Option configures a ConnectServiceFactory.
type Option func(*serviceOptions)

type serviceOptions struct {
	resolver resolver.Resolver
	dialer   Dialer
	logger   *slog.Logger
}

// WithResolver sets the resolver used to produce candidate addresses for
// requests that arrive without any. Defaults to the system resolver.
func WithResolver(r resolver.Resolver) Option {
	return func(o *serviceOptions) {
		o.resolver = r
	}
}

// WithDialer sets the transport used for the individual connect attempts.
func WithDialer(d Dialer) Option {
	return func(o *serviceOptions) {
		o.dialer = d
	}
}

// WithLogger sets the logger for connect diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *serviceOptions) {
		o.logger = l
	}
}

// ConnectServiceFactory produces services that resolve a hostname and then
// connect, in one call.
type ConnectServiceFactory[T Endpoint] struct {
	resolver resolver.Resolver
	dialer   Dialer
	logger   *slog.Logger
}

// NewConnectServiceFactory creates a factory for combined resolve+connect
// services.
func NewConnectServiceFactory[T Endpoint](opts ...Option) ConnectServiceFactory[T] {
	o := &serviceOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.resolver == nil {
		o.resolver = resolver.NewSystem()
	}
	return ConnectServiceFactory[T]{
		resolver: o.resolver,
		dialer:   o.dialer,
		logger:   o.logger,
	}
}

// Service returns a ready connect service.
func (f ConnectServiceFactory[T]) Service() ConnectService[T] {
	return ConnectService[T]{
		resolver: f.resolver,
		tcp:      TCPConnector[T]{dialer: f.dialer, logger: f.logger},
	}
}

// NewService satisfies ServiceFactory.
func (f ConnectServiceFactory[T]) NewService() Service[*Request[T], Connection[T]] {
	return f.Service()
}

// ConnectService resolves the request hostname when the caller did not
// supply addresses, then hands the request to the TCP connector.
type ConnectService[T Endpoint] struct {
	resolver resolver.Resolver
	tcp      TCPConnector[T]
}

// Call resolves and connects. Requests that already carry addresses skip the
// resolution stage entirely, as do IP-literal hostnames. A resolver failure
// surfaces as *ResolveError; a resolver that returns no records leaves the
// descriptor unresolved and the connector reports *UnresolvedError.
func (s ConnectService[T]) Call(ctx context.Context, req *Request[T]) (Connection[T], error) {
	if req.Addrs().IsUnresolved() {
		if err := s.lookup(ctx, req); err != nil {
			return Connection[T]{}, err
		}
	}
	return s.tcp.Call(ctx, req)
}

// lookup fills the request's address descriptor from the resolver.
func (s ConnectService[T]) lookup(ctx context.Context, req *Request[T]) error {
	host := req.Hostname()
	if ip, err := netip.ParseAddr(host); err == nil {
		req.SetAddr(netip.AddrPortFrom(ip, req.Port()))
		return nil
	}
	ips, err := s.resolver.Resolve(ctx, host)
	if err != nil {
		return &ResolveError{Host: host, Err: err}
	}
	addrs := make([]netip.AddrPort, len(ips))
	for i, ip := range ips {
		addrs[i] = netip.AddrPortFrom(ip, req.Port())
	}
	req.SetAddrs(addrs)
	return nil
}

var (
	_ Service[*Request[Host], Connection[Host]]        = ConnectService[Host]{}
	_ ServiceFactory[*Request[Host], Connection[Host]] = ConnectServiceFactory[Host]{}
)
