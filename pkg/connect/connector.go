package connect

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
)

// Dialer opens a transport connection to a single concrete address. It is
// the transport collaborator of the connector; *net.Dialer satisfies it, as
// do the transports in pkg/dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

var defaultDialer = &net.Dialer{}

// TCPConnectorFactory produces TCP connector services. The zero value is
// ready to use and dials with a plain net.Dialer.
type TCPConnectorFactory[T Endpoint] struct {
	// Dialer opens the individual connect attempts. nil means &net.Dialer{}.
	Dialer Dialer
	// Logger receives connect diagnostics. nil means slog.Default().
	Logger *slog.Logger
}

// Service returns a ready TCP connector. The factory holds no resources and
// may be called any number of times; connectors from separate calls share no
// observable state.
func (f TCPConnectorFactory[T]) Service() TCPConnector[T] {
	return TCPConnector[T]{dialer: f.Dialer, logger: f.Logger}
}

// NewService satisfies ServiceFactory.
func (f TCPConnectorFactory[T]) NewService() Service[*Request[T], Connection[T]] {
	return f.Service()
}

// TCPConnector turns a request's candidate addresses into one established
// TCP connection by sequential failover. The zero value is usable.
type TCPConnector[T Endpoint] struct {
	dialer Dialer
	logger *slog.Logger
}

func (c TCPConnector[T]) dial() Dialer {
	if c.dialer != nil {
		return c.dialer
	}
	return defaultDialer
}

func (c TCPConnector[T]) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

// Call extracts the port and address descriptor from the request and runs
// the failover loop: candidates are tried strictly front to back, the first
// success wins and abandons the rest, and when every candidate has failed
// only the last attempt's error is surfaced. Cancelling ctx aborts the
// in-flight attempt and no further candidate is tried. Call enforces no
// timeout of its own; bounding total connect time is the caller's job.
func (c TCPConnector[T]) Call(ctx context.Context, req *Request[T]) (Connection[T], error) {
	port := req.Port()
	addrs := req.Addrs()

	if addrs.IsUnresolved() {
		c.log().Error("unresolved connection address", "host", req.Hostname())
		return Connection[T]{}, &UnresolvedError{Host: req.Hostname()}
	}

	c.log().Debug("connecting", "host", req.Hostname(), "port", port)

	a := attempt[T]{
		req:    req,
		port:   port,
		dialer: c.dial(),
		logger: c.log(),
	}
	switch addrs.kind {
	case addrsOne:
		a.current = addrs.one
	case addrsMulti:
		a.current = addrs.multi[0]
		a.queue = addrs.multi[1:]
	default:
		panic("unreachable: unresolved descriptor already checked")
	}
	return a.run(ctx)
}

// attempt is the failover state for one call: the remaining candidate queue
// and a single pending-attempt slot that is overwritten in place as the
// queue is consumed from the front. The loop between attempts is synchronous
// and allocates nothing per attempt.
type attempt[T Endpoint] struct {
	req     *Request[T]
	port    uint16
	queue   []netip.AddrPort // remaining candidates; nil in single-address mode
	current netip.AddrPort   // pending-attempt slot
	dialer  Dialer
	logger  *slog.Logger
}

func (a *attempt[T]) run(ctx context.Context) (Connection[T], error) {
	for {
		conn, err := a.dialer.DialContext(ctx, "tcp", a.current.String())
		if err == nil {
			a.logger.Debug("connected",
				"host", a.req.Hostname(), "peer", conn.RemoteAddr())
			return Connection[T]{conn: conn, endpoint: a.req.Endpoint()}, nil
		}

		a.logger.Debug("connect attempt failed",
			"host", a.req.Hostname(), "addr", a.current.String(), "port", a.port, "error", err)

		if len(a.queue) == 0 || ctx.Err() != nil {
			return Connection[T]{}, &DialError{Addr: a.current, Err: err}
		}

		// Overwrite the slot with the next candidate and try again.
		a.current = a.queue[0]
		a.queue = a.queue[1:]
	}
}

var (
	_ Service[*Request[Host], Connection[Host]]        = TCPConnector[Host]{}
	_ ServiceFactory[*Request[Host], Connection[Host]] = TCPConnectorFactory[Host]{}
	_ Dialer                                           = (*net.Dialer)(nil)
)
