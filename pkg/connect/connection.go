package connect

import "net"

// Connection pairs an established transport socket with the logical endpoint
// it was opened for. Ownership of the socket transfers to the caller.
type Connection[T Endpoint] struct {
	conn     net.Conn
	endpoint T
}

// NewConnection wraps an established socket and its endpoint.
func NewConnection[T Endpoint](conn net.Conn, endpoint T) Connection[T] {
	return Connection[T]{conn: conn, endpoint: endpoint}
}

// Conn returns the underlying socket.
func (c Connection[T]) Conn() net.Conn { return c.conn }

// Endpoint returns the endpoint the connection was requested for.
func (c Connection[T]) Endpoint() T { return c.endpoint }

// Hostname returns the endpoint's hostname.
func (c Connection[T]) Hostname() string { return c.endpoint.Hostname() }

// Replace swaps the underlying socket and returns the previous one. Callers
// layering protocols on top of an established connection (e.g. TLS) use it
// to substitute the wrapped socket.
func (c *Connection[T]) Replace(conn net.Conn) net.Conn {
	prev := c.conn
	c.conn = conn
	return prev
}

// Close closes the underlying socket.
func (c Connection[T]) Close() error { return c.conn.Close() }
