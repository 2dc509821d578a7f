package connect

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAddr string

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return string(a) }

// fakeConn is a no-op net.Conn that remembers the address it was dialed to.
type fakeConn struct {
	remote string
}

func (c *fakeConn) Read(b []byte) (int, error)         { return 0, io.EOF }
func (c *fakeConn) Write(b []byte) (int, error)        { return len(b), nil }
func (c *fakeConn) Close() error                       { return nil }
func (c *fakeConn) LocalAddr() net.Addr                { return fakeAddr("pipe") }
func (c *fakeConn) RemoteAddr() net.Addr               { return fakeAddr(c.remote) }
func (c *fakeConn) SetDeadline(t time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

// scriptDialer records every attempt and fails the addresses listed in fail.
// With block set, dials hang until the context is cancelled.
type scriptDialer struct {
	mu       sync.Mutex
	attempts []string
	fail     map[string]error
	block    bool
}

func (d *scriptDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.mu.Lock()
	d.attempts = append(d.attempts, address)
	d.mu.Unlock()
	if d.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err, ok := d.fail[address]; ok {
		return nil, err
	}
	return &fakeConn{remote: address}, nil
}

func (d *scriptDialer) Attempts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.attempts...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCallUnresolved(t *testing.T) {
	d := &scriptDialer{}
	svc := TCPConnectorFactory[Host]{Dialer: d, Logger: discardLogger()}.Service()

	_, err := svc.Call(context.Background(), NewRequest(Host("example.com:80")))
	require.Error(t, err)

	var unresolved *UnresolvedError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "example.com", unresolved.Host)
	assert.Empty(t, d.Attempts(), "no connect attempt may be made for an unresolved request")
}

func TestCallSingleAddressSuccess(t *testing.T) {
	addr := netip.MustParseAddrPort("192.0.2.1:80")
	d := &scriptDialer{}
	svc := TCPConnectorFactory[Host]{Dialer: d, Logger: discardLogger()}.Service()

	req := NewRequest(Host("example.com:80"))
	req.SetAddr(addr)

	conn, err := svc.Call(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.1:80"}, d.Attempts())
	assert.Equal(t, "192.0.2.1:80", conn.Conn().RemoteAddr().String())
	assert.Equal(t, Host("example.com:80"), conn.Endpoint())
}

func TestCallSingleAddressFailure(t *testing.T) {
	addr := netip.MustParseAddrPort("192.0.2.1:80")
	dialErr := errors.New("connection refused")
	d := &scriptDialer{fail: map[string]error{"192.0.2.1:80": dialErr}}
	svc := TCPConnectorFactory[Host]{Dialer: d, Logger: discardLogger()}.Service()

	req := NewRequest(Host("example.com:80"))
	req.SetAddr(addr)

	_, err := svc.Call(context.Background(), req)
	require.Error(t, err)

	var de *DialError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, addr, de.Addr)
	assert.ErrorIs(t, err, dialErr)
	assert.Equal(t, []string{"192.0.2.1:80"}, d.Attempts(), "single-address mode retries nothing")
}

func TestCallFailover(t *testing.T) {
	a1 := netip.MustParseAddrPort("192.0.2.1:80")
	a2 := netip.MustParseAddrPort("192.0.2.2:80")
	a3 := netip.MustParseAddrPort("192.0.2.3:80")
	d := &scriptDialer{fail: map[string]error{
		"192.0.2.1:80": errors.New("no route to host"),
	}}
	svc := TCPConnectorFactory[Host]{Dialer: d, Logger: discardLogger()}.Service()

	req := NewRequest(Host("example.com:80"))
	req.SetAddrs([]netip.AddrPort{a1, a2, a3})

	conn, err := svc.Call(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.1:80", "192.0.2.2:80"}, d.Attempts(),
		"the third candidate must never be attempted once the second succeeds")
	assert.Equal(t, "192.0.2.2:80", conn.Conn().RemoteAddr().String())
}

func TestCallAllAddressesFail(t *testing.T) {
	a1 := netip.MustParseAddrPort("192.0.2.1:80")
	a2 := netip.MustParseAddrPort("192.0.2.2:80")
	a3 := netip.MustParseAddrPort("192.0.2.3:80")
	err1 := errors.New("err one")
	err2 := errors.New("err two")
	err3 := errors.New("err three")
	d := &scriptDialer{fail: map[string]error{
		"192.0.2.1:80": err1,
		"192.0.2.2:80": err2,
		"192.0.2.3:80": err3,
	}}
	svc := TCPConnectorFactory[Host]{Dialer: d, Logger: discardLogger()}.Service()

	req := NewRequest(Host("example.com:80"))
	req.SetAddrs([]netip.AddrPort{a1, a2, a3})

	_, err := svc.Call(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, []string{"192.0.2.1:80", "192.0.2.2:80", "192.0.2.3:80"}, d.Attempts())

	var de *DialError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, a3, de.Addr, "only the last attempt's error is surfaced")
	assert.ErrorIs(t, err, err3)
	assert.NotErrorIs(t, err, err1)
	assert.NotErrorIs(t, err, err2)
}

func TestCallCancellation(t *testing.T) {
	a1 := netip.MustParseAddrPort("192.0.2.1:80")
	a2 := netip.MustParseAddrPort("192.0.2.2:80")
	d := &scriptDialer{block: true}
	svc := TCPConnectorFactory[Host]{Dialer: d, Logger: discardLogger()}.Service()

	req := NewRequest(Host("example.com:80"))
	req.SetAddrs([]netip.AddrPort{a1, a2})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Call(ctx, req)
		done <- err
	}()

	// Wait for the first attempt to be in flight, then abandon the call.
	require.Eventually(t, func() bool {
		return len(d.Attempts()) == 1
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("call did not return after cancellation")
	}
	assert.Equal(t, []string{"192.0.2.1:80"}, d.Attempts(),
		"no further candidate may be attempted after cancellation")
}

func TestConnectorsShareNoState(t *testing.T) {
	factory := TCPConnectorFactory[Host]{Dialer: &scriptDialer{}, Logger: discardLogger()}
	svc1 := factory.Service()
	svc2 := factory.Service()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		svc := svc1
		addr := "192.0.2.1:80"
		if i == 1 {
			svc = svc2
			addr = "192.0.2.2:80"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				req := NewRequest(Host("example.com:80"))
				req.SetAddr(netip.MustParseAddrPort(addr))
				conn, err := svc.Call(context.Background(), req)
				assert.NoError(t, err)
				assert.Equal(t, addr, conn.Conn().RemoteAddr().String())
			}
		}()
	}
	wg.Wait()
}

func TestCallRealListener(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	addr := netip.MustParseAddrPort(listener.Addr().String())

	// Zero-value factory dials with a plain net.Dialer.
	svc := TCPConnectorFactory[Host]{}.Service()
	req := NewRequest(Host("localhost:0"))
	req.SetAddr(addr)

	conn, err := svc.Call(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, addr.String(), conn.Conn().RemoteAddr().String())
	require.NoError(t, conn.Close())
}

func TestServiceContract(t *testing.T) {
	var factory ServiceFactory[*Request[Host], Connection[Host]] = TCPConnectorFactory[Host]{
		Dialer: &scriptDialer{},
		Logger: discardLogger(),
	}
	svc := factory.NewService()

	req := NewRequest(Host("example.com:80"))
	req.SetAddr(netip.MustParseAddrPort("192.0.2.1:80"))

	conn, err := svc.Call(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "example.com", req.Hostname())
	assert.Equal(t, Host("example.com:80"), conn.Endpoint())
}
