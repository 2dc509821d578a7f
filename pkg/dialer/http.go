package dialer

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

const httpRequestTimeout = 10 * time.Second

var errHTTPUnsupportedScheme = errors.New("unsupported scheme for HTTP proxy (use http:// or https://)")

type errHTTPRequestFailed struct {
	Status int
}

func (e errHTTPRequestFailed) Error() string {
	return fmt.Sprintf("HTTP request failed: %d", e.Status)
}

// HTTP dials the target through an HTTP/HTTPS proxy server that supports
// the CONNECT method. The proxy accepts either an IP or a domain name as
// the target, so the address is passed through verbatim. TCP only.
type HTTP struct {
	Dialer     *net.Dialer
	Addr       string
	HTTPS      bool
	Insecure   bool
	ServerName string
	BasicAuth  string // Base64 encoded
}

// NewHTTP creates a new HTTP proxy dialer from a proxy URL.
// The URL should be in the format of http://[user:pass@]host:port or
// https://[user:pass@]host:port
func NewHTTP(proxyURL string, insecure bool) (*HTTP, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errHTTPUnsupportedScheme
	}
	addr := u.Host
	if u.Port() == "" {
		if u.Scheme == "http" {
			addr = net.JoinHostPort(u.Host, "80")
		} else {
			addr = net.JoinHostPort(u.Host, "443")
		}
	}
	var basicAuth string
	if u.User != nil {
		username := u.User.Username()
		password, _ := u.User.Password()
		basicAuth = "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
	}
	return &HTTP{
		Dialer:     &net.Dialer{Timeout: defaultDialerTimeout},
		Addr:       addr,
		HTTPS:      u.Scheme == "https",
		Insecure:   insecure,
		ServerName: u.Hostname(),
		BasicAuth:  basicAuth,
	}, nil
}

func (h *HTTP) dial(ctx context.Context) (net.Conn, error) {
	conn, err := h.Dialer.DialContext(ctx, "tcp", h.Addr)
	if err != nil {
		return nil, err
	}
	if h.HTTPS {
		conn = tls.Client(conn, &tls.Config{
			InsecureSkipVerify: h.Insecure, //nolint:gosec // user configurable
			ServerName:         h.ServerName,
		})
	}
	return conn, nil
}

func (h *HTTP) connectRequest(address string) *http.Request {
	req := &http.Request{
		Method: http.MethodConnect,
		URL: &url.URL{
			Host: address,
		},
		Header: http.Header{
			"Proxy-Connection": []string{"Keep-Alive"},
		},
	}
	if h.BasicAuth != "" {
		req.Header.Add("Proxy-Authorization", h.BasicAuth)
	}
	return req
}

// DialContext establishes a TCP connection to the address through the proxy.
func (h *HTTP) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	switch network {
	case "tcp", "tcp4", "tcp6":
	default:
		return nil, net.UnknownNetworkError(network)
	}
	req := h.connectRequest(address)
	conn, err := h.dial(ctx)
	if err != nil {
		return nil, err
	}
	if err := req.Write(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.SetDeadline(time.Now().Add(httpRequestTimeout)); err != nil {
		_ = conn.Close()
		return nil, err
	}
	bufReader := bufio.NewReader(conn)
	resp, err := http.ReadResponse(bufReader, req)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = conn.Close()
		return nil, errHTTPRequestFailed{resp.StatusCode}
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if bufReader.Buffered() > 0 {
		data := make([]byte, bufReader.Buffered())
		if _, err := io.ReadFull(bufReader, data); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return &cachedConn{
			Conn:   conn,
			Buffer: *bytes.NewBuffer(data),
		}, nil
	}
	return conn, nil
}

// cachedConn is a net.Conn wrapper that first Read()s from a buffer,
// and then from the underlying net.Conn when the buffer is drained.
type cachedConn struct {
	net.Conn
	Buffer bytes.Buffer
}

func (c *cachedConn) Read(b []byte) (int, error) {
	if c.Buffer.Len() > 0 {
		n, err := c.Buffer.Read(b)
		if err == io.EOF {
			err = nil
		}
		return n, err
	}
	return c.Conn.Read(b)
}

var _ Dialer = (*HTTP)(nil)
