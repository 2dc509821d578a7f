package dialer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/txthinking/socks5"
)

const (
	socks5NegotiationTimeout = 10 * time.Second
	socks5RequestTimeout     = 10 * time.Second
)

var errSOCKS5AuthFailed = errors.New("SOCKS5 authentication failed")

type errSOCKS5UnsupportedAuthMethod struct {
	Method byte
}

func (e errSOCKS5UnsupportedAuthMethod) Error() string {
	return fmt.Sprintf("unsupported SOCKS5 authentication method: %d", e.Method)
}

type errSOCKS5RequestFailed struct {
	Rep byte
}

func (e errSOCKS5RequestFailed) Error() string {
	var msg string
	// RFC 1928
	switch e.Rep {
	case 0x00:
		msg = "succeeded"
	case 0x01:
		msg = "general SOCKS server failure"
	case 0x02:
		msg = "connection not allowed by ruleset"
	case 0x03:
		msg = "Network unreachable"
	case 0x04:
		msg = "Host unreachable"
	case 0x05:
		msg = "Connection refused"
	case 0x06:
		msg = "TTL expired"
	case 0x07:
		msg = "Command not supported"
	case 0x08:
		msg = "Address type not supported"
	default:
		msg = "undefined"
	}
	return fmt.Sprintf("SOCKS5 request failed: %s (%d)", msg, e.Rep)
}

// SOCKS5 dials the target through a SOCKS5 proxy server. The proxy accepts
// either an IP or a domain name as the target, so the address is passed
// through verbatim. TCP only.
type SOCKS5 struct {
	Dialer   *net.Dialer
	Addr     string
	Username string
	Password string
}

// NewSOCKS5 creates a new SOCKS5 dialer for the proxy at addr.
func NewSOCKS5(addr, username, password string) *SOCKS5 {
	return &SOCKS5{
		Dialer: &net.Dialer{
			Timeout: defaultDialerTimeout,
		},
		Addr:     addr,
		Username: username,
		Password: password,
	}
}

// dialAndNegotiate creates a new TCP connection to the SOCKS5 proxy server
// and performs the negotiation. Returns an established connection ready to
// handle requests, or an error if the process fails.
func (s *SOCKS5) dialAndNegotiate(ctx context.Context) (net.Conn, error) {
	conn, err := s.Dialer.DialContext(ctx, "tcp", s.Addr)
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(time.Now().Add(socks5NegotiationTimeout)); err != nil {
		_ = conn.Close()
		return nil, err
	}
	authMethods := []byte{socks5.MethodNone}
	if s.Username != "" && s.Password != "" {
		authMethods = append(authMethods, socks5.MethodUsernamePassword)
	}
	req := socks5.NewNegotiationRequest(authMethods)
	if _, err := req.WriteTo(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	resp, err := socks5.NewNegotiationReplyFrom(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if resp.Method == socks5.MethodUsernamePassword {
		upReq := socks5.NewUserPassNegotiationRequest([]byte(s.Username), []byte(s.Password))
		if _, err := upReq.WriteTo(conn); err != nil {
			_ = conn.Close()
			return nil, err
		}
		upResp, err := socks5.NewUserPassNegotiationReplyFrom(conn)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		if upResp.Status != socks5.UserPassStatusSuccess {
			_ = conn.Close()
			return nil, errSOCKS5AuthFailed
		}
	} else if resp.Method != socks5.MethodNone {
		_ = conn.Close()
		return nil, errSOCKS5UnsupportedAuthMethod{resp.Method}
	}
	// Negotiation succeeded, reset the deadline.
	if err := conn.SetDeadline(time.Time{}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// request sends a SOCKS5 request to the proxy server and returns the reply.
func (s *SOCKS5) request(conn net.Conn, req *socks5.Request) (*socks5.Reply, error) {
	if err := conn.SetDeadline(time.Now().Add(socks5RequestTimeout)); err != nil {
		return nil, err
	}
	if _, err := req.WriteTo(conn); err != nil {
		return nil, err
	}
	resp, err := socks5.NewReplyFrom(conn)
	if err != nil {
		return nil, err
	}
	if resp.Rep != socks5.RepSuccess {
		return nil, errSOCKS5RequestFailed{resp.Rep}
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, err
	}
	return resp, nil
}

// DialContext establishes a TCP connection to the address through the proxy.
func (s *SOCKS5) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	switch network {
	case "tcp", "tcp4", "tcp6":
	default:
		return nil, net.UnknownNetworkError(network)
	}
	atyp, dstAddr, dstPort, err := splitSOCKS5Addr(address)
	if err != nil {
		return nil, err
	}
	conn, err := s.dialAndNegotiate(ctx)
	if err != nil {
		return nil, err
	}
	req := socks5.NewRequest(socks5.CmdConnect, atyp, dstAddr, dstPort)
	if _, err := s.request(conn, req); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// splitSOCKS5Addr converts a "host:port" string into SOCKS5 request fields.
func splitSOCKS5Addr(address string) (atyp byte, dstAddr, dstPort []byte, err error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return 0, nil, nil, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return 0, nil, nil, err
	}
	ip := net.ParseIP(host)
	if ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			atyp = socks5.ATYPIPv4
			dstAddr = ip4
		} else {
			atyp = socks5.ATYPIPv6
			dstAddr = ip.To16()
		}
	} else {
		atyp = socks5.ATYPDomain
		dstAddr = []byte(host)
	}
	dstPort = make([]byte, 2)
	binary.BigEndian.PutUint16(dstPort, uint16(port))
	return atyp, dstAddr, dstPort, nil
}

var _ Dialer = (*SOCKS5)(nil)
