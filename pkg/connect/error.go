package connect

import (
	"fmt"
	"net/netip"
)

// UnresolvedError is returned when a request reaches the connector with no
// candidate address at all.
type UnresolvedError struct {
	Host string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("connector received unresolved host %q", e.Host)
}

// DialError is returned when every candidate address has been tried and the
// most recent attempt failed. Err is the failure of the last attempt only;
// earlier per-address failures are discarded after logging.
type DialError struct {
	Addr netip.AddrPort
	Err  error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("connect to %s failed: %v", e.Addr, e.Err)
}

func (e *DialError) Unwrap() error {
	return e.Err
}

// ResolveError is returned by ConnectService when the resolver fails before
// any connect attempt could be made.
type ResolveError struct {
	Host string
	Err  error
}

func (e *ResolveError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resolve %q failed", e.Host)
	}
	return fmt.Sprintf("resolve %q failed: %v", e.Host, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}
