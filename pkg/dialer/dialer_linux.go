//go:build linux

package dialer

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

func dialerBindToDevice(dialer *net.Dialer, deviceName string) error {
	prev := dialer.Control
	dialer.Control = func(network, address string, c syscall.RawConn) error {
		if prev != nil {
			if err := prev(network, address, c); err != nil {
				return err
			}
		}
		var bindErr error
		if err := c.Control(func(fd uintptr) {
			bindErr = unix.BindToDevice(int(fd), deviceName)
		}); err != nil {
			return err
		}
		return bindErr
	}
	return nil
}
