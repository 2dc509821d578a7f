//go:build !linux

package dialer

import (
	"errors"
	"net"
)

func dialerBindToDevice(dialer *net.Dialer, deviceName string) error {
	return errors.New("binding to device is not supported on this platform")
}
