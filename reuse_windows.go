//go:build windows

package mdns

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// reuseAddrPort lets several discovery sessions share port 5353. Windows has
// no SO_REUSEPORT; SO_REUSEADDR alone allows the shared bind.
func reuseAddrPort(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
