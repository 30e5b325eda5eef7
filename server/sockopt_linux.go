//go:build linux

// File: server/sockopt_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// listenerControl marks listening sockets address-reusable and keeps IPv6
// acceptors off the IPv4 port.
func listenerControl(network, _ string, rc syscall.RawConn) error {
	var serr error
	err := rc.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if serr == nil && network == "tcp6" {
			serr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1)
		}
	})
	if err != nil {
		return err
	}
	return serr
}
