//go:build !linux

// File: server/sockopt_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import "syscall"

// The runtime defaults (SO_REUSEADDR, IPV6_V6ONLY for tcp6) apply as is.
func listenerControl(string, string, syscall.RawConn) error { return nil }
