//go:build unix

// File: stream/file_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stream

import "golang.org/x/sys/unix"

// Descriptors are opened non-blocking so pipes and character devices are
// served by the runtime poller instead of parking an OS thread.
const openFlags = unix.O_NONBLOCK
