//go:build !unix

// File: stream/file_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stream

const openFlags = 0
