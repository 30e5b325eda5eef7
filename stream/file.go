// File: stream/file.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stream

import (
	"errors"
	"os"
	"time"

	"github.com/momentics/hioload-stream/api"
	"github.com/momentics/hioload-stream/reactor"
)

type fileConduit struct {
	pipe
	path     string
	writable bool
}

// NewFile returns a stream over a file or character device. A writable
// stream creates or truncates path; a read-only one requires it to exist.
func NewFile(loop *reactor.Loop, path string, writable bool) *Stream {
	return newStream(loop, &fileConduit{path: path, writable: writable})
}

func (f *fileConduit) open(time.Duration) error {
	flags := os.O_RDONLY
	if f.writable {
		flags = os.O_TRUNC | os.O_CREATE | os.O_RDWR
	}
	fd, err := os.OpenFile(f.path, flags|openFlags, 0o777)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return api.NewError(api.KindNotFound, "open", f.path, err)
		}
		return err
	}
	f.attach(fd)
	return nil
}

func (f *fileConduit) endPointURL() string { return f.path }

func (f *fileConduit) remoteHost() string { return "" }
