// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the single-threaded completion loop that every
// stream, connector and server posts its completions to. Blocking I/O runs on
// helper goroutines; completions run one at a time on the goroutine that
// called Run.
package reactor
