// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime counters shared by the accept-loop servers.
// Counters are registered lazily and read through atomic snapshots.
package control
