// Package server provides accept-loop servers that turn incoming TCP,
// Unix-domain and websocket connections into initialized streams.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A server owns its listening sockets and nothing else: every stream whose
// initialization succeeds is handed to the owner's NewStreamFunc on the
// reactor loop and belongs to the owner from then on. Connections that fail
// to initialize are closed and only show up in the log and in Stats.
package server
