// File: stream/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package stream implements the buffered byte stream over File, TCP,
// Unix-domain (Local) and websocket transports, and the client connectors
// that bring a stream into the ready state.
//
// Every stream owns a read-ahead buffer. Read and ReadSome only fill the
// buffer; callers inspect it with Data and Size and drop bytes with Consume.
// Asynchronous operations run the blocking transport call off the reactor
// loop and deliver the completion on it.
package stream
