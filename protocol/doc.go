// Package protocol implements the websocket handshakes used by the websocket
// stream variants on top of already established TCP connections.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The server side reads the HTTP upgrade request straight off an accepted
// net.Conn and completes it through gorilla/websocket's Upgrader. The client
// side hands an already connected socket to gorilla's Dialer so connect and
// handshake can be timed separately. Framing, masking and control frames are
// left to gorilla/websocket.
package protocol
