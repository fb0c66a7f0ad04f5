// Package domain defines the core domain models for pathnet.
package domain

import "strconv"

// Endpoint is an opaque handle for a socket-like object in the program under
// analysis. Only equality is meaningful.
type Endpoint int32

// NoEndpoint marks an endpoint slot that has not been bound yet.
const NoEndpoint Endpoint = 0

// IsSet reports whether the handle refers to a bound object.
func (e Endpoint) IsSet() bool {
	return e != NoEndpoint
}

// String renders the handle for logs; unbound handles print as "null".
func (e Endpoint) String() string {
	if e == NoEndpoint {
		return "null"
	}
	return "#" + strconv.FormatInt(int64(e), 10)
}

// Direction selects one of the two byte buffers of a connection.
type Direction uint8

const (
	// ClientToServer carries bytes written by the client and read by the server.
	ClientToServer Direction = iota
	// ServerToClient carries bytes written by the server and read by the client.
	ServerToClient
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case ClientToServer:
		return "client_to_server"
	case ServerToClient:
		return "server_to_client"
	default:
		return "unknown"
	}
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	if d == ClientToServer {
		return ServerToClient
	}
	return ClientToServer
}
