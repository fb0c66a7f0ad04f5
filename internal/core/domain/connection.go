// Package domain defines the core domain models for pathnet.
package domain

import (
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

// ConnectionIDPrefix is the prefix for connection IDs.
const ConnectionIDPrefix = "pnc-"

// Connection is one logical pairing between a client and a server over a
// port, observed along the current execution path.
//
// A Connection owns both of its byte buffers. Clone is the only supported
// way to duplicate one; plain struct copies share buffer storage.
type Connection struct {
	id    string
	port  int
	state State

	serverHost string
	clientHost string

	// serverPassive identifies the listening side; serverData and
	// clientData are the two ends of the data path.
	serverPassive Endpoint
	serverData    Endpoint
	clientData    Endpoint

	clientToServer ByteQueue
	serverToClient ByteQueue
}

// NewConnection creates an unbound pending connection on port.
func NewConnection(port int) *Connection {
	return &Connection{
		id:    GenerateConnectionID(),
		port:  port,
		state: StatePending,
	}
}

// NewPendingServer creates a pending connection with only the server side
// bound: passive is listening on port at host, no data endpoint yet.
func NewPendingServer(passive Endpoint, port int, host string) *Connection {
	c := NewConnection(port)
	c.bindServerSide(passive, NoEndpoint, host)
	return c
}

// NewPendingClient creates a pending connection with only the client side
// bound: client is trying to reach serverHost on port.
func NewPendingClient(client Endpoint, port int, serverHost string) *Connection {
	c := NewConnection(port)
	c.bindClientSide(client, serverHost)
	return c
}

// GenerateConnectionID generates a new connection ID using ULID.
// Format: pnc-{ulid_lowercase}.
func GenerateConnectionID() string {
	return ConnectionIDPrefix + strings.ToLower(ulid.Make().String())
}

// ID returns the connection identifier. Clones keep the ID of their origin.
func (c *Connection) ID() string { return c.id }

// Port returns the port the connection was opened on.
func (c *Connection) Port() int { return c.port }

// State returns the stored lifecycle state.
func (c *Connection) State() State { return c.state }

// ServerHost returns the host of the server side.
func (c *Connection) ServerHost() string { return c.serverHost }

// ClientHost returns the host of the client side, if known.
func (c *Connection) ClientHost() string { return c.clientHost }

// ServerPassiveEndpoint returns the listening-side handle.
func (c *Connection) ServerPassiveEndpoint() Endpoint { return c.serverPassive }

// ServerDataEndpoint returns the server end of the data path.
func (c *Connection) ServerDataEndpoint() Endpoint { return c.serverData }

// ClientDataEndpoint returns the client end of the data path.
func (c *Connection) ClientDataEndpoint() Endpoint { return c.clientData }

// HasServer reports whether a server side has been bound.
func (c *Connection) HasServer() bool { return c.serverPassive.IsSet() }

// HasClient reports whether a client side has been bound.
func (c *Connection) HasClient() bool { return c.clientData.IsSet() }

// IsEstablished reports whether the connection is established.
func (c *Connection) IsEstablished() bool { return c.state == StateEstablished }

// IsClosed reports whether the connection was closed.
func (c *Connection) IsClosed() bool { return c.state == StateClosed }

// IsTerminated reports whether the connection was terminated.
func (c *Connection) IsTerminated() bool { return c.state == StateTerminated }

// IsPending reports whether the connection is not terminated and is still
// missing one of its two sides. A connection closed before both sides were
// bound is still pending by this definition.
func (c *Connection) IsPending() bool {
	return !c.IsTerminated() && !(c.HasServer() && c.HasClient())
}

// bindServerSide records the server identity and establishes the connection
// when a client is already present.
func (c *Connection) bindServerSide(passive, data Endpoint, host string) {
	c.serverPassive = passive
	c.serverData = data
	c.serverHost = host
	if c.HasClient() {
		c.establish()
	}
}

// bindClientSide records the client identity and the host it connects to.
func (c *Connection) bindClientSide(data Endpoint, serverHost string) {
	c.clientData = data
	c.serverHost = serverHost
	if c.HasServer() {
		c.establish()
	}
}

// BindServer completes the server side of a connection a client already
// opened. It fails with ErrNoClient when no client is bound.
func (c *Connection) BindServer(passive, data Endpoint, host string) error {
	if !c.HasClient() {
		return ErrNoClient.WithDetailsf("bind server %s on port %d", passive, c.port)
	}
	if !passive.IsSet() {
		return ErrInvalidArgument.WithDetails("server passive endpoint is required")
	}
	c.bindServerSide(passive, data, host)
	return nil
}

// BindClient completes the client side of a connection a server is pending
// on. host is the server host the client reached; serverData is the server's
// end of the new data path. It fails with ErrNoServer when no server is bound.
func (c *Connection) BindClient(data Endpoint, host string, serverData Endpoint) error {
	if !c.HasServer() {
		return ErrNoServer.WithDetailsf("bind client %s on port %d", data, c.port)
	}
	if !data.IsSet() {
		return ErrInvalidArgument.WithDetails("client data endpoint is required")
	}
	c.bindClientSide(data, host)
	c.serverData = serverData
	return nil
}

// SetClientHost records the host the client belongs to.
func (c *Connection) SetClientHost(host string) {
	c.clientHost = host
}

func (c *Connection) establish() {
	c.transition(StateEstablished)
}

func (c *Connection) transition(next State) {
	if c.state.CanTransition(next) {
		c.state = next
	}
}

// Close marks the connection closed. Closing a terminated connection has no
// effect.
func (c *Connection) Close() {
	c.transition(StateClosed)
}

// Terminate marks the connection terminated, from any state.
func (c *Connection) Terminate() {
	c.transition(StateTerminated)
}

// IsEndpoint reports whether h is the client or the server data endpoint.
func (c *Connection) IsEndpoint(h Endpoint) bool {
	if !h.IsSet() {
		return false
	}
	return c.clientData == h || c.serverData == h
}

// IsClientEndpoint reports whether h is the client end (true) or the server
// end (false). It fails with ErrAmbiguousEndpoint when h is neither.
func (c *Connection) IsClientEndpoint(h Endpoint) (bool, error) {
	switch {
	case h.IsSet() && c.clientData == h:
		return true, nil
	case h.IsSet() && c.serverData == h:
		return false, nil
	default:
		return false, ErrAmbiguousEndpoint.WithDetailsf("endpoint %s on connection %s", h, c.id)
	}
}

// InboundDirection returns the buffer h reads from.
func (c *Connection) InboundDirection(h Endpoint) (Direction, error) {
	client, err := c.IsClientEndpoint(h)
	if err != nil {
		return 0, err
	}
	if client {
		return ServerToClient, nil
	}
	return ClientToServer, nil
}

func (c *Connection) buffer(dir Direction) *ByteQueue {
	if dir == ServerToClient {
		return &c.serverToClient
	}
	return &c.clientToServer
}

// Read pops the oldest byte of the buffer for dir.
// It fails with ErrBufferEmpty when nothing is buffered.
func (c *Connection) Read(dir Direction) (byte, error) {
	b, ok := c.buffer(dir).Pop()
	if !ok {
		return 0, ErrBufferEmpty.WithDetailsf("%s on connection %s", dir, c.id)
	}
	return b, nil
}

// Write appends b to the buffer for dir. Buffers are unbounded.
func (c *Connection) Write(dir Direction, b byte) {
	c.buffer(dir).Push(b)
}

// BufferSize returns the number of bytes buffered for dir.
func (c *Connection) BufferSize(dir Direction) int {
	return c.buffer(dir).Len()
}

// IsBufferEmpty reports whether nothing is buffered for dir.
func (c *Connection) IsBufferEmpty(dir Direction) bool {
	return c.buffer(dir).IsEmpty()
}

// ServerRead reads one byte the client wrote.
func (c *Connection) ServerRead() (byte, error) { return c.Read(ClientToServer) }

// ClientRead reads one byte the server wrote.
func (c *Connection) ClientRead() (byte, error) { return c.Read(ServerToClient) }

// ServerWrite queues one byte for the client.
func (c *Connection) ServerWrite(b byte) { c.Write(ServerToClient, b) }

// ClientWrite queues one byte for the server.
func (c *Connection) ClientWrite(b byte) { c.Write(ClientToServer, b) }

// IsServer2ClientBufferEmpty reports whether the server-to-client buffer is empty.
func (c *Connection) IsServer2ClientBufferEmpty() bool { return c.IsBufferEmpty(ServerToClient) }

// IsClient2ServerBufferEmpty reports whether the client-to-server buffer is empty.
func (c *Connection) IsClient2ServerBufferEmpty() bool { return c.IsBufferEmpty(ClientToServer) }

// Server2ClientBufferSize returns the server-to-client buffer size.
func (c *Connection) Server2ClientBufferSize() int { return c.BufferSize(ServerToClient) }

// Client2ServerBufferSize returns the client-to-server buffer size.
func (c *Connection) Client2ServerBufferSize() int { return c.BufferSize(ClientToServer) }

// Clone returns a fully independent copy, buffers included.
func (c *Connection) Clone() *Connection {
	clone := *c
	clone.clientToServer = c.clientToServer.Clone()
	clone.serverToClient = c.serverToClient.Clone()
	return &clone
}

// Equal reports whether two connections are observationally identical.
func (c *Connection) Equal(other *Connection) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.id == other.id &&
		c.port == other.port &&
		c.state == other.state &&
		c.serverHost == other.serverHost &&
		c.clientHost == other.clientHost &&
		c.serverPassive == other.serverPassive &&
		c.serverData == other.serverData &&
		c.clientData == other.clientData &&
		c.clientToServer.Equal(&other.clientToServer) &&
		c.serverToClient.Equal(&other.serverToClient)
}

// String implements fmt.Stringer.
func (c *Connection) String() string {
	return fmt.Sprintf("serverPassive: %s serverEnd: %s (host: %s) <---port: %d---> clientEnd: %s [%s]\n"+
		"client>=>server buffer: %s\n"+
		"server>=>client buffer: %s",
		c.serverPassive, c.serverData, c.serverHost, c.port, c.clientData, c.state,
		c.clientToServer.String(), c.serverToClient.String())
}
