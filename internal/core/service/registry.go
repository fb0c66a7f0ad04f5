// Package service provides the connection services for pathnet.
package service

import (
	"log/slog"

	"github.com/yndnr/pathnet-go/internal/core/domain"
	"github.com/yndnr/pathnet-go/internal/telemetry/logger"
	"github.com/yndnr/pathnet-go/internal/telemetry/metric"
)

// AddressInUseMode selects how IsAddressInUse compares server hosts.
type AddressInUseMode string

const (
	// AddressInUseLiteral matches servers whose host is the literal string
	// "host", ignoring the host argument. This is the reference behaviour and
	// the default.
	AddressInUseLiteral AddressInUseMode = "literal"

	// AddressInUseHost matches servers whose host equals the host argument.
	AddressInUseHost AddressInUseMode = "host"
)

// literalAddressHost is the host compared against in AddressInUseLiteral mode.
const literalAddressHost = "host"

// ParseAddressInUseMode validates a configured mode. Empty means literal.
func ParseAddressInUseMode(s string) (AddressInUseMode, error) {
	switch AddressInUseMode(s) {
	case "", AddressInUseLiteral:
		return AddressInUseLiteral, nil
	case AddressInUseHost:
		return AddressInUseHost, nil
	default:
		return "", domain.ErrInvalidArgument.WithDetailsf("address_in_use mode %q", s)
	}
}

// HostResolver maps an endpoint to the host of the application owning it.
type HostResolver func(h domain.Endpoint) string

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records registry activity on m.
func WithMetrics(m *metric.Registry) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithAddressInUseMode sets the IsAddressInUse comparison.
func WithAddressInUseMode(mode AddressInUseMode) Option {
	return func(r *Registry) {
		r.addrMode = mode
	}
}

// WithStrictTerminate makes Terminate report ErrConnectionNotFound on a miss.
func WithStrictTerminate(strict bool) Option {
	return func(r *Registry) {
		r.strictTerminate = strict
	}
}

// WithHostResolver fills in client hosts when a client side is bound.
func WithHostResolver(fn HostResolver) Option {
	return func(r *Registry) {
		r.resolveHost = fn
	}
}

// Registry is the ordered list of connections made along the current
// execution path.
//
// Lookups scan in insertion order and return the first match. Find methods
// return the live connection, not a copy; mutate it only through the
// registry or the connection's own methods.
//
// Registry is not safe for concurrent use. The exploration engine drives it
// from a single goroutine.
type Registry struct {
	conns []*domain.Connection

	logger          *slog.Logger
	metrics         *metric.Registry
	addrMode        AddressInUseMode
	strictTerminate bool
	resolveHost     HostResolver
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		logger:   slog.Default(),
		addrMode: AddressInUseLiteral,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ============================================================================
// Creation
// ============================================================================

// AddPendingServer appends a connection with only the server side bound.
// Duplicates on the same (port, host) are not detected.
func (r *Registry) AddPendingServer(passive domain.Endpoint, port int, host string) *domain.Connection {
	conn := domain.NewPendingServer(passive, port, host)
	r.append(conn, "server")
	return conn
}

// AddPendingClient appends a connection with only the client side bound.
// host is the server host the client is trying to reach.
func (r *Registry) AddPendingClient(client domain.Endpoint, port int, host string) *domain.Connection {
	conn := domain.NewPendingClient(client, port, host)
	if r.resolveHost != nil {
		conn.SetClientHost(r.resolveHost(client))
	}
	r.append(conn, "client")
	return conn
}

func (r *Registry) append(conn *domain.Connection, side string) {
	r.conns = append(r.conns, conn)
	r.metrics.ConnectionCreated(side)
	r.metrics.SetConnections(len(r.conns))
	r.logger.Debug("connection added",
		"id", conn.ID(),
		"side", side,
		"port", conn.Port(),
		"server_host", conn.ServerHost(),
	)
}

// BindServer completes the server side of conn, typically a pending client
// connection found with FindClient.
func (r *Registry) BindServer(conn *domain.Connection, passive, data domain.Endpoint, host string) error {
	before := conn.State()
	if err := conn.BindServer(passive, data, host); err != nil {
		return err
	}
	r.observeTransition(conn, before)
	return nil
}

// BindClient completes the client side of conn, typically a pending server
// connection found with FindPendingServer.
func (r *Registry) BindClient(conn *domain.Connection, data domain.Endpoint, host string, serverData domain.Endpoint) error {
	before := conn.State()
	if err := conn.BindClient(data, host, serverData); err != nil {
		return err
	}
	if r.resolveHost != nil {
		conn.SetClientHost(r.resolveHost(data))
	}
	r.observeTransition(conn, before)
	return nil
}

func (r *Registry) observeTransition(conn *domain.Connection, before domain.State) {
	if conn.State() == before {
		return
	}
	r.metrics.Transition(conn.State().String())
	r.logger.Debug("connection transition",
		"id", conn.ID(),
		"from", before.String(),
		"to", conn.State().String(),
	)
}

// ============================================================================
// Lookups
// ============================================================================

// FindPendingServer returns the first pending connection with a server bound
// on (port, host), or nil.
func (r *Registry) FindPendingServer(port int, host string) *domain.Connection {
	for _, c := range r.conns {
		if c.HasServer() && c.IsPending() && c.Port() == port && c.ServerHost() == host {
			return c
		}
	}
	return nil
}

// FindServer returns the first connection with a server bound on
// (port, host) in any state, or nil.
func (r *Registry) FindServer(port int, host string) *domain.Connection {
	for _, c := range r.conns {
		if c.HasServer() && c.Port() == port && c.ServerHost() == host {
			return c
		}
	}
	return nil
}

// HasServer reports whether FindServer would return a connection.
func (r *Registry) HasServer(port int, host string) bool {
	return r.FindServer(port, host) != nil
}

// FindClient returns the first connection with a client bound that targets
// (port, host), or nil.
func (r *Registry) FindClient(port int, host string) *domain.Connection {
	for _, c := range r.conns {
		if c.HasClient() && c.Port() == port && c.ServerHost() == host {
			return c
		}
	}
	return nil
}

// FindPendingClient returns the first pending connection with a client bound
// that targets (port, host), or nil.
func (r *Registry) FindPendingClient(port int, host string) *domain.Connection {
	for _, c := range r.conns {
		if c.HasClient() && c.IsPending() && c.Port() == port && c.ServerHost() == host {
			return c
		}
	}
	return nil
}

// FindByEndpoint returns the first connection with a client bound for which
// h is a data endpoint, or nil.
func (r *Registry) FindByEndpoint(h domain.Endpoint) *domain.Connection {
	for _, c := range r.conns {
		if c.HasClient() && c.IsEndpoint(h) {
			return c
		}
	}
	return nil
}

// findAnyByEndpoint is FindByEndpoint without the bound-client restriction.
func (r *Registry) findAnyByEndpoint(h domain.Endpoint) *domain.Connection {
	for _, c := range r.conns {
		if c.IsEndpoint(h) {
			return c
		}
	}
	return nil
}

// IsAddressInUse reports whether a tracked connection has a server on port
// whose host matches according to the configured AddressInUseMode.
func (r *Registry) IsAddressInUse(host string, port int) bool {
	want := literalAddressHost
	if r.addrMode == AddressInUseHost {
		want = host
	}
	for _, c := range r.conns {
		if c.ServerHost() == want && c.Port() == port {
			return true
		}
	}
	return false
}

// ============================================================================
// Lifecycle
// ============================================================================

// Close closes the connection h is an endpoint of.
// It fails with ErrConnectionNotFound when no connection has that endpoint.
func (r *Registry) Close(h domain.Endpoint) error {
	conn := r.findAnyByEndpoint(h)
	if conn == nil {
		return domain.ErrConnectionNotFound.WithDetailsf("close endpoint %s", h)
	}
	before := conn.State()
	conn.Close()
	r.observeTransition(conn, before)
	return nil
}

// Terminate terminates the connection h is an endpoint of. A miss is
// ignored unless the registry was built WithStrictTerminate.
func (r *Registry) Terminate(h domain.Endpoint) error {
	conn := r.findAnyByEndpoint(h)
	if conn == nil {
		if r.strictTerminate {
			return domain.ErrConnectionNotFound.WithDetailsf("terminate endpoint %s", h)
		}
		r.logger.Debug("terminate ignored, no connection", "endpoint", h.String())
		return nil
	}
	before := conn.State()
	conn.Terminate()
	r.observeTransition(conn, before)
	return nil
}

// ============================================================================
// Data path
// ============================================================================

// Write queues data from h towards the other end of its connection.
func (r *Registry) Write(h domain.Endpoint, data ...byte) error {
	conn, dir, err := r.route(h)
	if err != nil {
		return err
	}
	out := dir.Opposite()
	for _, b := range data {
		conn.Write(out, b)
	}
	r.metrics.BytesMoved(out.String(), "write", len(data))
	r.logger.Debug("bytes written", "endpoint", h.String(), "direction", out.String(), logger.Payload("data", data))
	return nil
}

// Read pops the next byte addressed to h.
func (r *Registry) Read(h domain.Endpoint) (byte, error) {
	conn, dir, err := r.route(h)
	if err != nil {
		return 0, err
	}
	b, err := conn.Read(dir)
	if err != nil {
		return 0, err
	}
	r.metrics.BytesMoved(dir.String(), "read", 1)
	return b, nil
}

// Available returns how many bytes are waiting to be read by h.
func (r *Registry) Available(h domain.Endpoint) (int, error) {
	conn, dir, err := r.route(h)
	if err != nil {
		return 0, err
	}
	return conn.BufferSize(dir), nil
}

// route resolves h to its connection and the direction h reads from.
func (r *Registry) route(h domain.Endpoint) (*domain.Connection, domain.Direction, error) {
	conn := r.FindByEndpoint(h)
	if conn == nil {
		return nil, 0, domain.ErrConnectionNotFound.WithDetailsf("endpoint %s", h)
	}
	dir, err := conn.InboundDirection(h)
	if err != nil {
		return nil, 0, err
	}
	return conn, dir, nil
}

// ============================================================================
// Inspection
// ============================================================================

// Connections returns clones of every connection in insertion order.
func (r *Registry) Connections() []*domain.Connection {
	return domain.CloneConnections(r.conns)
}

// Len returns the number of tracked connections.
func (r *Registry) Len() int {
	return len(r.conns)
}

// StateCounts returns the number of connections per lifecycle state.
func (r *Registry) StateCounts() map[string]int {
	counts := map[string]int{
		domain.StatePending.String():     0,
		domain.StateEstablished.String(): 0,
		domain.StateClosed.String():      0,
		domain.StateTerminated.String():  0,
	}
	for _, c := range r.conns {
		counts[c.State().String()]++
	}
	return counts
}

// replace swaps in conns as the current path's connection list.
func (r *Registry) replace(conns []*domain.Connection) {
	r.conns = conns
	r.metrics.SetConnections(len(conns))
}
