package service

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/pathnet-go/internal/core/domain"
	"github.com/yndnr/pathnet-go/internal/telemetry/logger"
	"github.com/yndnr/pathnet-go/internal/telemetry/metric"
)

func newTestRegistry(opts ...Option) *Registry {
	return NewRegistry(append([]Option{WithLogger(logger.Discard())}, opts...)...)
}

// establish adds a pending server and binds a client to it.
func establish(t *testing.T, r *Registry, passive, client, serverData domain.Endpoint, port int, host string) *domain.Connection {
	t.Helper()
	r.AddPendingServer(passive, port, host)
	conn := r.FindPendingServer(port, host)
	if conn == nil {
		t.Fatalf("FindPendingServer(%d, %q) = nil", port, host)
	}
	if err := r.BindClient(conn, client, host, serverData); err != nil {
		t.Fatalf("BindClient() error = %v", err)
	}
	return conn
}

func TestRegistry_PendingServerThenClient(t *testing.T) {
	r := newTestRegistry()

	added := r.AddPendingServer(10, 8080, "A")
	found := r.FindPendingServer(8080, "A")
	if found != added {
		t.Fatalf("FindPendingServer() = %v, want the added connection", found)
	}
	if found.State() != domain.StatePending {
		t.Errorf("state = %s, want PENDING", found.State())
	}

	if err := r.BindClient(found, 20, "A", 11); err != nil {
		t.Fatalf("BindClient() error = %v", err)
	}
	if found.State() != domain.StateEstablished {
		t.Errorf("state = %s, want ESTABLISHED", found.State())
	}
	if r.FindPendingServer(8080, "A") != nil {
		t.Error("FindPendingServer() should not return an established connection")
	}
	if r.FindServer(8080, "A") != found {
		t.Error("FindServer() should still return the connection")
	}
	if !r.HasServer(8080, "A") {
		t.Error("HasServer() = false")
	}
}

func TestRegistry_PendingClientThenServer(t *testing.T) {
	r := newTestRegistry()

	r.AddPendingClient(20, 9000, "B")
	conn := r.FindClient(9000, "B")
	if conn == nil {
		t.Fatal("FindClient() = nil")
	}
	if r.HasServer(9000, "B") {
		t.Error("HasServer() = true before server bound")
	}

	if err := r.BindServer(conn, 10, 11, "B"); err != nil {
		t.Fatalf("BindServer() error = %v", err)
	}
	if !conn.IsEstablished() {
		t.Errorf("state = %s, want ESTABLISHED", conn.State())
	}
}

func TestRegistry_BindOrderViolations(t *testing.T) {
	r := newTestRegistry()

	server := r.AddPendingServer(10, 80, "A")
	if err := r.BindServer(server, 10, 11, "A"); !errors.Is(err, domain.ErrNoClient) {
		t.Errorf("BindServer() on server-only connection error = %v, want ErrNoClient", err)
	}

	client := r.AddPendingClient(20, 80, "A")
	if err := r.BindClient(client, 20, "A", 11); !errors.Is(err, domain.ErrNoServer) {
		t.Errorf("BindClient() on client-only connection error = %v, want ErrNoServer", err)
	}
}

func TestRegistry_FirstMatch(t *testing.T) {
	r := newTestRegistry()

	first := r.AddPendingServer(10, 80, "A")
	second := r.AddPendingServer(30, 80, "A")
	if first == second {
		t.Fatal("AddPendingServer() returned the same connection twice")
	}
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (no dedupe)", r.Len())
	}

	if got := r.FindPendingServer(80, "A"); got != first {
		t.Error("FindPendingServer() should return the oldest match")
	}
	if got := r.FindServer(80, "A"); got != first {
		t.Error("FindServer() should return the oldest match")
	}

	c1 := r.AddPendingClient(40, 81, "A")
	r.AddPendingClient(50, 81, "A")
	if got := r.FindClient(81, "A"); got != c1 {
		t.Error("FindClient() should return the oldest match")
	}
}

func TestRegistry_FindPendingClient(t *testing.T) {
	r := newTestRegistry()
	first := r.AddPendingClient(11, 80, "A")
	second := r.AddPendingClient(12, 80, "A")

	if got := r.FindPendingClient(80, "A"); got != first {
		t.Fatal("FindPendingClient() should return the oldest pending client")
	}
	if err := r.BindServer(first, 10, 20, "A"); err != nil {
		t.Fatalf("BindServer() error = %v", err)
	}
	if got := r.FindPendingClient(80, "A"); got != second {
		t.Error("FindPendingClient() returned an established connection")
	}
	if got := r.FindClient(80, "A"); got != first {
		t.Error("FindClient() should still match the established connection")
	}
	if r.FindPendingClient(80, "B") != nil || r.FindPendingClient(81, "A") != nil {
		t.Error("FindPendingClient() matched another address")
	}
}

func TestRegistry_LookupMisses(t *testing.T) {
	r := newTestRegistry()
	r.AddPendingServer(10, 80, "A")

	tests := []struct {
		name string
		got  *domain.Connection
	}{
		{"other port", r.FindServer(81, "A")},
		{"other host", r.FindServer(80, "B")},
		{"client on server-only", r.FindClient(80, "A")},
		{"endpoint without client", r.FindByEndpoint(10)},
		{"null endpoint", r.FindByEndpoint(domain.NoEndpoint)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != nil {
				t.Errorf("lookup = %v, want nil", tt.got)
			}
		})
	}
}

func TestRegistry_FindByEndpoint(t *testing.T) {
	r := newTestRegistry()
	conn := establish(t, r, 10, 20, 11, 80, "A")

	if r.FindByEndpoint(20) != conn {
		t.Error("FindByEndpoint(client) did not return the connection")
	}
	if r.FindByEndpoint(11) != conn {
		t.Error("FindByEndpoint(server data) did not return the connection")
	}
	if r.FindByEndpoint(10) != nil {
		t.Error("FindByEndpoint(passive) should not match")
	}
}

func TestRegistry_CloseTerminate(t *testing.T) {
	r := newTestRegistry()
	conn := establish(t, r, 10, 20, 11, 80, "A")

	if err := r.Close(20); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if conn.State() != domain.StateClosed {
		t.Errorf("state = %s, want CLOSED", conn.State())
	}

	if err := r.Terminate(11); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	if conn.State() != domain.StateTerminated {
		t.Errorf("state = %s, want TERMINATED", conn.State())
	}

	if err := r.Terminate(11); err != nil {
		t.Fatalf("second Terminate() error = %v", err)
	}
	if err := r.Close(11); err != nil {
		t.Fatalf("Close() after terminate error = %v", err)
	}
	if conn.State() != domain.StateTerminated {
		t.Errorf("state = %s, terminated must be absorbing", conn.State())
	}
}

func TestRegistry_CloseUnknown(t *testing.T) {
	r := newTestRegistry()
	establish(t, r, 10, 20, 11, 80, "A")

	err := r.Close(99)
	if !errors.Is(err, domain.ErrConnectionNotFound) {
		t.Errorf("Close(unknown) error = %v, want ErrConnectionNotFound", err)
	}
	if err := r.Close(domain.NoEndpoint); !errors.Is(err, domain.ErrConnectionNotFound) {
		t.Errorf("Close(null) error = %v, want ErrConnectionNotFound", err)
	}
}

func TestRegistry_TerminateUnknown(t *testing.T) {
	lenient := newTestRegistry()
	if err := lenient.Terminate(99); err != nil {
		t.Errorf("Terminate(unknown) error = %v, want nil", err)
	}

	strict := newTestRegistry(WithStrictTerminate(true))
	if err := strict.Terminate(99); !errors.Is(err, domain.ErrConnectionNotFound) {
		t.Errorf("strict Terminate(unknown) error = %v, want ErrConnectionNotFound", err)
	}
}

func TestRegistry_ClosePendingClient(t *testing.T) {
	r := newTestRegistry()
	conn := r.AddPendingClient(20, 80, "A")

	if err := r.Close(20); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !conn.IsClosed() || !conn.IsPending() {
		t.Errorf("closed half-bound connection: closed=%v pending=%v, want true/true",
			conn.IsClosed(), conn.IsPending())
	}
}

func TestRegistry_IsAddressInUse(t *testing.T) {
	tests := []struct {
		name string
		mode AddressInUseMode
		host string
		port int
		want bool
	}{
		{"literal ignores argument", AddressInUseLiteral, "A", 80, false},
		{"literal matches host named host", AddressInUseLiteral, "anything", 81, true},
		{"literal checks port", AddressInUseLiteral, "anything", 82, false},
		{"host mode matches argument", AddressInUseHost, "A", 80, true},
		{"host mode other host", AddressInUseHost, "B", 80, false},
		{"host mode literal host", AddressInUseHost, "host", 81, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(WithAddressInUseMode(tt.mode))
			r.AddPendingServer(10, 80, "A")
			r.AddPendingServer(30, 81, "host")

			if got := r.IsAddressInUse(tt.host, tt.port); got != tt.want {
				t.Errorf("IsAddressInUse(%q, %d) = %v, want %v", tt.host, tt.port, got, tt.want)
			}
		})
	}
}

func TestParseAddressInUseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    AddressInUseMode
		wantErr bool
	}{
		{"", AddressInUseLiteral, false},
		{"literal", AddressInUseLiteral, false},
		{"host", AddressInUseHost, false},
		{"HOST", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAddressInUseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseAddressInUseMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestRegistry_DataPath(t *testing.T) {
	r := newTestRegistry()
	conn := establish(t, r, 10, 20, 11, 80, "A")

	if err := r.Write(20, 1, 2, 3); err != nil {
		t.Fatalf("client Write() error = %v", err)
	}
	if conn.Client2ServerBufferSize() != 3 {
		t.Errorf("client2server size = %d, want 3", conn.Client2ServerBufferSize())
	}
	if n, _ := r.Available(11); n != 3 {
		t.Errorf("Available(server) = %d, want 3", n)
	}
	if n, _ := r.Available(20); n != 0 {
		t.Errorf("Available(client) = %d, want 0", n)
	}

	for _, want := range []byte{1, 2, 3} {
		got, err := r.Read(11)
		if err != nil || got != want {
			t.Fatalf("server Read() = %d, %v; want %d", got, err, want)
		}
	}
	if _, err := r.Read(11); !errors.Is(err, domain.ErrBufferEmpty) {
		t.Errorf("fourth Read() error = %v, want ErrBufferEmpty", err)
	}

	if err := r.Write(11, 9); err != nil {
		t.Fatalf("server Write() error = %v", err)
	}
	if b, err := r.Read(20); err != nil || b != 9 {
		t.Errorf("client Read() = %d, %v; want 9", b, err)
	}

	if err := r.Write(77, 1); !errors.Is(err, domain.ErrConnectionNotFound) {
		t.Errorf("Write(unknown) error = %v, want ErrConnectionNotFound", err)
	}
}

func TestRegistry_HostResolver(t *testing.T) {
	hosts := map[domain.Endpoint]string{20: "client-host", 40: "other-client"}
	r := newTestRegistry(WithHostResolver(func(h domain.Endpoint) string { return hosts[h] }))

	conn := establish(t, r, 10, 20, 11, 80, "A")
	if conn.ClientHost() != "client-host" {
		t.Errorf("ClientHost() = %q, want client-host", conn.ClientHost())
	}

	pending := r.AddPendingClient(40, 81, "A")
	if pending.ClientHost() != "other-client" {
		t.Errorf("pending ClientHost() = %q, want other-client", pending.ClientHost())
	}
}

func TestRegistry_ConnectionsAreCopies(t *testing.T) {
	r := newTestRegistry()
	establish(t, r, 10, 20, 11, 80, "A")
	r.AddPendingServer(30, 81, "A")

	list := r.Connections()
	if len(list) != 2 || list[0].Port() != 80 || list[1].Port() != 81 {
		t.Fatalf("Connections() order wrong: %v", list)
	}

	list[0].ClientWrite(5)
	list[0].Close()
	live := r.FindServer(80, "A")
	if !live.IsClient2ServerBufferEmpty() || live.IsClosed() {
		t.Error("mutating Connections() result leaked into the registry")
	}
}

func TestRegistry_StateCounts(t *testing.T) {
	r := newTestRegistry()
	establish(t, r, 10, 20, 11, 80, "A")
	r.AddPendingServer(30, 81, "A")
	r.AddPendingClient(40, 82, "A")
	_ = r.Close(40)

	got := r.StateCounts()
	want := map[string]int{"PENDING": 1, "ESTABLISHED": 1, "CLOSED": 1, "TERMINATED": 0}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("StateCounts()[%s] = %d, want %d", k, got[k], v)
		}
	}
}

func TestRegistry_Metrics(t *testing.T) {
	m := metric.NewRegistry()
	r := newTestRegistry(WithMetrics(m))

	conn := establish(t, r, 10, 20, 11, 80, "A")
	_ = r.Write(20, 1, 2)
	_, _ = r.Read(11)
	_ = r.Close(conn.ClientDataEndpoint())

	if got := testutil.ToFloat64(m.ConnectionsCreated.WithLabelValues("server")); got != 1 {
		t.Errorf("connections_created{server} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Transitions.WithLabelValues("ESTABLISHED")); got != 1 {
		t.Errorf("transitions{ESTABLISHED} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Transitions.WithLabelValues("CLOSED")); got != 1 {
		t.Errorf("transitions{CLOSED} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Bytes.WithLabelValues("client_to_server", "write")); got != 2 {
		t.Errorf("bytes{client_to_server,write} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Connections); got != 1 {
		t.Errorf("connections gauge = %v, want 1", got)
	}
}

func TestRegistry_EndpointUniqueness(t *testing.T) {
	r := newTestRegistry()
	store := NewSnapshotStore(r)
	handles := []domain.Endpoint{10, 11, 20, 30, 31, 40, 50, 51, 52, 60}

	assertUnique := func(t *testing.T, stage string) {
		t.Helper()
		conns := r.Connections()
		for _, h := range handles {
			owners := 0
			for _, c := range conns {
				if c.IsEndpoint(h) {
					owners++
				}
			}
			if owners > 1 {
				t.Errorf("%s: endpoint %s claimed by %d connections", stage, h, owners)
			}
		}
	}

	establish(t, r, 10, 20, 11, 80, "A")
	establish(t, r, 30, 40, 31, 81, "A")
	sibling := store.Save()
	assertUnique(t, "established")

	client := r.AddPendingClient(50, 82, "B")
	if err := r.BindServer(client, 51, 52, "B"); err != nil {
		t.Fatalf("BindServer() error = %v", err)
	}
	if err := r.Close(20); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := r.Terminate(40); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	r.AddPendingServer(60, 83, "A")
	assertUnique(t, "after close and terminate")

	if err := store.Restore(sibling); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	assertUnique(t, "after restore")
	if r.Len() != 2 || r.FindByEndpoint(50) != nil {
		t.Errorf("restore kept later connections: Len() = %d", r.Len())
	}
}
