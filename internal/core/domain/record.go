// Package domain defines the core domain models for pathnet.
package domain

import "time"

// ConnectionRecord is the exported, serialisable form of a Connection.
// Buffers are listed head first.
type ConnectionRecord struct {
	ID    string `json:"id" yaml:"id"`
	Port  int    `json:"port" yaml:"port"`
	State string `json:"state" yaml:"state"`

	ServerHost string `json:"server_host" yaml:"server_host"`
	ClientHost string `json:"client_host,omitempty" yaml:"client_host,omitempty"`

	ServerPassive Endpoint `json:"server_passive" yaml:"server_passive"`
	ServerData    Endpoint `json:"server_data" yaml:"server_data"`
	ClientData    Endpoint `json:"client_data" yaml:"client_data"`

	ClientToServer []byte `json:"client_to_server" yaml:"client_to_server"`
	ServerToClient []byte `json:"server_to_client" yaml:"server_to_client"`
}

// Record returns the serialisable form of c.
func (c *Connection) Record() ConnectionRecord {
	return ConnectionRecord{
		ID:             c.id,
		Port:           c.port,
		State:          c.state.String(),
		ServerHost:     c.serverHost,
		ClientHost:     c.clientHost,
		ServerPassive:  c.serverPassive,
		ServerData:     c.serverData,
		ClientData:     c.clientData,
		ClientToServer: c.clientToServer.Bytes(),
		ServerToClient: c.serverToClient.Bytes(),
	}
}

// FromRecord rebuilds a Connection from its record.
func FromRecord(r ConnectionRecord) (*Connection, error) {
	state, err := ParseState(r.State)
	if err != nil {
		return nil, err
	}
	if r.ID == "" {
		return nil, ErrInvalidArgument.WithDetails("connection record without id")
	}
	c := &Connection{
		id:            r.ID,
		port:          r.Port,
		state:         state,
		serverHost:    r.ServerHost,
		clientHost:    r.ClientHost,
		serverPassive: r.ServerPassive,
		serverData:    r.ServerData,
		clientData:    r.ClientData,
	}
	c.clientToServer.PushAll(r.ClientToServer)
	c.serverToClient.PushAll(r.ServerToClient)
	return c, nil
}

// Snapshot is an immutable deep copy of a registry's connection list.
type Snapshot struct {
	conns   []*Connection
	takenAt int64
}

// NewSnapshot deep-copies conns into a new snapshot.
func NewSnapshot(conns []*Connection) *Snapshot {
	return &Snapshot{
		conns:   CloneConnections(conns),
		takenAt: time.Now().UnixMilli(),
	}
}

// SnapshotFromRecords rebuilds a snapshot from serialised records.
func SnapshotFromRecords(records []ConnectionRecord, takenAt int64) (*Snapshot, error) {
	conns := make([]*Connection, 0, len(records))
	for _, r := range records {
		c, err := FromRecord(r)
		if err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	return &Snapshot{conns: conns, takenAt: takenAt}, nil
}

// Len returns the number of connections captured.
func (s *Snapshot) Len() int { return len(s.conns) }

// TakenAt returns the capture time in Unix milliseconds.
func (s *Snapshot) TakenAt() int64 { return s.takenAt }

// Connections returns fresh clones of the captured connections.
func (s *Snapshot) Connections() []*Connection {
	return CloneConnections(s.conns)
}

// Records returns the captured connections in serialisable form.
func (s *Snapshot) Records() []ConnectionRecord {
	out := make([]ConnectionRecord, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c.Record())
	}
	return out
}

// CloneConnections deep-copies every connection in list, preserving order.
func CloneConnections(list []*Connection) []*Connection {
	out := make([]*Connection, 0, len(list))
	for _, c := range list {
		out = append(out, c.Clone())
	}
	return out
}

// Clone returns an independent copy of s with the same capture time.
func (s *Snapshot) Clone() *Snapshot {
	return &Snapshot{conns: CloneConnections(s.conns), takenAt: s.takenAt}
}
