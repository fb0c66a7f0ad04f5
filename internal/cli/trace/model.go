// Package trace loads and replays scripted connection traces.
package trace

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Op names one trace step.
type Op string

// Supported operations.
const (
	OpAddPendingServer Op = "add_pending_server"
	OpAddPendingClient Op = "add_pending_client"
	OpBindServer       Op = "bind_server"
	OpBindClient       Op = "bind_client"
	OpWrite            Op = "write"
	OpRead             Op = "read"
	OpClose            Op = "close"
	OpTerminate        Op = "terminate"
	OpRelease          Op = "release"
	OpAdvance          Op = "advance"
	OpBacktrack        Op = "backtrack"
	OpRestore          Op = "restore"
	OpProcessed        Op = "processed"
	OpCheckpoint       Op = "checkpoint"
	OpExpect           Op = "expect"
)

var knownOps = map[Op]struct{}{
	OpAddPendingServer: {}, OpAddPendingClient: {},
	OpBindServer: {}, OpBindClient: {},
	OpWrite: {}, OpRead: {},
	OpClose: {}, OpTerminate: {}, OpRelease: {},
	OpAdvance: {}, OpBacktrack: {}, OpRestore: {}, OpProcessed: {},
	OpCheckpoint: {}, OpExpect: {},
}

// ErrInvalidTrace is returned for traces that fail validation.
var ErrInvalidTrace = errors.New("trace: invalid trace")

// Trace is a named, ordered list of steps.
type Trace struct {
	Name  string `yaml:"name" json:"name"`
	Steps []Step `yaml:"steps" json:"steps"`
}

// Step is one operation. Which fields matter depends on Op:
//
//   - add_pending_server: endpoint (passive), port, host
//   - add_pending_client: endpoint (client data), port, host
//   - bind_server: endpoint (passive), data (server data), port, host
//   - bind_client: endpoint (client data), data (server data), port, host
//   - write: endpoint, bytes or text
//   - read: endpoint, count or the expected bytes/text
//   - close, terminate, release: endpoint
//   - advance, backtrack, restore, processed: state
//   - checkpoint: state (recorded in the header)
//   - expect: see Expect
//
// Error, when set, is the DomainError code the step must fail with.
type Step struct {
	Op       Op      `yaml:"op" json:"op"`
	Endpoint int32   `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Data     int32   `yaml:"data,omitempty" json:"data,omitempty"`
	Port     int     `yaml:"port,omitempty" json:"port,omitempty"`
	Host     string  `yaml:"host,omitempty" json:"host,omitempty"`
	Bytes    []int   `yaml:"bytes,omitempty" json:"bytes,omitempty"`
	Text     string  `yaml:"text,omitempty" json:"text,omitempty"`
	Count    int     `yaml:"count,omitempty" json:"count,omitempty"`
	State    uint64  `yaml:"state,omitempty" json:"state,omitempty"`
	Expect   *Expect `yaml:"expect,omitempty" json:"expect,omitempty"`
	Error    string  `yaml:"error,omitempty" json:"error,omitempty"`
}

// Expect lists registry assertions. Unset fields are not checked.
type Expect struct {
	Connections  *int           `yaml:"connections,omitempty" json:"connections,omitempty"`
	States       map[string]int `yaml:"states,omitempty" json:"states,omitempty"`
	AddressInUse *AddressCheck  `yaml:"address_in_use,omitempty" json:"address_in_use,omitempty"`
	Available    *Available     `yaml:"available,omitempty" json:"available,omitempty"`
	HasServer    *AddressCheck  `yaml:"has_server,omitempty" json:"has_server,omitempty"`
}

// AddressCheck asserts a (host, port) query result.
type AddressCheck struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
	Want bool   `yaml:"want" json:"want"`
}

// Available asserts how many bytes an endpoint can read.
type Available struct {
	Endpoint int32 `yaml:"endpoint" json:"endpoint"`
	Want     int   `yaml:"want" json:"want"`
}

// Payload returns the bytes a write or read step carries: Bytes when set,
// Text otherwise.
func (s Step) Payload() ([]byte, error) {
	if len(s.Bytes) == 0 {
		return []byte(s.Text), nil
	}
	out := make([]byte, len(s.Bytes))
	for i, b := range s.Bytes {
		if b < 0 || b > 255 {
			return nil, fmt.Errorf("%w: byte %d out of range: %d", ErrInvalidTrace, i, b)
		}
		out[i] = byte(b)
	}
	return out, nil
}

// Parse decodes a YAML trace. Unknown keys are rejected.
func Parse(r io.Reader) (*Trace, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var t Trace
	if err := dec.Decode(&t); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidTrace)
		}
		return nil, fmt.Errorf("trace: decode: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Load reads and parses the trace at path.
func Load(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("trace: read %s: %w", path, err)
	}
	t, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if t.Name == "" {
		t.Name = path
	}
	return t, nil
}

// Validate checks that every step names a known operation and carries the
// fields it needs.
func (t *Trace) Validate() error {
	if len(t.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidTrace)
	}
	for i, s := range t.Steps {
		if err := s.validate(); err != nil {
			return fmt.Errorf("%w: step %d (%s): %v", ErrInvalidTrace, i+1, s.Op, err)
		}
	}
	return nil
}

func (s Step) validate() error {
	if _, ok := knownOps[s.Op]; !ok {
		return errors.New("unknown op")
	}
	switch s.Op {
	case OpAddPendingServer, OpAddPendingClient, OpBindServer, OpBindClient:
		if s.Port <= 0 {
			return errors.New("port is required")
		}
		if s.Endpoint == 0 && s.Error == "" {
			return errors.New("endpoint is required")
		}
	case OpWrite:
		if len(s.Bytes) == 0 && s.Text == "" {
			return errors.New("bytes or text is required")
		}
	case OpExpect:
		if s.Expect == nil {
			return errors.New("expect block is required")
		}
	}
	if _, err := s.Payload(); err != nil {
		return err
	}
	return nil
}
