// Package trace loads and replays scripted connection traces.
//
// A trace is a YAML document listing registry operations in the order an
// execution engine would issue them, interleaved with search events and
// assertions:
//
//	name: accept-then-connect
//	steps:
//	  - {op: add_pending_server, endpoint: 1, port: 8080, host: srv}
//	  - {op: bind_client, endpoint: 2, data: 3, port: 8080, host: srv}
//	  - {op: advance, state: 1}
//	  - {op: write, endpoint: 2, text: "hi"}
//	  - {op: read, endpoint: 3, text: "hi"}
//	  - {op: backtrack, state: 1}
//	  - {op: expect, expect: {states: {established: 1}, available: {endpoint: 3, want: 0}}}
//
// Each replay runs on a fresh run from a service.RunManager, so the archive
// backend and registry policies follow the configuration.
package trace
