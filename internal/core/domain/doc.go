// Package domain defines the core domain models for pathnet.
//
// Domain models are pure value objects without any IO dependencies or
// framework coupling. This package contains:
//
//   - Connection: client/server pairing with a lifecycle state machine
//     and two FIFO byte buffers
//   - ByteQueue: the unbounded ring buffer backing each direction
//   - Snapshot: an immutable deep copy of a connection list
//   - Errors: the PN-* error taxonomy
//
// Connections are owned values. Every copy that crosses a path boundary
// (snapshot, restore, archive) is made with Clone so that two branches of a
// search never share buffer storage.
package domain
