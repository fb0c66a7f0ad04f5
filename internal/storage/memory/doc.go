// Package memory provides in-memory storage for pathnet.
//
// Archive is the default StateArchive: snapshots are kept as deep copies in
// a murmur3-sharded concurrent map keyed by search state ID. It is safe for
// concurrent use, so several runs may archive in parallel.
package memory
