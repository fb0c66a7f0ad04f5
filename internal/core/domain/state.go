// Package domain defines the core domain models for pathnet.
package domain

import "strings"

// State is the lifecycle state of a connection.
//
// The intended transitions:
//
//	pending     -> established | closed | terminated
//	established -> closed | terminated
//	closed      -> terminated
//	terminated  (absorbing)
type State uint8

const (
	StatePending State = iota
	StateEstablished
	StateClosed
	StateTerminated
)

var stateNames = [...]string{
	StatePending:     "PENDING",
	StateEstablished: "ESTABLISHED",
	StateClosed:      "CLOSED",
	StateTerminated:  "TERMINATED",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// ParseState converts a state name (case-insensitive) back into a State.
func ParseState(name string) (State, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range stateNames {
		if n == upper {
			return State(i), nil
		}
	}
	return StatePending, ErrInvalidArgument.WithDetailsf("unknown connection state %q", name)
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// Self transitions are allowed for closed and terminated so that repeated
// close/terminate requests stay idempotent.
func (s State) CanTransition(next State) bool {
	switch s {
	case StatePending:
		return next != StatePending
	case StateEstablished:
		return next == StateClosed || next == StateTerminated
	case StateClosed:
		return next == StateClosed || next == StateTerminated
	case StateTerminated:
		return next == StateTerminated
	default:
		return false
	}
}
