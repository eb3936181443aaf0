// Package room implements the per-room lifecycle state machine: roles, the
// waiting set, admitted peers, and atomic transitions under concurrent
// WebSocket ingress, plus the Peer Session that drives one connection
// through authenticate -> register -> wait -> admit -> negotiate -> steady
// state -> teardown.
package room

import "github.com/aura-conference/sfu-server/internal/conference/auth"

// PeerID is the process-unique, per-process monotonic identifier handed out
// to every Peer Session and used as the wire-visible peer_id. It replaces
// the source implementation's use of object identity (see Design Notes).
type PeerID int64

// Role is one of the two fixed roles a session holds for its lifetime.
type Role = auth.Role

const (
	RoleAdmin = auth.RoleAdmin
	RoleUser  = auth.RoleUser
)

// State is a Peer Session's position in its lifecycle state machine.
type State int

const (
	StateAuthenticating State = iota
	StateRegisteredAdmin
	StateWaiting
	StateAdmitted
	StateNegotiating
	StateLive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateRegisteredAdmin:
		return "registered-admin"
	case StateWaiting:
		return "waiting"
	case StateAdmitted:
		return "admitted"
	case StateNegotiating:
		return "negotiating"
	case StateLive:
		return "live"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time, read-only view of a Room's membership, read
// by tests — it participates in no invariant and is never used to make a
// decision.
type Snapshot struct {
	Admins     int
	Waiting    int
	Admitted   int
	LiveTracks int
}
