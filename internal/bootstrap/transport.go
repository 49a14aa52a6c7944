package bootstrap

import (
	"context"
	"time"
)

// ConnectStatus is the tag of a transport connection result.
type ConnectStatus int

const (
	ConnectSucceeded ConnectStatus = iota
	ConnectFailed
	ConnectTimedOut
)

// String returns the string representation of the connect status
func (s ConnectStatus) String() string {
	switch s {
	case ConnectSucceeded:
		return "succeeded"
	case ConnectFailed:
		return "failed"
	case ConnectTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// ConnectResult is the tagged outcome of one transport connection attempt.
// PeerCount is meaningful only when Status is ConnectSucceeded, Reason only
// when it is ConnectFailed.
type ConnectResult struct {
	Status    ConnectStatus
	PeerCount int
	Reason    string
}

// Succeeded builds a successful connect result carrying the peer count
// reported by the remote side.
func Succeeded(peerCount int) ConnectResult {
	return ConnectResult{Status: ConnectSucceeded, PeerCount: peerCount}
}

// Failed builds a failed connect result with a diagnostic reason.
func Failed(reason string) ConnectResult {
	return ConnectResult{Status: ConnectFailed, Reason: reason}
}

// TimedOut builds a timed-out connect result.
func TimedOut() ConnectResult {
	return ConnectResult{Status: ConnectTimedOut}
}

// Transport is the collaborator that performs the actual wire-level
// connection to a candidate. Implementations are expected to honor the
// timeout (and the context deadline derived from it) and to report a timeout
// through the result tag rather than an error - the orchestrator never sees
// errors from a transport, only tagged results.
type Transport interface {
	ConnectCandidate(ctx context.Context, candidate *BootstrapCandidate, timeout time.Duration) ConnectResult
}
