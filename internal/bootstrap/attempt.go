package bootstrap

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus is the lifecycle state of one connection attempt.
// Pending and InProgress are transient; Success, Failed and TimedOut are
// terminal. A terminal attempt never transitions again.
type AttemptStatus int

const (
	AttemptPending AttemptStatus = iota
	AttemptInProgress
	AttemptSuccess
	AttemptFailed
	AttemptTimedOut
)

// String returns the string representation of the attempt status
func (s AttemptStatus) String() string {
	switch s {
	case AttemptPending:
		return "pending"
	case AttemptInProgress:
		return "in_progress"
	case AttemptSuccess:
		return "success"
	case AttemptFailed:
		return "failed"
	case AttemptTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the status is one of the three end states.
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptSuccess || s == AttemptFailed || s == AttemptTimedOut
}

// BootstrapAttempt records one concrete try against one candidate. The owning
// task mutates it under the orchestrator's history lock; everyone else sees
// value snapshots.
type BootstrapAttempt struct {
	ID        string
	Candidate *BootstrapCandidate
	Status    AttemptStatus
	StartTime time.Time
	EndTime   time.Time // zero until the attempt reaches a terminal state
	Error     string    // set only for Failed/TimedOut
	PeerCount int       // meaningful only on Success
}

func newBootstrapAttempt(candidate *BootstrapCandidate) *BootstrapAttempt {
	return &BootstrapAttempt{
		ID:        uuid.NewString(),
		Candidate: candidate,
		Status:    AttemptInProgress,
		StartTime: time.Now(),
	}
}

// complete moves the attempt into a terminal state. The first terminal
// transition wins; later calls are ignored so an abandoned task cannot
// overwrite a recorded outcome. Caller must hold the history lock.
func (a *BootstrapAttempt) complete(status AttemptStatus, errMsg string, peerCount int) {
	if a.Status.IsTerminal() {
		return
	}
	if !status.IsTerminal() {
		return
	}

	a.Status = status
	a.EndTime = time.Now()
	switch status {
	case AttemptSuccess:
		a.PeerCount = peerCount
	case AttemptFailed, AttemptTimedOut:
		a.Error = errMsg
	}
}

// Duration returns the elapsed time of the attempt, or the time spent so far
// if it has not reached a terminal state.
func (a *BootstrapAttempt) Duration() time.Duration {
	if a.EndTime.IsZero() {
		return time.Since(a.StartTime)
	}
	return a.EndTime.Sub(a.StartTime)
}

// snapshot returns a value copy safe to hand to callers. The candidate
// pointer is shared - candidates are immutable after construction.
func (a *BootstrapAttempt) snapshot() BootstrapAttempt {
	return *a
}
