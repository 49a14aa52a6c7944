package bootstrap

import (
	"fmt"
	"time"
)

const (
	// DefaultCandidatePriority is the mid-range priority assigned when the
	// caller does not care about ordering. Lower values are attempted first.
	DefaultCandidatePriority = 50

	// DefaultCandidateTimeout bounds a single connection attempt.
	DefaultCandidateTimeout = 10 * time.Second
)

// BootstrapCandidate is a single addressable entry point the orchestrator may
// attempt to bootstrap through. Immutable after construction; owned by the
// orchestrator's registry once added.
type BootstrapCandidate struct {
	Address  string            // endpoint descriptor understood by the transport
	Method   BootstrapMethod   // provenance tag, reporting only
	Priority int               // lower = attempted earlier, ties keep insertion order
	Timeout  time.Duration     // per-candidate connection timeout
	Metadata map[string]string // opaque, never interpreted here
}

// NewBootstrapCandidate builds a validated candidate. An empty address or a
// non-positive timeout is a programming error and panics - candidates are
// constructed at seeding/registration time, never mid-sweep.
func NewBootstrapCandidate(address string, method BootstrapMethod, priority int, timeout time.Duration) *BootstrapCandidate {
	if address == "" {
		panic("bootstrap: candidate address must not be empty")
	}
	if timeout <= 0 {
		panic(fmt.Sprintf("bootstrap: candidate timeout must be positive, got %v", timeout))
	}

	return &BootstrapCandidate{
		Address:  address,
		Method:   method,
		Priority: priority,
		Timeout:  timeout,
		Metadata: make(map[string]string),
	}
}

// WithMetadata attaches an opaque key/value pair and returns the candidate
// for chaining during construction.
func (c *BootstrapCandidate) WithMetadata(key, value string) *BootstrapCandidate {
	c.Metadata[key] = value
	return c
}

func (c *BootstrapCandidate) String() string {
	return fmt.Sprintf("%s (%s, priority %d, timeout %v)", c.Address, c.Method, c.Priority, c.Timeout)
}
