package bootstrap

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/peerlink-network/peerlink-node/internal/utils"
	"github.com/peerlink-network/peerlink-node/internal/workers"
)

// AttemptStore persists terminal attempt records for later inspection.
// Persistence failures are logged and swallowed - observability must never
// fail a sweep.
type AttemptStore interface {
	SaveAttempt(attempt BootstrapAttempt) error
}

// BootstrapOutcome summarizes one Bootstrap call. Immutable once returned.
type BootstrapOutcome struct {
	SuccessCount          int
	FailureCount          int // includes timed-out attempts
	TotalAttempted        int
	DetectedPublicAddress *string
	NATPosture            string
	Duration              time.Duration
	Attempts              []BootstrapAttempt
}

// Succeeded reports whether at least one candidate accepted the connection.
// Zero successes is a normal outcome, not an error - callers check here.
func (o *BootstrapOutcome) Succeeded() bool {
	return o.SuccessCount > 0
}

// BootstrapOrchestrator runs a priority-ordered, concurrency-bounded sweep of
// connection attempts across the registered candidates. Individual candidate
// failures never abort the sweep; that fallback contract is the point of the
// component.
type BootstrapOrchestrator struct {
	cm         *utils.ConfigManager
	logger     *utils.LogsManager
	ctx        context.Context
	cancel     context.CancelFunc
	detector   *PublicAddressDetector
	classifier *NATClassifier
	transport  Transport
	store      AttemptStore
	pool       *workers.WorkerPool

	registryMutex sync.RWMutex
	registry      []*BootstrapCandidate

	historyMutex sync.Mutex
	history      []*BootstrapAttempt
}

// NewBootstrapOrchestrator creates an orchestrator whose sweep concurrency is
// capped at maxConcurrentAttempts. The registry is seeded with the configured
// default rendezvous candidates. maxConcurrentAttempts < 1 is a programming
// error and panics.
func NewBootstrapOrchestrator(cm *utils.ConfigManager, logger *utils.LogsManager, maxConcurrentAttempts int, detector *PublicAddressDetector, classifier *NATClassifier) *BootstrapOrchestrator {
	if maxConcurrentAttempts < 1 {
		panic(fmt.Sprintf("bootstrap: maxConcurrentAttempts must be at least 1, got %d", maxConcurrentAttempts))
	}

	ctx, cancel := context.WithCancel(context.Background())

	o := &BootstrapOrchestrator{
		cm:         cm,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		detector:   detector,
		classifier: classifier,
		pool:       workers.NewWorkerPool(ctx, maxConcurrentAttempts, logger),
	}

	o.seedDefaultCandidates()
	o.pool.Start()

	return o
}

// seedDefaultCandidates registers the built-in rendezvous set from config.
func (o *BootstrapOrchestrator) seedDefaultCandidates() {
	defaults := o.cm.GetBootstrapNodes("bootstrap_candidates", []string{
		"rendezvous1.peerlink.network:30906",
		"rendezvous2.peerlink.network:30906",
		"rendezvous3.peerlink.network:30906",
	})

	priority := o.cm.GetConfigInt("bootstrap_default_priority", DefaultCandidatePriority, 0, 1000)
	timeout := o.cm.GetConfigDuration("bootstrap_candidate_timeout", DefaultCandidateTimeout)

	for _, address := range defaults {
		o.AddCandidate(NewBootstrapCandidate(address, MethodKnownRendezvous, priority, timeout))
	}

	o.logger.Debug(fmt.Sprintf("Seeded %d default rendezvous candidates", len(defaults)), "bootstrap")
}

// SetTransport injects the wire-level transport collaborator. Required
// before the first Bootstrap call.
func (o *BootstrapOrchestrator) SetTransport(transport Transport) {
	o.transport = transport
}

// SetAttemptStore injects an optional persistence sink for attempt records.
func (o *BootstrapOrchestrator) SetAttemptStore(store AttemptStore) {
	o.store = store
}

// AddCandidate registers a candidate entry point. Candidates added while a
// Bootstrap call is in flight are picked up by the next call only.
func (o *BootstrapOrchestrator) AddCandidate(candidate *BootstrapCandidate) {
	if candidate == nil {
		panic("bootstrap: candidate must not be nil")
	}

	o.registryMutex.Lock()
	o.registry = append(o.registry, candidate)
	count := len(o.registry)
	o.registryMutex.Unlock()

	o.logger.Debug(fmt.Sprintf("Registered candidate %s (%d total)", candidate, count), "bootstrap")
}

// AddCustomServer registers an operator-supplied server as a candidate.
// A non-positive timeout falls back to the configured per-candidate default.
func (o *BootstrapOrchestrator) AddCustomServer(address string, priority int, timeout time.Duration) {
	if timeout <= 0 {
		timeout = o.cm.GetConfigDuration("bootstrap_candidate_timeout", DefaultCandidateTimeout)
	}
	o.AddCandidate(NewBootstrapCandidate(address, MethodCustomServer, priority, timeout))
}

// GetCandidates returns a snapshot of the registry in registration order.
func (o *BootstrapOrchestrator) GetCandidates() []BootstrapCandidate {
	o.registryMutex.RLock()
	defer o.registryMutex.RUnlock()

	candidates := make([]BootstrapCandidate, 0, len(o.registry))
	for _, c := range o.registry {
		candidates = append(candidates, *c)
	}
	return candidates
}

// Bootstrap runs one full sweep: best-effort public-address and NAT posture
// detection, then one connection attempt per candidate in ascending priority
// order (stable on ties), at most maxConcurrentAttempts in flight at once.
//
// maxCandidates <= 0 means "try all registered candidates". The call returns
// when every attempt has reached a terminal state or when aggregateTimeout
// elapses, whichever comes first. On the timeout path outstanding attempts
// are abandoned, not cancelled: their own per-candidate timeout still bounds
// them, they may briefly hold a pool slot after this call returns, and they
// appear in the outcome in a non-terminal state, counted as neither success
// nor failure.
func (o *BootstrapOrchestrator) Bootstrap(maxCandidates int, aggregateTimeout time.Duration) BootstrapOutcome {
	if o.transport == nil {
		panic("bootstrap: transport must be set before calling Bootstrap")
	}
	if aggregateTimeout <= 0 {
		aggregateTimeout = o.cm.GetConfigDuration("bootstrap_aggregate_timeout", 60*time.Second)
	}

	start := time.Now()

	preferIPv6 := o.cm.GetConfigBool("bootstrap_prefer_ipv6", false)
	publicAddress := o.detector.DetectPublicAddress(preferIPv6, false)
	natPosture := o.classifier.DetectNATType()

	candidates := o.sweepOrder(maxCandidates)
	o.logger.Info(fmt.Sprintf("Starting bootstrap sweep across %d candidates (cap %d, aggregate timeout %v)",
		len(candidates), o.pool.Size(), aggregateTimeout), "bootstrap")

	sweep := &sweepState{}
	var wg sync.WaitGroup

	// Submit from a separate goroutine: Submit blocks when the pool is
	// saturated, and the caller's wait below must stay bounded by the
	// aggregate timeout even while later candidates are still queueing.
	wg.Add(len(candidates))
	go func() {
		for _, candidate := range candidates {
			candidate := candidate
			err := o.pool.Submit(func() {
				defer wg.Done()
				o.runAttempt(candidate, sweep)
			})
			if err != nil {
				o.logger.Warn(fmt.Sprintf("Could not schedule attempt for %s: %v", candidate.Address, err), "bootstrap")
				wg.Done()
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(aggregateTimeout):
		o.logger.Warn(fmt.Sprintf("Aggregate timeout %v elapsed with attempts still in flight, abandoning them", aggregateTimeout), "bootstrap")
	}

	outcome := o.buildOutcome(sweep, publicAddress, natPosture, time.Since(start))

	o.logger.Info(fmt.Sprintf("Bootstrap sweep finished: %d/%d succeeded, %d failed, public address %s, NAT posture %s, took %v",
		outcome.SuccessCount, outcome.TotalAttempted, outcome.FailureCount,
		formatAddress(outcome.DetectedPublicAddress), outcome.NATPosture, outcome.Duration), "bootstrap")

	return outcome
}

// sweepState collects the attempts belonging to one Bootstrap call so
// concurrent calls never mix outcomes. Guarded by the history mutex.
type sweepState struct {
	attempts []*BootstrapAttempt
}

// sweepOrder snapshots the registry, sorts it ascending by priority (stable,
// so ties keep registration order) and truncates to maxCandidates.
func (o *BootstrapOrchestrator) sweepOrder(maxCandidates int) []*BootstrapCandidate {
	o.registryMutex.RLock()
	candidates := make([]*BootstrapCandidate, len(o.registry))
	copy(candidates, o.registry)
	o.registryMutex.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})

	if maxCandidates > 0 && len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	return candidates
}

// runAttempt executes one connection attempt on a pool worker. The attempt
// record is appended to the shared history the moment it enters InProgress
// so in-flight attempts are observable; the terminal transition happens in a
// defer so the record is finished even when the transport panics.
func (o *BootstrapOrchestrator) runAttempt(candidate *BootstrapCandidate, sweep *sweepState) {
	attempt := newBootstrapAttempt(candidate)

	o.historyMutex.Lock()
	o.history = append(o.history, attempt)
	sweep.attempts = append(sweep.attempts, attempt)
	o.historyMutex.Unlock()

	var result ConnectResult
	defer func() {
		if r := recover(); r != nil {
			result = Failed(fmt.Sprintf("transport panic: %v", r))
		}
		o.finishAttempt(attempt, result)
	}()

	ctx, cancel := context.WithTimeout(o.ctx, candidate.Timeout)
	defer cancel()

	result = o.transport.ConnectCandidate(ctx, candidate, candidate.Timeout)
}

// finishAttempt maps the tagged transport result onto the attempt record and
// hands the terminal record to the optional store.
func (o *BootstrapOrchestrator) finishAttempt(attempt *BootstrapAttempt, result ConnectResult) {
	o.historyMutex.Lock()
	switch result.Status {
	case ConnectSucceeded:
		attempt.complete(AttemptSuccess, "", result.PeerCount)
	case ConnectTimedOut:
		attempt.complete(AttemptTimedOut, fmt.Sprintf("connection attempt timed out after %v", attempt.Candidate.Timeout), 0)
	case ConnectFailed:
		attempt.complete(AttemptFailed, result.Reason, 0)
	default:
		attempt.complete(AttemptFailed, fmt.Sprintf("unknown connect status %d", result.Status), 0)
	}
	record := attempt.snapshot()
	o.historyMutex.Unlock()

	switch record.Status {
	case AttemptSuccess:
		o.logger.Debug(fmt.Sprintf("Candidate %s connected, %d peers reported", record.Candidate.Address, record.PeerCount), "bootstrap")
	case AttemptTimedOut:
		o.logger.Debug(fmt.Sprintf("Candidate %s timed out after %v", record.Candidate.Address, record.Duration()), "bootstrap")
	default:
		o.logger.Debug(fmt.Sprintf("Candidate %s failed: %s", record.Candidate.Address, record.Error), "bootstrap")
	}

	if o.store != nil {
		if err := o.store.SaveAttempt(record); err != nil {
			o.logger.Warn(fmt.Sprintf("Failed to persist attempt %s: %v", record.ID, err), "bootstrap")
		}
	}
}

// buildOutcome snapshots this sweep's attempts and tallies the summary.
// Non-terminal attempts (abandoned by the aggregate timeout) count as
// neither success nor failure.
func (o *BootstrapOrchestrator) buildOutcome(sweep *sweepState, publicAddress *string, natPosture string, elapsed time.Duration) BootstrapOutcome {
	o.historyMutex.Lock()
	defer o.historyMutex.Unlock()

	outcome := BootstrapOutcome{
		DetectedPublicAddress: publicAddress,
		NATPosture:            natPosture,
		Duration:              elapsed,
		TotalAttempted:        len(sweep.attempts),
		Attempts:              make([]BootstrapAttempt, 0, len(sweep.attempts)),
	}

	for _, attempt := range sweep.attempts {
		outcome.Attempts = append(outcome.Attempts, attempt.snapshot())
		switch attempt.Status {
		case AttemptSuccess:
			outcome.SuccessCount++
		case AttemptFailed, AttemptTimedOut:
			outcome.FailureCount++
		}
	}

	return outcome
}

// GetHistory returns a value snapshot of every attempt recorded by this
// orchestrator instance, across all Bootstrap calls, in append order.
func (o *BootstrapOrchestrator) GetHistory() []BootstrapAttempt {
	o.historyMutex.Lock()
	defer o.historyMutex.Unlock()

	history := make([]BootstrapAttempt, 0, len(o.history))
	for _, attempt := range o.history {
		history = append(history, attempt.snapshot())
	}
	return history
}

// ClearHistory drops all recorded attempts.
func (o *BootstrapOrchestrator) ClearHistory() {
	o.historyMutex.Lock()
	defer o.historyMutex.Unlock()
	o.history = nil
}

// Stop shuts down the worker pool. In-flight attempts are abandoned.
func (o *BootstrapOrchestrator) Stop() {
	o.cancel()
	o.pool.Stop()
}

func formatAddress(address *string) string {
	if address == nil {
		return "<unknown>"
	}
	return *address
}
