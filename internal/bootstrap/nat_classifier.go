package bootstrap

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/peerlink-network/peerlink-node/internal/utils"
)

// NATPosture is a coarse, best-effort label for the local reachability
// characteristics. It is deliberately not a full NAT-type classification -
// only what a local socket probe can establish without WAN traffic.
type NATPosture int

const (
	NATPostureUnknown NATPosture = iota
	NATPostureCone // can bind and receive on an ephemeral UDP port
)

// String returns the string representation of the NAT posture
func (p NATPosture) String() string {
	switch p {
	case NATPostureCone:
		return "cone"
	default:
		return "unknown"
	}
}

// NATClassifier performs best-effort local NAT/firewall posture detection.
// All operations are synchronous, local-only and never fail the caller.
type NATClassifier struct {
	logger      *utils.LogsManager
	resultMutex sync.RWMutex
	lastPosture NATPosture
}

// NewNATClassifier creates a new NAT classifier
func NewNATClassifier(logger *utils.LogsManager) *NATClassifier {
	return &NATClassifier{
		logger:      logger,
		lastPosture: NATPostureUnknown,
	}
}

// DetectNATType probes whether the local stack can bind and receive on an
// ephemeral UDP socket and maps the result to a posture label. Bind errors
// are absorbed into the "unknown" label; this never blocks on network I/O.
func (nc *NATClassifier) DetectNATType() string {
	posture := NATPostureUnknown

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		nc.logger.Debug(fmt.Sprintf("UDP bind probe failed: %v", err), "nat-classifier")
	} else {
		localAddr := conn.LocalAddr()
		conn.Close()
		posture = NATPostureCone
		nc.logger.Debug(fmt.Sprintf("UDP bind probe succeeded on %s", localAddr), "nat-classifier")
	}

	nc.resultMutex.Lock()
	nc.lastPosture = posture
	nc.resultMutex.Unlock()

	nc.logger.Info(fmt.Sprintf("NAT posture detected: %s", posture), "nat-classifier")
	return posture.String()
}

// GetLastPosture returns the posture from the most recent detection run.
func (nc *NATClassifier) GetLastPosture() NATPosture {
	nc.resultMutex.RLock()
	defer nc.resultMutex.RUnlock()
	return nc.lastPosture
}

// RequestPortMapping is a capability stub for a UPnP/NAT-PMP port mapping
// request. It always reports that no mapping was obtained; callers must not
// treat the false return as a bootstrap failure.
func (nc *NATClassifier) RequestPortMapping(internalPort, externalPort int, protocol string, lifetime time.Duration) bool {
	nc.logger.Warn(fmt.Sprintf("Port mapping not implemented, request ignored (internal=%d, external=%d, protocol=%s, lifetime=%v)",
		internalPort, externalPort, protocol, lifetime), "nat-classifier")
	return false
}
