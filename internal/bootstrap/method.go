package bootstrap

// BootstrapMethod tags the provenance of a candidate entry point. It is
// reporting/seeding metadata only - the sweep never branches on it.
type BootstrapMethod int

const (
	MethodKnownRendezvous BootstrapMethod = iota
	MethodCustomServer
	MethodLocalDiscovery
	MethodDistributedHashTable
	MethodRelay
)

// String returns the string representation of the bootstrap method
func (m BootstrapMethod) String() string {
	switch m {
	case MethodKnownRendezvous:
		return "known_rendezvous"
	case MethodCustomServer:
		return "custom_server"
	case MethodLocalDiscovery:
		return "local_discovery"
	case MethodDistributedHashTable:
		return "dht"
	case MethodRelay:
		return "relay"
	default:
		return "unknown"
	}
}

// MethodFromString maps a stored label back to its BootstrapMethod.
// Unrecognized labels map to MethodKnownRendezvous.
func MethodFromString(label string) BootstrapMethod {
	switch label {
	case "custom_server":
		return MethodCustomServer
	case "local_discovery":
		return MethodLocalDiscovery
	case "dht":
		return MethodDistributedHashTable
	case "relay":
		return MethodRelay
	default:
		return MethodKnownRendezvous
	}
}
