package utils

import (
	"net"
)

// IsValidAddress reports whether candidate is a syntactically valid IPv4 or
// IPv6 literal. Hostnames, zones and empty strings are rejected.
func IsValidAddress(candidate string) bool {
	if candidate == "" {
		return false
	}

	// net.ParseIP accepts neither ports, hostnames nor zone suffixes, which
	// is the contract here - address-echo services return bare literals.
	return net.ParseIP(candidate) != nil
}

// IsIPv6Address reports whether candidate is a valid IPv6 literal.
func IsIPv6Address(candidate string) bool {
	if !IsValidAddress(candidate) {
		return false
	}
	ip := net.ParseIP(candidate)
	return ip.To4() == nil
}

// IsPrivateAddress reports whether candidate is a valid IP literal inside a
// private, loopback or link-local range.
func IsPrivateAddress(candidate string) bool {
	ip := net.ParseIP(candidate)
	if ip == nil {
		return false
	}
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast()
}
