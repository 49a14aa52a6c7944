package bootstrap

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/peerlink-network/peerlink-node/internal/utils"
)

// PublicAddressDetector discovers the node's externally visible address by
// querying independent address-echo services in order. The first service that
// answers with a valid IP literal wins; the answer is cached for a TTL so a
// supervising retry loop does not hammer WAN services.
type PublicAddressDetector struct {
	cm             *utils.ConfigManager
	logger         *utils.LogsManager
	services       []string
	servicesV6     []string
	serviceTimeout time.Duration
	cacheTTL       time.Duration
	client         *http.Client

	cacheMutex     sync.RWMutex
	cachedAddress  string
	cacheTimestamp time.Time
}

// NewPublicAddressDetector creates a detector with the configured echo
// services, per-service timeout and cache TTL.
func NewPublicAddressDetector(cm *utils.ConfigManager, logger *utils.LogsManager) *PublicAddressDetector {
	services := cm.GetConfigSlice("public_address_services", []string{
		"https://api.ipify.org",
		"https://icanhazip.com",
		"https://ifconfig.me/ip",
		"https://ipecho.net/plain",
		"https://checkip.amazonaws.com",
	})
	servicesV6 := cm.GetConfigSlice("public_address_services_v6", []string{
		"https://api6.ipify.org",
		"https://icanhazip.com",
	})

	serviceTimeout := cm.GetConfigDuration("public_address_timeout", 5*time.Second)

	// Disable connection pooling - each echo service is hit once and the
	// connection must not linger (same reasoning as the node-type probe).
	transport := &http.Transport{
		DisableKeepAlives:     true,
		DisableCompression:    true,
		MaxIdleConns:          0,
		MaxIdleConnsPerHost:   0,
		IdleConnTimeout:       1 * time.Second,
		TLSHandshakeTimeout:   serviceTimeout,
		ResponseHeaderTimeout: serviceTimeout,
	}

	return &PublicAddressDetector{
		cm:             cm,
		logger:         logger,
		services:       services,
		servicesV6:     servicesV6,
		serviceTimeout: serviceTimeout,
		cacheTTL:       cm.GetConfigDuration("public_address_cache_ttl", 5*time.Minute),
		client: &http.Client{
			Timeout:   serviceTimeout,
			Transport: transport,
		},
	}
}

// SetServices replaces the configured echo-service endpoint lists. Pass nil
// for a list to leave it unchanged.
func (pd *PublicAddressDetector) SetServices(services, servicesV6 []string) {
	pd.cacheMutex.Lock()
	defer pd.cacheMutex.Unlock()

	if services != nil {
		pd.services = services
	}
	if servicesV6 != nil {
		pd.servicesV6 = servicesV6
	}
}

// DetectPublicAddress returns the node's public address or nil when no echo
// service produced a valid answer. Detection failure is non-fatal by
// contract - callers treat nil as "address unknown" and carry on.
//
// Unless forceRefresh is set, an unexpired cached answer is returned without
// any network I/O. Services are tried strictly in order, never concurrently:
// the first authoritative answer wins and later services are not burned.
func (pd *PublicAddressDetector) DetectPublicAddress(preferIPv6 bool, forceRefresh bool) *string {
	if !forceRefresh {
		if cached := pd.GetCachedAddress(); cached != nil {
			return cached
		}
	}

	pd.cacheMutex.RLock()
	var ordered []string
	if preferIPv6 {
		ordered = append(ordered, pd.servicesV6...)
	}
	ordered = append(ordered, pd.services...)
	pd.cacheMutex.RUnlock()

	for _, service := range ordered {
		address, err := pd.queryService(service)
		if err != nil {
			pd.logger.Debug(fmt.Sprintf("Address-echo service %s failed: %v", service, err), "public-address")
			continue
		}

		if !utils.IsValidAddress(address) {
			pd.logger.Debug(fmt.Sprintf("Address-echo service %s returned invalid payload %q", service, address), "public-address")
			continue
		}

		pd.cacheMutex.Lock()
		pd.cachedAddress = address
		pd.cacheTimestamp = time.Now()
		pd.cacheMutex.Unlock()

		pd.logger.Info(fmt.Sprintf("Detected public address %s via %s", address, service), "public-address")
		return &address
	}

	pd.logger.Warn("All address-echo services failed, public address unknown", "public-address")
	return nil
}

// GetCachedAddress returns the cached address if it is still within the TTL,
// otherwise nil. Never performs I/O.
func (pd *PublicAddressDetector) GetCachedAddress() *string {
	pd.cacheMutex.RLock()
	defer pd.cacheMutex.RUnlock()

	if pd.cachedAddress == "" {
		return nil
	}
	if time.Since(pd.cacheTimestamp) >= pd.cacheTTL {
		return nil
	}

	address := pd.cachedAddress
	return &address
}

// queryService issues a single GET and returns the trimmed response body.
func (pd *PublicAddressDetector) queryService(service string) (string, error) {
	resp, err := pd.client.Get(service)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// Echo services answer with a bare IP literal; 256 bytes is generous.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(body)), nil
}
