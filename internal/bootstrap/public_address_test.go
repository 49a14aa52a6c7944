package bootstrap

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/peerlink-network/peerlink-node/internal/utils"
)

// echoService is an httptest-backed address-echo endpoint that counts hits.
type echoService struct {
	server *httptest.Server
	hits   atomic.Int64
}

func newEchoService(t *testing.T, status int, body string) *echoService {
	t.Helper()
	svc := &echoService{}
	svc.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		svc.hits.Add(1)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(svc.server.Close)
	return svc
}

func setupTestDetector(t *testing.T, cacheTTL string) *PublicAddressDetector {
	t.Helper()

	cm := utils.NewConfigManager("")
	cm.SetConfig("public_address_timeout", "2s")
	cm.SetConfig("public_address_cache_ttl", cacheTTL)
	logger := utils.NewLogsManager(cm)

	return NewPublicAddressDetector(cm, logger)
}

func TestDetectPublicAddress(t *testing.T) {
	svc := newEchoService(t, http.StatusOK, "203.0.113.7\n")

	detector := setupTestDetector(t, "5m")
	detector.SetServices([]string{svc.server.URL}, []string{})

	address := detector.DetectPublicAddress(false, false)
	if address == nil {
		t.Fatal("Expected detected address, got nil")
	}
	if *address != "203.0.113.7" {
		t.Errorf("Expected 203.0.113.7, got %s", *address)
	}
	if svc.hits.Load() != 1 {
		t.Errorf("Expected 1 service hit, got %d", svc.hits.Load())
	}
}

func TestDetectPublicAddressUsesCache(t *testing.T) {
	svc := newEchoService(t, http.StatusOK, "203.0.113.7")

	detector := setupTestDetector(t, "5m")
	detector.SetServices([]string{svc.server.URL}, []string{})

	first := detector.DetectPublicAddress(false, false)
	second := detector.DetectPublicAddress(false, false)

	if first == nil || second == nil {
		t.Fatal("Expected detected address on both calls")
	}
	if *first != *second {
		t.Errorf("Cached answer differs: %s vs %s", *first, *second)
	}
	if svc.hits.Load() != 1 {
		t.Errorf("Expected second call to be served from cache, got %d service hits", svc.hits.Load())
	}

	// forceRefresh bypasses the cache
	detector.DetectPublicAddress(false, true)
	if svc.hits.Load() != 2 {
		t.Errorf("Expected force refresh to hit the service, got %d hits", svc.hits.Load())
	}
}

func TestDetectPublicAddressFallsThroughFailedServices(t *testing.T) {
	broken := newEchoService(t, http.StatusInternalServerError, "oops")
	garbage := newEchoService(t, http.StatusOK, "<html>not an ip</html>")
	working := newEchoService(t, http.StatusOK, "198.51.100.23")
	untouched := newEchoService(t, http.StatusOK, "192.0.2.99")

	detector := setupTestDetector(t, "5m")
	detector.SetServices([]string{
		broken.server.URL,
		garbage.server.URL,
		working.server.URL,
		untouched.server.URL,
	}, []string{})

	address := detector.DetectPublicAddress(false, false)
	if address == nil {
		t.Fatal("Expected fallback to produce an address, got nil")
	}
	if *address != "198.51.100.23" {
		t.Errorf("Expected 198.51.100.23, got %s", *address)
	}

	if broken.hits.Load() != 1 || garbage.hits.Load() != 1 || working.hits.Load() != 1 {
		t.Errorf("Expected each service up to the first valid answer to be hit once, got %d/%d/%d",
			broken.hits.Load(), garbage.hits.Load(), working.hits.Load())
	}
	if untouched.hits.Load() != 0 {
		t.Errorf("Expected services after the first valid answer to stay untouched, got %d hits", untouched.hits.Load())
	}
}

func TestDetectPublicAddressAllServicesFail(t *testing.T) {
	broken := newEchoService(t, http.StatusServiceUnavailable, "")

	detector := setupTestDetector(t, "5m")
	detector.SetServices([]string{broken.server.URL, "http://127.0.0.1:1/ip"}, []string{})

	if address := detector.DetectPublicAddress(false, false); address != nil {
		t.Errorf("Expected nil when every service fails, got %s", *address)
	}
	if cached := detector.GetCachedAddress(); cached != nil {
		t.Errorf("Expected no cache entry after total failure, got %s", *cached)
	}
}

func TestDetectPublicAddressPrefersIPv6Services(t *testing.T) {
	v4 := newEchoService(t, http.StatusOK, "203.0.113.7")
	v6 := newEchoService(t, http.StatusOK, "2001:db8::1")

	detector := setupTestDetector(t, "5m")
	detector.SetServices([]string{v4.server.URL}, []string{v6.server.URL})

	address := detector.DetectPublicAddress(true, false)
	if address == nil {
		t.Fatal("Expected detected address, got nil")
	}
	if *address != "2001:db8::1" {
		t.Errorf("Expected the IPv6 service to be consulted first, got %s", *address)
	}
	if v4.hits.Load() != 0 {
		t.Errorf("Expected IPv4 services untouched when IPv6 answers, got %d hits", v4.hits.Load())
	}
}

func TestCachedAddressExpires(t *testing.T) {
	svc := newEchoService(t, http.StatusOK, "203.0.113.7")

	detector := setupTestDetector(t, "50ms")
	detector.SetServices([]string{svc.server.URL}, []string{})

	if detector.DetectPublicAddress(false, false) == nil {
		t.Fatal("Expected detected address, got nil")
	}
	if detector.GetCachedAddress() == nil {
		t.Fatal("Expected cache entry right after detection")
	}

	time.Sleep(80 * time.Millisecond)

	if cached := detector.GetCachedAddress(); cached != nil {
		t.Errorf("Expected cache entry to expire, got %s", *cached)
	}

	// A fresh detect call after expiry goes back to the network
	if detector.DetectPublicAddress(false, false) == nil {
		t.Fatal("Expected re-detection after cache expiry")
	}
	if svc.hits.Load() != 2 {
		t.Errorf("Expected 2 service hits across expiry, got %d", svc.hits.Load())
	}
}
