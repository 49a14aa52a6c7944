package p2p

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/peerlink-network/peerlink-node/internal/bootstrap"
	"github.com/peerlink-network/peerlink-node/internal/utils"
)

// QUICTransport implements bootstrap.Transport over QUIC. A connection
// attempt dials the candidate, performs a peer-count hello on the first
// stream and closes the connection - the orchestrator only needs the
// pass/fail/timeout outcome plus the reported peer count.
type QUICTransport struct {
	config    *utils.ConfigManager
	logger    *utils.LogsManager
	tlsConfig *tls.Config
	alpn      string
}

// NewQUICTransport creates a transport with an ephemeral Ed25519 TLS
// identity. Bootstrap connections are short-lived probes; there is nothing
// to persist.
func NewQUICTransport(config *utils.ConfigManager, logger *utils.LogsManager) (*QUICTransport, error) {
	tlsConfig, err := generateEphemeralTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to generate TLS config: %v", err)
	}

	return &QUICTransport{
		config:    config,
		logger:    logger,
		tlsConfig: tlsConfig,
		alpn:      config.GetConfigWithDefault("quic_alpn", "peerlink-bootstrap"),
	}, nil
}

// ConnectCandidate dials the candidate over QUIC bounded by the candidate
// timeout and reports the outcome as a tagged result. Deadline expiry maps
// to the timed-out tag, everything else to a failure with the dial error.
func (t *QUICTransport) ConnectCandidate(ctx context.Context, candidate *bootstrap.BootstrapCandidate, timeout time.Duration) bootstrap.ConnectResult {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tlsConfig := &tls.Config{
		Certificates: t.tlsConfig.Certificates,
		// P2P endpoints have no hostname identity to verify; peers are
		// bootstrap entry points, not trusted parties.
		InsecureSkipVerify: true,
		NextProtos:         []string{t.alpn},
		MinVersion:         tls.VersionTLS13,
	}

	keepAlivePeriod := t.config.GetConfigDuration("quic_keepalive_period", 10*time.Second)

	t.logger.Debug(fmt.Sprintf("Dialing bootstrap candidate %s (timeout %v)", candidate.Address, timeout), "quic")

	conn, err := quic.DialAddr(dialCtx, candidate.Address, tlsConfig, &quic.Config{
		MaxIdleTimeout:  timeout,
		KeepAlivePeriod: keepAlivePeriod,
	})
	if err != nil {
		if isTimeoutError(dialCtx, err) {
			t.logger.Debug(fmt.Sprintf("Dial to %s timed out after %v", candidate.Address, timeout), "quic")
			return bootstrap.TimedOut()
		}
		return bootstrap.Failed(fmt.Sprintf("dial failed: %v", err))
	}
	defer conn.CloseWithError(0, "bootstrap probe done")

	peerCount, err := t.exchangePeerCount(dialCtx, conn)
	if err != nil {
		if isTimeoutError(dialCtx, err) {
			return bootstrap.TimedOut()
		}
		return bootstrap.Failed(fmt.Sprintf("peer count exchange failed: %v", err))
	}

	t.logger.Debug(fmt.Sprintf("Candidate %s reported %d known peers", candidate.Address, peerCount), "quic")
	return bootstrap.Succeeded(peerCount)
}

// exchangePeerCount performs the hello on a fresh stream: one request, one
// response, both JSON-encoded QUICMessages.
func (t *QUICTransport) exchangePeerCount(ctx context.Context, conn *quic.Conn) (int, error) {
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to open stream: %v", err)
	}
	defer stream.Close()

	if deadline, ok := ctx.Deadline(); ok {
		stream.SetDeadline(deadline)
	}

	request := NewQUICMessage(MessageTypePeerCountRequest, nil)
	if err := json.NewEncoder(stream).Encode(request); err != nil {
		return 0, fmt.Errorf("failed to send request: %v", err)
	}

	var response QUICMessage
	if err := json.NewDecoder(stream).Decode(&response); err != nil {
		return 0, fmt.Errorf("failed to read response: %v", err)
	}

	if response.Type != MessageTypePeerCountResponse {
		return 0, fmt.Errorf("unexpected response type %q", response.Type)
	}

	// Data round-trips through interface{} as a map; re-marshal to the
	// typed payload.
	raw, err := json.Marshal(response.Data)
	if err != nil {
		return 0, fmt.Errorf("malformed response payload: %v", err)
	}
	var payload PeerCountData
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, fmt.Errorf("malformed response payload: %v", err)
	}

	if payload.PeerCount < 0 {
		return 0, fmt.Errorf("negative peer count %d", payload.PeerCount)
	}

	return payload.PeerCount, nil
}

// isTimeoutError reports whether the dial/exchange error is a deadline
// expiry rather than a hard failure.
func isTimeoutError(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// generateEphemeralTLSConfig builds a self-signed Ed25519 certificate valid
// for the process lifetime.
func generateEphemeralTLSConfig() (*tls.Config, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Ed25519 key: %v", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName: "peerlink-bootstrap",
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, pub, priv)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %v", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{{
			Certificate: [][]byte{certDER},
			PrivateKey:  priv,
		}},
		MinVersion: tls.VersionTLS13,
	}, nil
}
