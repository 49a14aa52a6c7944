package p2p

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/anacrolix/dht/v2"
	"github.com/anacrolix/dht/v2/krpc"
	peer_store "github.com/anacrolix/dht/v2/peer-store"
	"github.com/anacrolix/torrent/metainfo"

	"github.com/peerlink-network/peerlink-node/internal/bootstrap"
	"github.com/peerlink-network/peerlink-node/internal/utils"
)

// DHTSeeder harvests bootstrap candidates from the BitTorrent mainline DHT.
// The network topic is hashed to an infohash; peers announcing under it are
// registered as DistributedHashTable candidates. Seeding failures are
// non-fatal - the sweep still runs against the rendezvous/custom sets.
type DHTSeeder struct {
	server *dht.Server
	nodeID krpc.ID
	config *utils.ConfigManager
	logger *utils.LogsManager
	ctx    context.Context
	cancel context.CancelFunc
	port   int
	conn   *net.UDPConn

	// Candidates seen via unsolicited announce_peer queries
	announceMutex sync.Mutex
	announced     map[string]bool
}

// NewDHTSeeder creates a DHT node listening on the configured UDP port.
func NewDHTSeeder(config *utils.ConfigManager, logger *utils.LogsManager) (*DHTSeeder, error) {
	ctx, cancel := context.WithCancel(context.Background())

	port := config.GetConfigInt("dht_port", 30609, 1024, 65535)

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create UDP connection: %v", err)
	}

	seeder := &DHTSeeder{
		nodeID:    krpc.RandomNodeID(),
		config:    config,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		port:      port,
		conn:      conn,
		announced: make(map[string]bool),
	}

	serverConfig := &dht.ServerConfig{
		NodeId:    seeder.nodeID,
		Conn:      conn,
		PeerStore: &peer_store.InMemory{},
		OnAnnouncePeer: func(infoHash metainfo.Hash, ip net.IP, port int, portOk bool) {
			if !portOk || port <= 0 || ip == nil {
				return
			}
			address := fmt.Sprintf("%s:%d", ip.String(), port)
			seeder.announceMutex.Lock()
			seeder.announced[address] = true
			seeder.announceMutex.Unlock()
			logger.Debug(fmt.Sprintf("Peer announced via DHT: %s (infohash %x)", address, infoHash), "dht-seeder")
		},
		StartingNodes: func() ([]dht.Addr, error) {
			return seeder.routerAddrs()
		},
	}

	server, err := dht.NewServer(serverConfig)
	if err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("failed to create DHT server: %v", err)
	}
	seeder.server = server

	logger.Info(fmt.Sprintf("DHT seeder listening on port %d with node ID %x", port, seeder.nodeID), "dht-seeder")
	return seeder, nil
}

// routerAddrs resolves the configured DHT bootstrap routers.
func (ds *DHTSeeder) routerAddrs() ([]dht.Addr, error) {
	defaultNodes := []string{
		"router.bittorrent.com:6881",
		"dht.transmissionbt.com:6881",
		"router.utorrent.com:6881",
		"dht.libtorrent.org:25401",
		"dht.anacrolix.link:42069",
	}

	nodes := ds.config.GetBootstrapNodes("dht_bootstrap_nodes", defaultNodes)

	seen := make(map[string]bool)
	var addrs []dht.Addr
	for _, node := range nodes {
		if seen[node] {
			continue
		}
		seen[node] = true

		udpAddr, err := net.ResolveUDPAddr("udp", node)
		if err != nil {
			ds.logger.Debug(fmt.Sprintf("Skipping unresolvable DHT router %s: %v", node, err), "dht-seeder")
			continue
		}
		addrs = append(addrs, dht.NewAddr(udpAddr))
	}

	return addrs, nil
}

// topicInfoHash maps the network topic to its DHT infohash.
func topicInfoHash(topic string) [20]byte {
	hasher := sha1.New()
	hasher.Write([]byte(topic))
	var hash [20]byte
	copy(hash[:], hasher.Sum(nil))
	return hash
}

// CollectCandidates queries the DHT routers for peers announcing under the
// configured topic and returns them as candidates, deduplicated and capped
// by dht_seed_max_candidates.
func (ds *DHTSeeder) CollectCandidates(topic string) ([]*bootstrap.BootstrapCandidate, error) {
	topicHash := topicInfoHash(topic)
	id := krpc.ID(topicHash).Int160()

	seedTimeout := ds.config.GetConfigDuration("dht_seed_timeout", 20*time.Second)
	maxCandidates := ds.config.GetConfigInt("dht_seed_max_candidates", 16, 1, 256)
	priority := ds.config.GetConfigInt("dht_candidate_priority", 80, 0, 1000)
	timeout := ds.config.GetConfigDuration("bootstrap_candidate_timeout", bootstrap.DefaultCandidateTimeout)

	ctx, cancel := context.WithTimeout(ds.ctx, seedTimeout)
	defer cancel()

	routers, err := ds.routerAddrs()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DHT routers: %v", err)
	}
	if len(routers) == 0 {
		return nil, fmt.Errorf("no DHT routers resolved")
	}

	ds.logger.Info(fmt.Sprintf("Collecting DHT candidates for topic '%s' (infohash %x) from %d routers",
		topic, topicHash, len(routers)), "dht-seeder")

	seen := make(map[string]bool)
	var candidates []*bootstrap.BootstrapCandidate

	addCandidate := func(address string) {
		if seen[address] || len(candidates) >= maxCandidates {
			return
		}
		seen[address] = true
		candidate := bootstrap.NewBootstrapCandidate(address, bootstrap.MethodDistributedHashTable, priority, timeout).
			WithMetadata("topic", topic)
		candidates = append(candidates, candidate)
	}

	for _, router := range routers {
		if ctx.Err() != nil {
			break
		}

		qr := ds.server.GetPeers(ctx, router, id, false /* scrape */, dht.QueryRateLimiting{})
		if err := qr.ToError(); err != nil {
			ds.logger.Debug(fmt.Sprintf("GetPeers query to %s failed: %v", router.String(), err), "dht-seeder")
		}

		peerStore := ds.server.PeerStore()
		if peerStore == nil {
			continue
		}

		for _, peer := range peerStore.GetPeers(topicHash) {
			if peer.IP == nil {
				continue
			}
			addCandidate(fmt.Sprintf("%s:%d", peer.IP.String(), peer.Port))
		}

		if len(candidates) >= maxCandidates {
			break
		}
	}

	// Fold in peers that announced to us unsolicited
	ds.announceMutex.Lock()
	for address := range ds.announced {
		addCandidate(address)
	}
	ds.announceMutex.Unlock()

	ds.logger.Info(fmt.Sprintf("DHT seeding found %d candidates for topic '%s'", len(candidates), topic), "dht-seeder")
	return candidates, nil
}

// Stop shuts down the DHT server and its socket.
func (ds *DHTSeeder) Stop() {
	ds.cancel()

	if ds.server != nil {
		ds.server.Close()
	}
	if ds.conn != nil {
		ds.conn.Close()
	}
}
