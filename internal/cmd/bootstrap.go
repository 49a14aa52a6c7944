package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/peerlink-network/peerlink-node/internal/bootstrap"
	"github.com/peerlink-network/peerlink-node/internal/database"
	"github.com/peerlink-network/peerlink-node/internal/p2p"
)

var (
	maxCandidates    int
	aggregateTimeout time.Duration
	concurrency      int
	seedDHT          bool
	preferIPv6       bool
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Run one bootstrap sweep",
	Long: `Run one bootstrap sweep across all registered candidates.

Attempts are made in priority order with bounded concurrency. The sweep
tolerates individual candidate failures; check the success count in the
printed summary. Attempt records are persisted for the history command.`,
	Run: func(cmd *cobra.Command, args []string) {
		if preferIPv6 {
			config.SetConfig("bootstrap_prefer_ipv6", true)
		}

		db, err := database.NewSQLiteManager(config, logger)
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to open database: %v", err), "cli")
			fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		if concurrency <= 0 {
			concurrency = config.GetConfigInt("bootstrap_max_concurrent_attempts", 3, 1, 64)
		}

		detector := bootstrap.NewPublicAddressDetector(config, logger)
		classifier := bootstrap.NewNATClassifier(logger)

		orchestrator := bootstrap.NewBootstrapOrchestrator(config, logger, concurrency, detector, classifier)
		defer orchestrator.Stop()
		orchestrator.SetAttemptStore(db)

		transport, err := p2p.NewQUICTransport(config, logger)
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to create QUIC transport: %v", err), "cli")
			fmt.Fprintf(os.Stderr, "Error creating transport: %v\n", err)
			os.Exit(1)
		}
		orchestrator.SetTransport(transport)

		// Persisted custom servers rejoin the registry on every run
		servers, err := db.GetCustomServers()
		if err != nil {
			logger.Warn(fmt.Sprintf("Failed to load custom servers: %v", err), "cli")
		}
		for _, server := range servers {
			orchestrator.AddCustomServer(server.Address, server.Priority, server.Timeout)
		}

		if seedDHT {
			seedCandidatesFromDHT(orchestrator)
		}

		outcome := orchestrator.Bootstrap(maxCandidates, aggregateTimeout)
		printOutcome(outcome)

		maxRows := config.GetConfigInt("attempt_history_max_rows", 1000, 10, 1000000)
		if err := db.PruneAttemptHistory(maxRows); err != nil {
			logger.Warn(fmt.Sprintf("Failed to prune attempt history: %v", err), "cli")
		}

		if !outcome.Succeeded() {
			os.Exit(1)
		}
	},
}

// seedCandidatesFromDHT registers DHT-discovered peers as candidates.
// Failures here never block the sweep.
func seedCandidatesFromDHT(orchestrator *bootstrap.BootstrapOrchestrator) {
	seeder, err := p2p.NewDHTSeeder(config, logger)
	if err != nil {
		logger.Warn(fmt.Sprintf("DHT seeding unavailable: %v", err), "cli")
		fmt.Println("DHT seeding unavailable, continuing with configured candidates")
		return
	}
	defer seeder.Stop()

	topic := config.GetConfigWithDefault("dht_topic", "peerlink")
	candidates, err := seeder.CollectCandidates(topic)
	if err != nil {
		logger.Warn(fmt.Sprintf("DHT candidate collection failed: %v", err), "cli")
		return
	}

	for _, candidate := range candidates {
		orchestrator.AddCandidate(candidate)
	}
	fmt.Printf("Seeded %d candidates from DHT topic %q\n", len(candidates), topic)
}

func printOutcome(outcome bootstrap.BootstrapOutcome) {
	address := "<unknown>"
	if outcome.DetectedPublicAddress != nil {
		address = *outcome.DetectedPublicAddress
	}

	fmt.Printf("Bootstrap finished in %v\n", outcome.Duration.Round(time.Millisecond))
	fmt.Printf("  Public address: %s\n", address)
	fmt.Printf("  NAT posture:    %s\n", outcome.NATPosture)
	fmt.Printf("  Attempted:      %d\n", outcome.TotalAttempted)
	fmt.Printf("  Succeeded:      %d\n", outcome.SuccessCount)
	fmt.Printf("  Failed:         %d\n", outcome.FailureCount)

	for _, attempt := range outcome.Attempts {
		switch attempt.Status {
		case bootstrap.AttemptSuccess:
			fmt.Printf("  [ok]      %s (%s) %d peers in %v\n",
				attempt.Candidate.Address, attempt.Candidate.Method, attempt.PeerCount, attempt.Duration().Round(time.Millisecond))
		case bootstrap.AttemptTimedOut:
			fmt.Printf("  [timeout] %s (%s) after %v\n",
				attempt.Candidate.Address, attempt.Candidate.Method, attempt.Duration().Round(time.Millisecond))
		case bootstrap.AttemptFailed:
			fmt.Printf("  [fail]    %s (%s): %s\n",
				attempt.Candidate.Address, attempt.Candidate.Method, attempt.Error)
		default:
			fmt.Printf("  [pending] %s (%s) abandoned at aggregate timeout\n",
				attempt.Candidate.Address, attempt.Candidate.Method)
		}
	}
}

func init() {
	bootstrapCmd.Flags().IntVar(&maxCandidates, "max-candidates", 0, "limit the sweep to the N highest-priority candidates (0 = all)")
	bootstrapCmd.Flags().DurationVar(&aggregateTimeout, "timeout", 0, "aggregate wall-clock bound for the whole sweep (0 = configured default)")
	bootstrapCmd.Flags().IntVar(&concurrency, "concurrency", 0, "maximum concurrent connection attempts (0 = configured default)")
	bootstrapCmd.Flags().BoolVar(&seedDHT, "seed-dht", false, "harvest additional candidates from the mainline DHT before the sweep")
	bootstrapCmd.Flags().BoolVar(&preferIPv6, "prefer-ipv6", false, "prefer IPv6 address-echo services for public address detection")

	rootCmd.AddCommand(bootstrapCmd)
}
