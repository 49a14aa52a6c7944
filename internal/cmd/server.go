package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/peerlink-network/peerlink-node/internal/bootstrap"
	"github.com/peerlink-network/peerlink-node/internal/database"
)

var (
	serverPriority int
	serverTimeout  time.Duration
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage custom bootstrap servers",
}

var serverAddCmd = &cobra.Command{
	Use:   "add <address>",
	Short: "Register a custom bootstrap server",
	Long: `Register a custom bootstrap server.

The server is persisted and joins the candidate registry on every future
sweep. Lower priority values are attempted earlier; the built-in rendezvous
set uses priority 50.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		address := args[0]

		db, err := database.NewSQLiteManager(config, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		timeout := serverTimeout
		if timeout <= 0 {
			timeout = config.GetConfigDuration("bootstrap_candidate_timeout", bootstrap.DefaultCandidateTimeout)
		}

		if err := db.SaveCustomServer(address, serverPriority, timeout); err != nil {
			logger.Error(fmt.Sprintf("Failed to save custom server: %v", err), "cli")
			fmt.Fprintf(os.Stderr, "Error saving server: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Registered custom server %s (priority %d, timeout %v)\n", address, serverPriority, timeout)
	},
}

var serverRemoveCmd = &cobra.Command{
	Use:   "remove <address>",
	Short: "Remove a custom bootstrap server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		db, err := database.NewSQLiteManager(config, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.RemoveCustomServer(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error removing server: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Removed custom server %s\n", args[0])
	},
}

var serverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered custom bootstrap servers",
	Run: func(cmd *cobra.Command, args []string) {
		db, err := database.NewSQLiteManager(config, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		servers, err := db.GetCustomServers()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing servers: %v\n", err)
			os.Exit(1)
		}

		if len(servers) == 0 {
			fmt.Println("No custom servers registered")
			return
		}

		for _, server := range servers {
			fmt.Printf("%s (priority %d, timeout %v, added %s)\n",
				server.Address, server.Priority, server.Timeout, server.AddedAt.Format(time.RFC3339))
		}
	},
}

func init() {
	serverAddCmd.Flags().IntVar(&serverPriority, "priority", bootstrap.DefaultCandidatePriority, "candidate priority (lower = attempted earlier)")
	serverAddCmd.Flags().DurationVar(&serverTimeout, "timeout", 0, "per-candidate connection timeout (0 = configured default)")

	serverCmd.AddCommand(serverAddCmd)
	serverCmd.AddCommand(serverRemoveCmd)
	serverCmd.AddCommand(serverListCmd)
	rootCmd.AddCommand(serverCmd)
}
