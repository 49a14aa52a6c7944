package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/peerlink-network/peerlink-node/internal/utils"
)

var (
	configPath string
	config     *utils.ConfigManager
	logger     *utils.LogsManager
)

var rootCmd = &cobra.Command{
	Use:   "peerlink-node",
	Short: "Peerlink P2P bootstrap node",
	Long: `A peer-to-peer node bootstrap tool.

Races connection attempts across well-known rendezvous nodes, operator
registered custom servers and DHT-discovered peers, while detecting the
node's public address and NAT posture.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config = utils.NewConfigManager(configPath)
		logger = utils.NewLogsManager(config)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
}
