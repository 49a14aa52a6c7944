package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/peerlink-network/peerlink-node/internal/database"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show persisted bootstrap attempt history",
	Run: func(cmd *cobra.Command, args []string) {
		db, err := database.NewSQLiteManager(config, logger)
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to open database: %v", err), "cli")
			fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		records, err := db.GetRecentAttempts(historyLimit)
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to read attempt history: %v", err), "cli")
			fmt.Fprintf(os.Stderr, "Error reading history: %v\n", err)
			os.Exit(1)
		}

		if len(records) == 0 {
			fmt.Println("No bootstrap attempts recorded yet")
			return
		}

		for _, record := range records {
			line := fmt.Sprintf("%s  %-9s %s (%s, priority %d)",
				record.StartTime.Format(time.RFC3339), record.Status, record.Address, record.Method, record.Priority)
			if record.Status == "success" {
				line += fmt.Sprintf(", %d peers", record.PeerCount)
			} else if record.Error != "" {
				line += fmt.Sprintf(": %s", record.Error)
			}
			fmt.Println(line)
		}
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum number of records to show")
	rootCmd.AddCommand(historyCmd)
}
