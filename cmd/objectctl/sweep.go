package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sweepConfig struct {
	olderThan time.Duration
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove uploads that never completed",
	Long: `Deletes pending object rows older than --older-than together with any file
or partial upload they left on disk.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan := sweepConfig.olderThan
		if olderThan == 0 {
			olderThan = ctl.app.Config.Storage.PendingTTL
		}
		n, err := ctl.app.Files.SweepPending(cmd.Context(), olderThan)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d pending objects\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().DurationVar(&sweepConfig.olderThan, "older-than", 0, "age threshold (defaults to OBJECTD_PENDING_TTL)")
}
