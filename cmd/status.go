package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status [RUN_ID]",
	Short: "Show the progress of a run",
	Long:  `Show which artifacts of a run exist. Without RUN_ID the latest run is shown.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var runID string
		if len(args) > 0 {
			runID = args[0]
		}

		return withApp(ctx, func(a *app) error {
			formatter, err := a.formatter()
			if err != nil {
				return err
			}
			progress, err := a.monitor().Status(ctx, runID)
			if err != nil {
				return fmt.Errorf("failed to get progress: %w", err)
			}
			out, err := formatter.Progress(progress)
			if err != nil {
				return err
			}
			cmd.Print(out)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
