package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// runsCmd represents the runs command
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline runs",
	Long:  `List and inspect the completion records of pipeline runs.`,
}

// runsListCmd lists runs newest first
var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		return withApp(ctx, func(a *app) error {
			formatter, err := a.formatter()
			if err != nil {
				return err
			}
			runs, err := a.runs.List(ctx, limit, offset)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			out, err := formatter.Runs(runs)
			if err != nil {
				return err
			}
			cmd.Print(out)
			return nil
		})
	},
}

// runsGetCmd shows one run record
var runsGetCmd = &cobra.Command{
	Use:   "get [RUN_ID]",
	Short: "Show a run record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return withApp(ctx, func(a *app) error {
			formatter, err := a.formatter()
			if err != nil {
				return err
			}
			record, err := a.runs.Get(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}
			out, err := formatter.Run(record)
			if err != nil {
				return err
			}
			cmd.Print(out)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsGetCmd)

	runsListCmd.Flags().Int("limit", 20, "Maximum number of runs to list")
	runsListCmd.Flags().Int("offset", 0, "Number of runs to skip")
}
