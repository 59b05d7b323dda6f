package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-digest/internal/digest"
)

// summarizeCmd represents the summarize command
var summarizeCmd = &cobra.Command{
	Use:   "summarize [RUN_ID]",
	Short: "Summarize the cleaned transcript of a run",
	Long:  `Generate summary.txt for a run. Without RUN_ID the latest run is used.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDigest(cmd, args, (*digest.Service).Summarize, "summary")
	},
}

// notesCmd represents the notes command
var notesCmd = &cobra.Command{
	Use:   "notes [RUN_ID]",
	Short: "Generate study notes for a run",
	Long:  `Generate detailed_notes.txt and detailed_notes.docx for a run. Without RUN_ID the latest run is used.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDigest(cmd, args, (*digest.Service).Notes, "notes")
	},
}

type digestFunc func(s *digest.Service, ctx context.Context, runID string) (*digest.Result, error)

func runDigest(cmd *cobra.Command, args []string, generate digestFunc, what string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
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
		result, err := generate(a.digester(ctx), ctx, runID)
		if err != nil {
			return fmt.Errorf("failed to generate %s: %w", what, err)
		}
		out, err := formatter.Digest(result)
		if err != nil {
			return err
		}
		cmd.Print(out)
		return nil
	})
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(notesCmd)
}
