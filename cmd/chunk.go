package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-digest/internal/chunker"
	"github.com/Taichi-iskw/yt-digest/internal/model"
)

// chunkCmd represents the chunk command
var chunkCmd = &cobra.Command{
	Use:   "chunk [RUN_ID]",
	Short: "Re-chunk the cleaned transcript of a run",
	Long: `Split the cleaned transcript of a run into overlapping chunks again,
replacing its chunk files. --max-chars and --overlap override the configured
window. Without RUN_ID the latest run is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		return withApp(ctx, func(a *app) error {
			var (
				record *model.Run
				err    error
			)
			if len(args) > 0 {
				record, err = a.runs.Get(ctx, args[0])
			} else {
				record, err = a.runs.Latest(ctx)
			}
			if err != nil {
				return fmt.Errorf("failed to find run: %w", err)
			}
			layout, err := a.store.Open(record.ID)
			if err != nil {
				return err
			}

			maxChars, overlap := a.cfg.Chunking.MaxChars, a.cfg.Chunking.Overlap
			if cmd.Flags().Changed("max-chars") {
				maxChars, _ = cmd.Flags().GetInt("max-chars")
			}
			if cmd.Flags().Changed("overlap") {
				overlap, _ = cmd.Flags().GetInt("overlap")
			}
			c, err := chunker.New(maxChars, overlap)
			if err != nil {
				return err
			}

			if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
				data, err := os.ReadFile(layout.CleanedPath())
				if err != nil {
					return fmt.Errorf("failed to read cleaned transcript: %w", err)
				}
				cmd.Print(FormatChunkPlan(PlanChunks(c, record.ID, string(data))))
				return nil
			}

			count, err := c.ChunkAndSave(ctx, layout)
			if err != nil {
				return fmt.Errorf("failed to chunk transcript: %w", err)
			}

			record.ChunkCount = count
			if err := a.runs.Update(ctx, record); err != nil {
				a.log.WithRun(record.ID).WithError(err).Warn("failed to update run record")
			}

			cmd.Printf("Wrote %d chunk(s) to %s\n", count, layout.ChunkDir())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(chunkCmd)
	chunkCmd.Flags().Int("max-chars", 1000, "Maximum characters per chunk")
	chunkCmd.Flags().Int("overlap", 100, "Characters shared by consecutive chunks")
	chunkCmd.Flags().Bool("dry-run", false, "Show the chunks that would be written without writing them")
}
