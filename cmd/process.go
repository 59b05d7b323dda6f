package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-digest/internal/model"
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process [VIDEO_URL | FILE]",
	Short: "Run the pipeline for a video URL or a local media file",
	Long: `Acquire the transcript of a video and run translation, cleaning,
chunking and vectorization. With --wait=false the command prints the run id
as soon as the transcript exists and leaves the remaining stages running
until they finish.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		wait, _ := cmd.Flags().GetBool("wait")

		return withApp(ctx, func(a *app) error {
			formatter, err := a.formatter()
			if err != nil {
				return err
			}
			processor, err := a.processor()
			if err != nil {
				return err
			}

			source := sourceFor(args[0])
			if !wait {
				sub, err := processor.Submit(ctx, source)
				if err != nil {
					return fmt.Errorf("failed to process video: %w", err)
				}
				out, err := formatter.Submission(sub)
				if err != nil {
					return err
				}
				cmd.Print(out)
				cmd.Printf("\nBackground stages running; check with: ytdigest status %s\n", sub.Run.ID)
				a.waitRuns()
				return nil
			}

			sub, err := processor.Process(ctx, source)
			if sub != nil {
				out, ferr := formatter.Submission(sub)
				if ferr != nil {
					return ferr
				}
				cmd.Print(out)
			}
			if err != nil {
				return fmt.Errorf("failed to process video: %w", err)
			}
			if sub.Run.Status != model.RunStatusCompleted {
				cmd.Printf("\nRun finished with status %s\n", sub.Run.Status)
			}
			return nil
		})
	},
}

// sourceFor treats an existing local path as a file upload and anything else as a URL
func sourceFor(arg string) model.Source {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return model.Source{FilePath: arg}
	}
	return model.Source{URL: arg}
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().Bool("wait", true, "Wait for every stage before printing the result")
}
