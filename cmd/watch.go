package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-digest/internal/watcher"
)

// watchSettleDelay gives copies into the input folder time to complete
const watchSettleDelay = 500 * time.Millisecond

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process video and audio files dropped into a folder",
	Long: `Watch a folder and run the pipeline for every new video or audio file.
Files are moved into the uploads area before processing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withApp(ctx, func(a *app) error {
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = a.cfg.Watcher.InputDir
			}
			if dir == "" {
				return errors.New("no folder to watch: pass --dir or set watcher.input_dir")
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}

			processor, err := a.processor()
			if err != nil {
				return err
			}
			w, err := watcher.New(dir, watcher.NewUploadHandler(a.store, processor, a.log), watcher.Options{
				MaxConcurrent: a.cfg.Watcher.MaxConcurrent,
				SettleDelay:   watchSettleDelay,
			}, a.log)
			if err != nil {
				return err
			}
			defer w.Stop()

			cmd.Printf("Watching %s (Ctrl+C to stop)\n", dir)
			err = w.Start(ctx)
			a.waitRuns()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("dir", "", "Folder to watch (overrides watcher.input_dir)")
}
