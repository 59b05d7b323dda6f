package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Taichi-iskw/yt-digest/internal/server"
	"github.com/Taichi-iskw/yt-digest/internal/watcher"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serve the HTTP API: POST /process, GET /progress, GET /runs,
POST /summarize and POST /generate_notes. When watcher.input_dir is set,
files dropped there are processed too.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withApp(ctx, func(a *app) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				a.cfg.Server.Addr = addr
			}

			processor, err := a.processor()
			if err != nil {
				return err
			}
			srv := server.New(a.store, a.runs, processor, a.monitor(), a.digester(ctx), server.Options{
				Addr:         a.cfg.Server.Addr,
				ReadTimeout:  a.cfg.Server.ReadTimeout,
				WriteTimeout: a.cfg.Server.WriteTimeout,
				MaxUploadMB:  a.cfg.Server.MaxUploadMB,
			}, a.log)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.ListenAndServe(gctx) })

			if dir := a.cfg.Watcher.InputDir; dir != "" {
				w, err := watcher.New(dir, watcher.NewUploadHandler(a.store, processor, a.log), watcher.Options{
					MaxConcurrent: a.cfg.Watcher.MaxConcurrent,
					SettleDelay:   watchSettleDelay,
				}, a.log)
				if err != nil {
					return err
				}
				defer w.Stop()
				g.Go(func() error {
					if err := w.Start(gctx); err != nil && gctx.Err() == nil {
						return err
					}
					return nil
				})
			}

			err = g.Wait()
			a.log.Info("waiting for background runs to finish")
			a.waitRuns()
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}
