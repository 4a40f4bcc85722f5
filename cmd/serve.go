package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ben4mn/Pulse/internal/aggregate"
	"github.com/ben4mn/Pulse/internal/model"
	"github.com/ben4mn/Pulse/internal/server"
	"github.com/ben4mn/Pulse/worker"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the feed API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		a := buildApp(cfg)
		defer a.Close()

		engine := server.New(server.Deps{
			Aggregator: a.Aggregator,
			Articles:   a.Articles,
			Profiles:   a.Profiles,
		})
		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Signal handling for systemd
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			s := <-sigc
			slog.Info("received signal, shutting down", "signal", s.String())
			cancel()
		}()

		errc := make(chan error, 1)
		go func() {
			slog.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()

		var ws []worker.Worker
		if cfg.Feed.PrewarmInterval != "" {
			interval, err := time.ParseDuration(cfg.Feed.PrewarmInterval)
			if err != nil {
				return err
			}
			tabs := []string{aggregate.TabUnified}
			for _, p := range model.Platforms() {
				tabs = append(tabs, string(p))
			}
			ws = append(ws, &worker.Prewarmer{Agg: a.Aggregator, Tabs: tabs, Interval: interval})
		}

		if len(ws) > 0 {
			mgr := worker.NewManager(ws...)
			go func() {
				if err := mgr.Start(ctx); err != nil {
					slog.Error("worker manager stopped", "error", err)
				}
			}()
		}

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
