package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"replydesk/internal/api"
	"replydesk/internal/archive"
	"replydesk/internal/metrics"
	"replydesk/internal/service"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and the archival job",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		channel, err := buildChannel(ctx, cfg)
		if err != nil {
			return err
		}
		rec := metrics.New()
		svc := service.New(st, channel, service.Options{
			ChannelName: cfg.Delivery.Kind,
			Drafter:     buildDrafter(cfg),
			Metrics:     rec,
			Logger:      log,
		})

		job := archive.NewJob(st, cfg.Archive.Interval, cfg.Archive.MinRest, rec, log)
		go job.Run(ctx)

		app := api.New(svc, api.Config{
			Metrics:   rec.Handler(),
			AccessLog: cfg.Server.AccessLog,
			Logger:    log,
		})

		errc := make(chan error, 1)
		go func() {
			log.Info("listening", "addr", cfg.Server.Addr, "store", cfg.Store.Driver, "delivery", cfg.Delivery.Kind)
			errc <- app.Listen(cfg.Server.Addr)
		}()

		select {
		case err := <-errc:
			return fmt.Errorf("server: %w", err)
		case <-ctx.Done():
		}
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move sent messages into conversation history once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := archive.NewJob(st, cfg.Archive.Interval, cfg.Archive.MinRest, nil, log).Sweep(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "Archived %d message(s)\n", n)
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(archiveCmd)
}
