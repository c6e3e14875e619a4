package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantpulse/opportune/internal/config"
	"github.com/quantpulse/opportune/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the discovery API server",
		Long:  "Serves the scan endpoint, health, metrics, and the scan progress websocket.",
		RunE:  runServe,
	}
	cmd.Flags().String("listen", "", "Listen address (overrides config)")
	cmd.Flags().Duration("exchange-refresh", time.Hour, "Interval between exchange discovery passes (0 disables)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.HTTP.Listen = listen
	}

	eng, err := buildEngine(cfg, log.Logger)
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	refresh, _ := cmd.Flags().GetDuration("exchange-refresh")
	if refresh > 0 {
		go func() {
			eng.refreshExchanges(ctx, log.Logger)
			ticker := time.NewTicker(refresh)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					eng.refreshExchanges(ctx, log.Logger)
				}
			}
		}()
	}

	srv := server.New(eng.orchestrator, eng.progress, eng.collector.Handler(), log.Logger)
	log.Info().Str("listen", cfg.HTTP.Listen).Str("version", version).Msg("opportune serving")
	return srv.Run(ctx, cfg.HTTP.Listen)
}
