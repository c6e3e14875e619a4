package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantpulse/opportune/internal/config"
	"github.com/quantpulse/opportune/internal/discovery"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <user-id>",
		Short: "Run a one-shot opportunity scan for a user",
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
	}
	cmd.Flags().Bool("force-refresh", false, "Bypass the opportunity cache")
	cmd.Flags().Bool("recommendations", false, "Include strategy recommendations")
	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	eng, err := buildEngine(cfg, log.Logger)
	if err != nil {
		return err
	}
	defer eng.close()

	force, _ := cmd.Flags().GetBool("force-refresh")
	recs, _ := cmd.Flags().GetBool("recommendations")
	resp := eng.orchestrator.Discover(cmd.Context(), discovery.Request{
		UserID:                 args[0],
		ForceRefresh:           force,
		IncludeRecommendations: recs,
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}
