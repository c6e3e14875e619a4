package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

const (
	appName = "opportune"
	version = "v1.4.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Per-user cryptocurrency opportunity discovery engine",
		Version: version,
		Long: `Opportune scans exchange universes through each user's activated
strategies and ranks the resulting trade opportunities.

Run 'opportune serve' to start the API, or 'opportune scan' for a
one-shot scan from the command line.`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if raw, _ := cmd.Flags().GetString("log-level"); raw != "" {
				if level, err := zerolog.ParseLevel(raw); err == nil {
					zerolog.SetGlobalLevel(level)
				}
			}
		},
	}
	bindGlobalFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newServeCmd(), newScanCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func bindGlobalFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to YAML config file")
	fs.String("log-level", "info", "Log level (trace|debug|info|warn|error)")
}
