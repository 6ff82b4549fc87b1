// Command tyche backtests option and equity strategies against end-of-day
// market data and manages the local data stores they read.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tyche/internal/config"
	"tyche/internal/util"
)

var (
	cfgPath string
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:          "tyche",
	Short:        "Backtest option and equity strategies on end-of-day data",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd == versionCmd {
			return nil
		}
		var err error
		if cfg, err = config.Load(cfgPath); err != nil {
			return err
		}
		logger = util.NewLoggerTo(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
		util.SetDefault(logger)
		return nil
	},
}

func main() {
	path := config.DefaultPath
	if p := os.Getenv("TYCHE_CONFIG"); p != "" {
		path = p
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", path, "path to the YAML config file (env TYCHE_CONFIG)")
	rootCmd.AddCommand(runCmd, importCmd, gatherCmd, versionCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cobra.CheckErr(rootCmd.ExecuteContext(ctx))
}
