package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/semdex/semdex/internal/app"
	"github.com/semdex/semdex/internal/config"
	"github.com/semdex/semdex/internal/logging"
)

var (
	flagConfig string
	flagDebug  bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "semdex",
		Short: "Local semantic file search",
		Long: `semdex indexes files from allowed directories into an embedded SQLite
database and serves vector, keyword, and hybrid search over the indexed
content.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "~/.semdex/config.yaml", "path to the YAML config file")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	root.AddCommand(
		newIndexCmd(),
		newRemoveCmd(),
		newSearchCmd(),
		newStatsCmd(),
		newDirsCmd(),
		newVersionCmd(),
	)
	return root
}

// withApp loads configuration and the logger, wires the application, and
// guarantees shutdown after fn returns.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagDebug {
		cfg.Logging.Debug = true
	}

	log, err := logging.New(cfg.Logging.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			log.Warn("shutdown error", zap.Error(cerr))
		}
	}()

	return fn(ctx, a)
}
