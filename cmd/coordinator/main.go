package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/searchgrid/grid/coordinator/app"
	"github.com/searchgrid/grid/pkg"
	"github.com/searchgrid/grid/pkg/config"
	"github.com/searchgrid/grid/pkg/gridlog"
	"github.com/searchgrid/grid/qdb"
)

var (
	cfgPath   string
	logLevel  string
	prettyLog bool
)

var rootCmd = &cobra.Command{
	Use:     "grid-coordinator --config `path-to-config`",
	Version: pkg.VersionRevision(),
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgStr, err := config.LoadCoordinatorCfg(cfgPath)
		if err != nil {
			return err
		}
		cfg := config.CoordinatorConfig()
		applyFlags(cmd, cfg)
		gridlog.ReloadLogger(cfg.LogFile, cfg.LogLevel, cfg.PrettyLogging)
		gridlog.Zero.Info().Str("version", pkg.VersionRevision()).Msg("starting grid coordinator")
		gridlog.Zero.Info().Msg("Running config: " + cfgStr)

		db, err := openQDB(cfg)
		if err != nil {
			gridlog.Zero.Error().Err(err).Msg("failed to open metadata store")
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				gridlog.Zero.Warn().Err(err).Msg("failed to close metadata store")
			}
		}()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err = app.NewApp(cfg, db).Run(ctx)
		if err != nil {
			gridlog.Zero.Error().Err(err).Msg("coordinator stopped")
		}
		return err
	},
}

// applyFlags lets explicitly passed flags override the config file.
func applyFlags(cmd *cobra.Command, cfg *config.Coordinator) {
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("pretty-log") {
		cfg.PrettyLogging = prettyLog
	}
}

func openQDB(cfg *config.Coordinator) (qdb.QDB, error) {
	switch cfg.QdbType {
	case config.QdbTypeMemory:
		return qdb.RestoreQDB(cfg.MemqdbBackupPath)
	default:
		return qdb.NewEtcdQDB(cfg.QdbAddr, cfg.QdbSessionTTL)
	}
}

func init() {
	rootCmd.SetVersionTemplate(pkg.VersionTemplate())
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "/etc/grid/coordinator.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level: debug, info, warning, error, fatal")
	rootCmd.PersistentFlags().BoolVarP(&prettyLog, "pretty-log", "P", false, "write logs in human readable form")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		gridlog.Zero.Fatal().Err(err).Msg("")
	}
}
