// Package main is the CLI entry point for autofocus.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/autofocus/internal/infra"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "autofocus",
	Short: "Automatic focus mode for macOS",
	Long: `autofocus watches the frontmost application and, for supported browsers,
the active tab's domain. After you stay on your focus apps and sites long
enough it starts a focus session and silences notifications; when you wander
off for longer than the buffer it ends the session and turns them back on.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	dataDirFlag string
	jsonOutput  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "",
		"Data directory (default $"+infra.DataDirEnv+" or ~/.autofocus)")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(entitiesCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(versionCmd)
}

func resolvePaths() infra.Paths {
	return infra.ResolvePaths(dataDirFlag)
}

// openStore opens the encrypted store, creating the data directory and key on first use.
func openStore(paths infra.Paths) (*infra.FocusStore, error) {
	if err := paths.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	key, err := infra.EnsureKey(infra.NewFileKeyProvider(paths.KeyPath))
	if err != nil {
		return nil, fmt.Errorf("load database key: %w", err)
	}
	return infra.NewFocusStore(paths.DBPath, key)
}

func createLogger(paths infra.Paths, level zapcore.Level) *zap.Logger {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{paths.LogPath}
	config.ErrorOutputPaths = []string{paths.ErrorLogPath}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("autofocus %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
