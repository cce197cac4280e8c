package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voc0der/linux-proton-ge-updater/internal/service/updater"
	"github.com/voc0der/linux-proton-ge-updater/internal/version"
)

var (
	// configPath to the optional configuration YAML file.
	configPath string

	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd replaces the installed GE-Proton with the latest release.
	rootCmd = &cobra.Command{
		Use:          "ge-proton-updater",
		Short:        "Install the latest GE-Proton release for Steam",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			_, err := updater.Run(ctx, options())

			return err
		},
	}

	// latestCmd prints the newest release without installing it.
	latestCmd = &cobra.Command{
		Use:          "latest",
		Short:        "Print the latest release tag and download URL",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			artifact, err := updater.Latest(ctx, options())
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", artifact.Tag, artifact.URL)

			return err
		},
	}
)

// Execute runs the ge-proton-updater CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(latestCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func options() *updater.Options {
	return &updater.Options{
		ConfigPath: configPath,
		LogLevel:   logLevel,
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file, defaults are used when empty")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn or error")
}
