package main

import (
	"log/slog"
	"os"

	"pausesync/cmd/pausepeer/ui"
	"pausesync/internal/logging"

	"github.com/spf13/cobra"
)

var version = "dev"

type rootFlags struct {
	debug         bool
	logFormat     string
	noInteraction bool
}

func (f *rootFlags) level() string {
	if f.debug {
		return logging.LevelDebug
	}
	return logging.LevelInfo
}

func main() {
	if err := logging.Configure(logging.LevelInfo, logging.FormatText); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "pausepeer",
		Short:         "Session-wide pause coordination between peers",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ui.ConfigureInteraction(flags.noInteraction)
			return logging.Configure(flags.level(), flags.logFormat)
		},
	}

	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", logging.FormatText, "Log format (text|pretty)")
	cmd.PersistentFlags().BoolVar(&flags.noInteraction, "no-interaction", false, "Disable colours and terminal detection")
	cmd.AddCommand(runCmd(flags), historyCmd(), clockCmd())
	return cmd
}
