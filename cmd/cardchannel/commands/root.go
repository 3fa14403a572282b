package commands

import (
	"github.com/pion/logging"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

// Execute runs the cardchannel CLI.
func Execute() error {
	root := &cobra.Command{
		Use:           "cardchannel",
		Short:         "Open a trusted channel to a smart card and exchange APDUs",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "cardchannel.yaml", "path to the yaml config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(readersCmd(), openCmd())
	return root.Execute()
}

// loggerFactory builds the pion logging factory for all components.
func loggerFactory() logging.LoggerFactory {
	factory := logging.NewDefaultLoggerFactory()
	if verbose {
		factory.DefaultLogLevel = logging.LogLevelDebug
	} else {
		factory.DefaultLogLevel = logging.LogLevelWarn
	}
	return factory
}
