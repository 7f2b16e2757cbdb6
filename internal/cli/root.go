// Package cli implements the izposoja command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erazemk/izposoja/internal/config"
)

// Version is set at build time with -ldflags "-X github.com/erazemk/izposoja/internal/cli.Version=...".
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// loadConfig reads the config file named by --config, or the defaults.
func (o *RootOptions) loadConfig() (config.Config, error) {
	return config.Load(o.ConfigPath)
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "izposoja",
		Short: "Rental catalogue and sale transition service",
		Long: `izposoja runs the rental catalogue API: items, customers, bookings and
inventory holds, and the workflow that converts rentable items to sale
while resolving the bookings that stand in the way.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file (default: built-in defaults)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "izposoja %s\n", Version)
		},
	}
}
