package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	ConfigPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "fieldsyncd",
		Short: "Local-first visit scheduling and sync for solar field technicians",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.ConfigPath == "" {
				opts.ConfigPath = os.Getenv("CONFIG_PATH")
			}
			if opts.ConfigPath == "" {
				opts.ConfigPath = "./config/config.yaml" // Default path for local development
			}
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config file (default $CONFIG_PATH or ./config/config.yaml)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
