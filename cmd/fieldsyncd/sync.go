package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"solar-field-backend/internal/connectivity"
)

func newSyncCommand(rootOpts *rootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one manual sync pass and print its result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			a, err := bootstrap(ctx, rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			defer a.close()

			obs, _ := newObserver(a.cfg.Connectivity, a.logger.Named("connectivity"))
			if prober, ok := obs.(*connectivity.Prober); ok {
				prober.ProbeOnce(ctx)
			}
			orch := newOrchestrator(a, obs, true)
			defer orch.Close()

			res, syncErr := orch.SyncNow(ctx)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			return syncErr
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "give up after this long")
	return cmd
}
