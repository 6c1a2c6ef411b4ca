package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"solar-field-backend/config"
)

func newTokenCommand(rootOpts *rootOptions) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API bearer token for a technician",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration from %s: %w", rootOpts.ConfigPath, err)
			}
			jwtService := newJWTService(cfg.Auth)
			if jwtService == nil {
				return errors.New("auth.jwt_secret is not configured")
			}
			token, err := jwtService.GenerateToken(userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "technician id to embed in the token")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
