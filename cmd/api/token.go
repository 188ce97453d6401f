package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/practice-api/pkg/auth"
)

// tokenCmd issues a bearer token for an owner, for local use and scripts.
func tokenCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a practitioner",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			ownerID := uuid.New()
			if owner != "" {
				if ownerID, err = uuid.Parse(owner); err != nil {
					return fmt.Errorf("invalid --owner: %w", err)
				}
			}
			tokens, err := auth.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
			if err != nil {
				return err
			}
			token, err := tokens.GenerateToken(ownerID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "owner: %s\n", ownerID)
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner id (a random one when empty)")
	return cmd
}
