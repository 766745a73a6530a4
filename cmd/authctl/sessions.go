package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSessionsCmd(d func() *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage refresh sessions",
	}
	cmd.AddCommand(newRevokeAllCmd(d), newPurgeCmd(d))
	return cmd
}

func newRevokeAllCmd(d func() *deps) *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "revoke-all",
		Short: "Revoke every refresh token of an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user-id must be positive")
			}
			n, err := d().sessions.RevokeAllForIdentity(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("revoke sessions: %w", err)
			}
			d().log.Info("revoked refresh tokens", zap.Int64("user_id", userID), zap.Int64("count", n))
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %d refresh token(s)\n", n)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "account id")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func newPurgeCmd(d func() *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete revoked and expired refresh tokens now",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := d().sessions.CleanupExpiredAndRevoked(cmd.Context(), time.Now().UTC())
			if err != nil {
				return fmt.Errorf("purge sessions: %w", err)
			}
			d().log.Info("cleaned up expired/revoked refresh tokens", zap.Int64("count", n))
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d refresh token(s)\n", n)
			return nil
		},
	}
}
