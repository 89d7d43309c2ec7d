package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"paylesscars/platform/httpkit"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// TokenCmd mints a development access token signed with JWT_ACCESS_SECRET.
func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_ACCESS_SECRET")
			if secret == "" {
				return errors.New("JWT_ACCESS_SECRET is required")
			}

			rawUser, _ := cmd.Flags().GetString("user")
			userID := uuid.New()
			if rawUser != "" {
				parsed, err := parseID(rawUser)
				if err != nil {
					return err
				}
				userID = parsed
			}
			roles, _ := cmd.Flags().GetStringSlice("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			token, err := httpkit.SignAccessToken(secret, userID, roles, ttl, time.Now())
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("user", "", "User id (random when omitted)")
	cmd.Flags().StringSlice("role", nil, "Roles to embed, e.g. admin")
	cmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	return cmd
}
