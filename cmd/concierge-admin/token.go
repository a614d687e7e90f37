package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/concierge-backend/internal/platform/envutil"
	"github.com/yungbote/concierge-backend/internal/services"
)

func newTokenCmd() *cobra.Command {
	var (
		user  string
		hotel string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := envutil.String("JWT_SECRET_KEY", "")
			if secret == "" {
				return fmt.Errorf("JWT_SECRET_KEY is not set")
			}
			userID := uuid.New()
			if user != "" {
				parsed, err := uuid.Parse(user)
				if err != nil {
					return fmt.Errorf("--user: %w", err)
				}
				userID = parsed
			}
			hotelID, err := parseOptionalUUID("hotel", hotel)
			if err != nil {
				return err
			}
			tok, err := services.IssueToken(secret, userID, hotelID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "subject user id (random when empty)")
	cmd.Flags().StringVar(&hotel, "hotel", "", "hotel_id claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
