package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"story-server/internal/auth"
	"story-server/internal/config"
)

// TokenCmd issues an HS256 token accepted by AUTH_PROVIDER=jwt|both. For local testing.
func TokenCmd() *cobra.Command {
	var (
		email string
		admin bool
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue-token <uid>",
		Short: "Issue a signed JWT for local development",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("JWT_SECRET is not configured")
			}
			issuer, err := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, zap.NewNop())
			if err != nil {
				return err
			}
			token, err := issuer.IssueToken(args[0], email, admin, ttl)
			if err != nil {
				return err
			}
			if cfg.Auth.Provider == "firebase" {
				fmt.Fprintln(cmd.ErrOrStderr(), warnLabel("warning:"), "AUTH_PROVIDER=firebase, the server will reject this token")
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().BoolVar(&admin, "admin", false, "set the admin claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
