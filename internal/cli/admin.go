package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"story-server/internal/auth"
	"story-server/internal/repository"
)

// SetAdminCmd grants or revokes admin rights in the users table and the identity provider.
func SetAdminCmd() *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "set-admin <uid>",
		Short: "Grant (or with --revoke, remove) admin rights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid := args[0]
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.closer()

			users := repository.NewPgUserRepository(e.pool, e.log)
			if err := users.SetAdmin(ctx, uid, !revoke); err != nil {
				return fmt.Errorf("update user %s: %w", uid, err)
			}

			var directory auth.IdentityDirectory = auth.NewLocalDirectory(e.log)
			if e.cfg.Auth.Provider != "jwt" {
				app, err := auth.NewFirebaseApp(ctx, e.cfg.Firebase)
				if err != nil {
					return err
				}
				client, err := app.Auth(ctx)
				if err != nil {
					return fmt.Errorf("firebase auth client: %w", err)
				}
				directory = auth.NewFirebaseDirectory(client, e.log)
			}
			if err := directory.SetAdmin(ctx, uid, !revoke); err != nil {
				return fmt.Errorf("update identity %s: %w", uid, err)
			}

			action := "granted"
			if revoke {
				action = "revoked"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s admin %s for %s\n", okLabel("OK"), action, uid)
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "remove admin rights instead of granting them")
	return cmd
}
