package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"story-server/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "storyctl",
		Short: "storyctl - operator tool for the story server",
		Long: `storyctl manages the story server database and accounts.
It reads the same environment (.env, /run/secrets) as the server.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.SetAdminCmd())
	rootCmd.AddCommand(cli.SplitCmd())
	rootCmd.AddCommand(cli.TokenCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
