package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the search and scrape cache",
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initClientEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Cache.Cleanup(ctx)
		if err != nil {
			return eris.Wrap(err, "cache cleanup")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired entries\n", n)
		return nil
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <pattern>",
	Short: `Remove cache entries matching a glob pattern (e.g. "scrape:*")`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initClientEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Cache.Invalidate(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "cache invalidate %q", args[0])
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries matching %q\n", n, args[0])
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheCleanupCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}
