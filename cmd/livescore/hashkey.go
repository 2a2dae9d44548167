package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adeilh/go-livescore/auth"
)

func newHashKeyCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-key <admin-key>",
		Short: "Print the bcrypt hash to configure as admin.key_hash",
		Example: `  livescore hash-key "$(openssl rand -hex 24)"
  LIVESCORE_ADMIN_KEY_HASH=$(livescore hash-key s3cret) livescore serve`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashKey(args[0], cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", 0, "bcrypt cost (0 selects the library default)")
	return cmd
}
