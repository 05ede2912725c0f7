package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pixellocker/pkg/domain"
)

const keyTTL = "ttl"

func tokenCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Bearer token utilities",
	}

	mint := &cobra.Command{
		Use:   "mint <principal>",
		Short: "Mint an access token whose subject is principal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			principal, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			token, err := mintToken(cmd.Context(), v, principal)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	mint.Flags().Duration(keyTTL, 15*time.Minute, "token lifetime")
	cmd.AddCommand(mint)

	// --as also mints through mintToken, so every command carries the ttl default.
	v.SetDefault(keyTTL, 15*time.Minute)
	return cmd
}
