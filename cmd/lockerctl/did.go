package main

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	didhandler "pixellocker/internal/did/handler"
)

func didCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "did",
		Short: "Manage the DID directory entry of the --as principal",
	}

	mutate := func(use, short, method string) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <did>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var resp didhandler.DIDResponse
				if err := newAPIClient(v).do(cmd.Context(), method, "/dids", didhandler.DIDRequest{DID: args[0]}, &resp); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			},
		}
	}

	get := &cobra.Command{
		Use:   "get <owner>",
		Short: "Show the DID registered by owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp didhandler.DIDResponse
			if err := newAPIClient(v).do(cmd.Context(), http.MethodGet, "/dids/"+url.PathEscape(args[0]), nil, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.AddCommand(
		mutate("register", "Register a DID for the caller", http.MethodPost),
		mutate("update", "Replace the caller's registered DID", http.MethodPut),
		get,
	)
	return cmd
}
