package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	rolehandler "pixellocker/internal/role/handler"
)

func roleCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Inspect and administer ledger roles",
	}

	show := &cobra.Command{
		Use:   "show [principal]",
		Short: "Show the role of principal, or every role holder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(v)
			if len(args) == 0 {
				var resp rolehandler.SummaryResponse
				if err := client.do(cmd.Context(), http.MethodGet, "/roles", nil, &resp); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			}
			var resp rolehandler.RoleResponse
			if err := client.do(cmd.Context(), http.MethodGet, "/roles/"+url.PathEscape(args[0]), nil, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	grant := func(use, short, method, group string) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <principal>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path := "/roles/" + group + "/" + url.PathEscape(args[0])
				if err := newAPIClient(v).do(cmd.Context(), method, path, nil, nil); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return err
			},
		}
	}

	transfer := &cobra.Command{
		Use:   "transfer-ownership <new-owner>",
		Short: "Hand ledger ownership to another principal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp rolehandler.RoleResponse
			body := rolehandler.TransferOwnershipRequest{NewOwner: args[0]}
			if err := newAPIClient(v).do(cmd.Context(), http.MethodPost, "/roles/owner", body, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.AddCommand(
		show,
		grant("add-issuer", "Grant the issuer role", http.MethodPost, "issuers"),
		grant("remove-issuer", "Revoke the issuer role", http.MethodDelete, "issuers"),
		grant("add-verifier", "Grant the verifier role", http.MethodPost, "verifiers"),
		grant("remove-verifier", "Revoke the verifier role", http.MethodDelete, "verifiers"),
		transfer,
	)
	return cmd
}
