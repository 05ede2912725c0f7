package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	credentialhandler "pixellocker/internal/credential/handler"
	"pixellocker/internal/credential/models"
)

func credentialCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "credential",
		Aliases: []string{"cred"},
		Short:   "Issue, revoke and inspect ledger credentials",
	}

	var issueReq credentialhandler.IssueRequest
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a credential as the --as principal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp credentialhandler.CredentialResponse
			if err := newAPIClient(v).do(cmd.Context(), http.MethodPost, "/credentials", issueReq, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	issue.Flags().StringVar(&issueReq.ID, "id", "", "credential id (see derive-id)")
	issue.Flags().StringVar(&issueReq.Subject, "subject", "", "subject principal address")
	issue.Flags().StringVar(&issueReq.PayloadPointer, "pointer", "", "payload pointer, e.g. a content hash or URI")
	_ = issue.MarkFlagRequired("id")
	_ = issue.MarkFlagRequired("subject")
	_ = issue.MarkFlagRequired("pointer")

	revoke := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke a credential issued by the --as principal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp credentialhandler.CredentialResponse
			path := "/credentials/" + url.PathEscape(args[0]) + "/revoke"
			if err := newAPIClient(v).do(cmd.Context(), http.MethodPost, path, nil, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a ledger record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp credentialhandler.CredentialResponse
			if err := newAPIClient(v).do(cmd.Context(), http.MethodGet, "/credentials/"+url.PathEscape(args[0]), nil, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	status := &cobra.Command{
		Use:   "status <id>",
		Short: "Report whether a credential exists and is not revoked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp credentialhandler.StatusResponse
			path := "/credentials/" + url.PathEscape(args[0]) + "/status"
			if err := newAPIClient(v).do(cmd.Context(), http.MethodGet, path, nil, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	var issuer, subject string
	list := &cobra.Command{
		Use:   "list",
		Short: "List credential ids by issuer or subject in issuance order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (issuer == "") == (subject == "") {
				return fmt.Errorf("exactly one of --issuer or --subject is required")
			}
			q := url.Values{}
			if issuer != "" {
				q.Set("issuer", issuer)
			} else {
				q.Set("subject", subject)
			}
			var resp credentialhandler.ListResponse
			if err := newAPIClient(v).do(cmd.Context(), http.MethodGet, "/credentials?"+q.Encode(), nil, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	list.Flags().StringVar(&issuer, "issuer", "", "issuer address")
	list.Flags().StringVar(&subject, "subject", "", "subject address")

	deriveID := &cobra.Command{
		Use:   "derive-id <seed>",
		Short: "Print the keccak256 credential id derived from seed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), models.DeriveID(args[0]))
			return err
		},
	}

	cmd.AddCommand(issue, revoke, get, status, list, deriveID)
	return cmd
}
