package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	verificationhandler "pixellocker/internal/verification/handler"
)

func verifyCmd(v *viper.Viper) *cobra.Command {
	var (
		documentPath string
		req          verificationhandler.VerifyRequest
		at           string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a credential document, content hash or credential id",
		Long: "Verify evaluates exactly one of --document, --hash or --id against the ledger.\n" +
			"--document reads a JSON credential document from a file, or stdin when \"-\".",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if documentPath != "" {
				doc, err := readDocument(cmd.InOrStdin(), documentPath)
				if err != nil {
					return err
				}
				req.Document = doc
			}
			if at != "" {
				t, err := time.Parse(time.RFC3339Nano, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				req.At = &t
			}

			var resp verificationhandler.VerdictResponse
			if err := newAPIClient(v).do(cmd.Context(), http.MethodPost, "/verify", req, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&documentPath, "document", "", "credential document file, or - for stdin")
	cmd.Flags().StringVar(&req.Hash, "hash", "", "payload pointer / content hash")
	cmd.Flags().StringVar(&req.CredentialID, "id", "", "credential id")
	cmd.Flags().Uint64Var(&req.MinLedgerHeight, "min-height", 0, "fail with stale_read below this ledger height")
	cmd.Flags().StringVar(&at, "at", "", "evaluation time (RFC 3339); defaults to now")
	cmd.MarkFlagsMutuallyExclusive("document", "hash", "id")
	cmd.MarkFlagsOneRequired("document", "hash", "id")
	return cmd
}

func readDocument(stdin io.Reader, path string) (json.RawMessage, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("document %s is not valid JSON", path)
	}
	return raw, nil
}
