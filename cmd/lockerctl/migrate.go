package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pixellocker/internal/platform/database"
)

func migrateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to a SQL ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			url := v.GetString("database-url")
			if url == "" {
				return fmt.Errorf("--database-url (PIXELLOCKER_DATABASE_URL) is required")
			}
			cfg := database.DefaultConfig()
			cfg.Driver = v.GetString("database-driver")
			cfg.URL = url

			pool, err := database.New(cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := database.Migrate(cmd.Context(), pool.DB(), pool.Dialect())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(applied) == 0 {
				_, err = fmt.Fprintln(out, "schema up to date")
				return err
			}
			for _, version := range applied {
				if _, err := fmt.Fprintln(out, "applied", version); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().String("database-driver", database.DriverPostgres, "postgres or sqlite")
	cmd.Flags().String("database-url", "", "database connection URL")
	return cmd
}
