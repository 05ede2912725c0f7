package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pixellocker/internal/platform/config"
)

const envPrefix = "PIXELLOCKER"

// Keys shared by subcommands. Each is also a flag and a PIXELLOCKER_* variable.
const (
	keyServer     = "server"
	keyAs         = "as"
	keyToken      = "token"
	keySigningKey = "signing-key"
	keyIssuer     = "jwt-issuer"
	keyAudience   = "jwt-audience"
	keyTimeout    = "timeout"
)

func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "lockerctl",
		Short:         "Administer a pixellocker credential ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v.SetEnvPrefix(envPrefix)
			v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
			v.AutomaticEnv()
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config %s: %w", cfgFile, err)
				}
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "optional config file (yaml, json or toml)")
	flags.String(keyServer, "http://localhost:8080", "pixellocker API base URL")
	flags.String(keyAs, "", "act as this principal; a token is minted with --signing-key")
	flags.String(keyToken, "", "bearer token; takes precedence over --as")
	flags.String(keySigningKey, config.DevJWTSigningKey, "HS256 key used to mint tokens for --as")
	flags.String(keyIssuer, "pixellocker", "token issuer claim")
	flags.String(keyAudience, "pixellocker-api", "token audience claim")
	flags.Duration(keyTimeout, 10*time.Second, "HTTP request timeout")

	root.AddCommand(
		migrateCmd(v),
		tokenCmd(v),
		didCmd(v),
		credentialCmd(v),
		verifyCmd(v),
		roleCmd(v),
		eventsCmd(v),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
