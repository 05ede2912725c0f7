// Command lockerctl administers a pixellocker deployment: it calls the HTTP
// API on behalf of a principal, mints development tokens, runs migrations and
// tails the ledger event stream.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
