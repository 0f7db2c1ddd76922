// Command ldapsync performs operations on a StoredSafe server driven by
// input from an LDAP directory. All fatal conditions surface here as a
// single error log line and a stable process exit code.
package main

import (
	"log/slog"
	"os"

	"github.com/storedsafe/ldapsync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		code := cli.GetExitCode(err)
		slog.Error(err.Error(), "code", code)
		os.Exit(code)
	}
}
