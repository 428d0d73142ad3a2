package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/didexchange/config"
)

// cfg is loaded once at process startup: a .env file (if present), then
// <DIDX_ENV>.yaml / default.yaml / config.yaml under the directory
// configDir returns, then
// DIDX_* environment overrides. Every subcommand's flag defaults are drawn
// from it instead of hard-coding agent settings twice. Package-level var
// initializers run before any init() func, so every subcommand's init()
// can rely on cfg already being populated.
var cfg = config.MustLoad(config.LoaderOptions{ConfigDir: configDir()})

var rootCmd = &cobra.Command{
	Use:   "didxctl",
	Short: "didxctl - DID Exchange connection manager CLI",
	Long: `didxctl drives the RFC 23 DID Exchange protocol from the command line:
minting out-of-band invitations, inspecting connection records, and
building the DID Documents agents exchange during the handshake.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// configDir lets DIDX_CONFIG_DIR relocate the config file search path
// (useful when didxctl isn't invoked from a checkout root); otherwise the
// loader's own default ("config") applies.
func configDir() string {
	if dir := os.Getenv("DIDX_CONFIG_DIR"); dir != "" {
		return dir
	}
	return config.DefaultLoaderOptions().ConfigDir
}
