// Package commands implements the rchat CLI verbs.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	relayAddr string
	username  string
	insecure  bool
	verbose   bool
)

// Execute runs the CLI.
func Execute() error {
	root := &cobra.Command{
		Use:           "rchat",
		Short:         "End-to-end encrypted group chat over an untrusted relay",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&relayAddr, "relay", "localhost:6666", "relay host:port")
	root.PersistentFlags().StringVarP(&username, "username", "u", "", "display name")
	root.PersistentFlags().BoolVar(&insecure, "insecure", false, "skip TLS certificate verification (self-signed relays)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(createCmd(), joinCmd(), genCodeCmd(), fingerprintCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewNop(), nil
}

func requireUsername() error {
	if username == "" {
		return fmt.Errorf("--username is required")
	}
	return nil
}
