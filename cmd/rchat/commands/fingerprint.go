package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"rchat/internal/crypto"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Generate a session identity and print its fingerprint",
		Long: `Identity keys live only for a session; this generates a fresh one and
prints its fingerprint, the hex SHA-256 of the public key that peers
compare out of band. create and join generate their own session
identity and print its fingerprint, which differs from this one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := crypto.NewIdentity()
			if err != nil {
				return err
			}
			defer id.Zeroize()
			fmt.Printf("Fingerprint: %s\n", id.Fingerprint())
			return nil
		},
	}
}
