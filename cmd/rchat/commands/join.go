package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"rchat/internal/client"
	"rchat/internal/domain"
)

func joinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <chat-code>",
		Short: "Join a room using a shared chat code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUsername(); err != nil {
				return err
			}

			logger, err := newLogger()
			if err != nil {
				return err
			}
			eng, err := client.New(client.Config{
				Addr:     relayAddr,
				Username: domain.Username(username),
				ChatCode: args[0],
				Insecure: insecure,
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			defer eng.Close()

			fmt.Printf("Identity fingerprint: %s\n", eng.Fingerprint())

			if err := eng.Connect(); err != nil {
				return err
			}
			if err := eng.JoinRoom(); err != nil {
				return err
			}
			return runSession(cmd, eng)
		},
	}
}
