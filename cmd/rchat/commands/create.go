package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"rchat/internal/client"
	"rchat/internal/crypto"
	"rchat/internal/domain"
)

func createCmd() *cobra.Command {
	var (
		group   bool
		maxPart uint64
		numeric bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a room with a freshly generated chat code",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUsername(); err != nil {
				return err
			}

			var (
				code string
				err  error
			)
			if numeric {
				code, err = crypto.GenerateNumericChatCode()
			} else {
				code, err = crypto.GenerateChatCode()
			}
			if err != nil {
				return err
			}

			kind := domain.OneToOne()
			if group {
				var max *uint64
				if maxPart > 0 {
					max = &maxPart
				}
				kind = domain.GroupKind(max)
			}

			fmt.Printf("Chat code (share out of band): %s\n", code)

			logger, err := newLogger()
			if err != nil {
				return err
			}
			eng, err := client.New(client.Config{
				Addr:     relayAddr,
				Username: domain.Username(username),
				ChatCode: code,
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
			if err := eng.CreateRoom(kind); err != nil {
				return err
			}
			return runSession(cmd, eng)
		},
	}

	cmd.Flags().BoolVar(&group, "group", false, "create a group room instead of one-to-one")
	cmd.Flags().Uint64Var(&maxPart, "max", 0, "group participant cap (relay clamps to its limit)")
	cmd.Flags().BoolVar(&numeric, "numeric", false, "use a memorable 6-digit chat code")
	return cmd
}
