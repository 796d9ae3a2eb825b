package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"rchat/internal/crypto"
)

func genCodeCmd() *cobra.Command {
	var numeric bool

	cmd := &cobra.Command{
		Use:   "gen-code",
		Short: "Generate a chat code without connecting",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			fmt.Println(code)
			return nil
		},
	}

	cmd.Flags().BoolVar(&numeric, "numeric", false, "generate a 6-digit code")
	return cmd
}
