package commands

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"sigilo/internal/domain"
)

// encrypt reads plaintext from stdin and writes the base64 envelope to
// stdout, so two local stores can exchange messages through any channel.
func encryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <address>",
		Short: "Encrypt stdin for a peer, writing a base64 envelope to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			plaintext, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			env, err := appCtx.Messages.Encrypt(addr, plaintext)
			if err != nil {
				return err
			}
			fmt.Println(base64.StdEncoding.EncodeToString(env))
			return nil
		},
	}
}
