package commands

import (
	"encoding/base64"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sigilo/internal/domain"
)

// decrypt reads a base64 envelope from stdin and writes the plaintext to
// stdout.
func decryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <address>",
		Short: "Decrypt a base64 envelope from stdin, writing plaintext to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			raw, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			env, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
			if err != nil {
				return err
			}
			plaintext, err := appCtx.Messages.Decrypt(addr, env)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(plaintext)
			return err
		},
	}
}
