package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sigilo/internal/domain"
)

func trustCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trust",
		Short: "Inspect and override pinned peer identities",
	}
	cmd.AddCommand(trustListCmd(), trustSetCmd())
	return cmd
}

func trustListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pinned identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			pins, err := appCtx.Identity.ListTrusted()
			if err != nil {
				return err
			}
			for _, pin := range pins {
				state := "pinned"
				if pin.Verified {
					state = "verified"
				}
				fmt.Printf("%s\t%x\t%s\t%s\n", pin.Address, pin.Key,
					time.Unix(pin.PinnedAt, 0).Format(time.RFC3339), state)
			}
			return nil
		},
	}
}

// trust set records an explicit decision to accept a peer's identity key,
// for example after a key change was reported and verified out of band.
func trustSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <address> <hex-identity-key>",
		Short: "Accept an identity key for a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			var key domain.X25519Public
			if err := decodeKey32((*[32]byte)(&key), args[1], "identity key"); err != nil {
				return err
			}
			if err := appCtx.Identity.Trust(addr, key); err != nil {
				return err
			}
			fmt.Printf("trusted %x for %s\n", key, addr)
			return nil
		},
	}
}
