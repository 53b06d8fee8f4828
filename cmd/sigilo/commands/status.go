package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show identity, inventory and session summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fp, err := appCtx.Identity.Fingerprint()
			if err != nil {
				return err
			}
			oneTime, signed, err := appCtx.PreKeys.Counts()
			if err != nil {
				return err
			}
			addrs, err := appCtx.Sessions.List()
			if err != nil {
				return err
			}
			fmt.Printf("fingerprint:      %s\n", fp)
			fmt.Printf("one-time prekeys: %d\n", oneTime)
			fmt.Printf("signed prekeys:   %d\n", signed)
			fmt.Printf("sessions:         %d\n", len(addrs))
			for _, addr := range addrs {
				fmt.Printf("  %s\n", addr)
			}
			return nil
		},
	}
}
