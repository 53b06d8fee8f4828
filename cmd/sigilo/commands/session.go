package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sigilo/internal/domain"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Establish and manage sessions",
	}
	cmd.AddCommand(sessionEstablishCmd(), sessionListCmd(), sessionDeleteCmd())
	return cmd
}

func sessionEstablishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "establish <bundle.json>",
		Short: "Establish a session from a peer's prekey bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var bj bundleJSON
			if err := json.Unmarshal(raw, &bj); err != nil {
				return fmt.Errorf("bundle: %w", err)
			}
			bundle, err := bundleFromJSON(bj)
			if err != nil {
				return err
			}
			addr := domain.NewAddress(bundle.Name, bundle.DeviceID)
			if err := appCtx.Sessions.Establish(addr, bundle); err != nil {
				return err
			}
			fmt.Printf("session established with %s\n", addr)
			return nil
		},
	}
}

func sessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			addrs, err := appCtx.Sessions.List()
			if err != nil {
				return err
			}
			for _, addr := range addrs {
				fmt.Println(addr)
			}
			return nil
		},
	}
}

func sessionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <address>",
		Short: "Delete the session with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			return appCtx.Sessions.Delete(addr)
		},
	}
}
