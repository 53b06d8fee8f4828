package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func prekeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prekeys",
		Short: "Manage the prekey inventory",
	}
	cmd.AddCommand(prekeysGenCmd(), prekeysRotateCmd(), prekeysPruneCmd(), prekeysListCmd())
	return cmd
}

func prekeysGenCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a batch of one-time prekeys",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count == 0 {
				count = appCtx.Cfg.PreKeys.OneTimeBatch
			}
			ids, err := appCtx.PreKeys.GenerateOneTime(count)
			if err != nil {
				return err
			}
			fmt.Printf("generated %d one-time prekeys\n", len(ids))
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "batch size (default from config)")
	return cmd
}

func prekeysRotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Rotate the signed prekey",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := appCtx.PreKeys.RotateSigned()
			if err != nil {
				return err
			}
			fmt.Printf("signed prekey rotated; current id %d\n", id)
			return nil
		},
	}
}

func prekeysPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove superseded signed prekeys past their grace window",
		RunE: func(cmd *cobra.Command, args []string) error {
			grace := time.Duration(appCtx.Cfg.PreKeys.SignedGraceHours) * time.Hour
			removed, err := appCtx.PreKeys.PruneSigned(grace)
			if err != nil {
				return err
			}
			fmt.Printf("pruned %d signed prekeys\n", removed)
			return nil
		},
	}
}

func prekeysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show inventory counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			oneTime, signed, err := appCtx.PreKeys.Counts()
			if err != nil {
				return err
			}
			fmt.Printf("one-time prekeys: %d\nsigned prekeys:   %d\n", oneTime, signed)
			return nil
		},
	}
}
