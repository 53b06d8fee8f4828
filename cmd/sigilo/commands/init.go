package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the local identity and initial prekey inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			fp, err := appCtx.Identity.Create()
			if err != nil {
				return err
			}
			if _, err := appCtx.PreKeys.RotateSigned(); err != nil {
				return err
			}
			batch := appCtx.Cfg.PreKeys.OneTimeBatch
			if _, err := appCtx.PreKeys.GenerateOneTime(batch); err != nil {
				return err
			}
			fmt.Printf("Identity created.\nFingerprint: %s\n", fp)
			return nil
		},
	}
}
