package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"sigilo/internal/app"
)

var (
	home       string
	configFile string
	passphrase string

	appCtx *app.App
)

// Execute builds the command tree and runs it.
func Execute() error {
	root := &cobra.Command{
		Use:           "sigilo",
		Short:         "Double-ratchet session engine CLI",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}

			path := configFile
			if path == "" && home != "" {
				path = filepath.Join(home, "sigilo.toml")
			}
			cfg, err := app.LoadFile(path)
			if err != nil {
				return err
			}
			if home != "" {
				cfg.Storage.Home = home
			}

			appCtx, err = app.New(cfg, passphrase)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if appCtx != nil {
				return appCtx.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "data dir (default ~/.sigilo)")
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default <home>/sigilo.toml)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the identity keys")

	root.AddCommand(
		initCmd(),
		fingerprintCmd(),
		prekeysCmd(),
		bundleCmd(),
		sessionCmd(),
		trustCmd(),
		encryptCmd(),
		decryptCmd(),
		statusCmd(),
	)
	return root.Execute()
}
