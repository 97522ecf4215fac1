package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"helix/internal/app"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage archive backup keys",
}

var keysSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Generate the backup key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := readNewPassphrase()
		if err != nil {
			return err
		}

		return run("keys setup", func(a *app.HelixApp) error {
			if err := a.SetupKeys(passphrase); err != nil {
				return err
			}
			fmt.Printf("Keys written to %s\n", a.Config().Encryption.PublicKeyPath)
			return nil
		})
	},
}

func init() {
	keysCmd.AddCommand(keysSetupCmd)
}
