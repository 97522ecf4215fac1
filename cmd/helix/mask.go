package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"helix/internal/fieldmask"
)

var maskCmd = &cobra.Command{
	Use:   "mask",
	Short: "Apply the field mask to a single value",
}

var maskEncryptCmd = &cobra.Command{
	Use:   "encrypt VALUE",
	Short: "Mask a value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if !fieldmask.Eligible(args[0]) {
			warn("value contains bytes the mask cannot restore")
		}
		fmt.Println(fieldmask.Encrypt(args[0]))
	},
}

var maskDecryptCmd = &cobra.Command{
	Use:   "decrypt VALUE",
	Short: "Unmask a value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(fieldmask.Decrypt(args[0]))
	},
}

func init() {
	maskCmd.AddCommand(maskEncryptCmd)
	maskCmd.AddCommand(maskDecryptCmd)
}
