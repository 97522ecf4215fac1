package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"helix/internal/app"
	"helix/internal/archive"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage the secured file archive",
}

var archiveInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetString("version")
		force, _ := cmd.Flags().GetBool("force")

		return run("archive init", func(a *app.HelixApp) error {
			if err := a.InitArchive(version, force); err != nil {
				return err
			}
			fmt.Printf("Archive created at %s\n", a.Archive().Path())
			return nil
		})
	},
}

var archiveShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the archive header and document",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("archive show", func(a *app.HelixApp) error {
			reportOrigin(a)

			arc := a.Archive()
			h := arc.Header
			fmt.Printf("Path:        %s\n", arc.Path())
			fmt.Printf("State:       %s\n", arc.State())
			fmt.Printf("Version:     %s\n", h.Version)
			fmt.Printf("Created:     %s\n", h.Creation.Format("2006-01-02 15:04:05"))
			fmt.Printf("Last edited: %s\n", h.LastEdited.Format("2006-01-02 15:04:05"))
			fmt.Printf("Data type:   %s\n", h.DataType)
			fmt.Printf("Data size:   %d\n", h.DataSize)
			fmt.Printf("Owner PID:   %d\n", h.OwnerPID)

			doc, err := json.MarshalIndent(redact(arc.Body.Data), "", "  ")
			if err != nil {
				return fmt.Errorf("rendering document: %w", err)
			}
			fmt.Printf("\n%s\n", doc)
			return nil
		})
	},
}

// redact hides Field-Masked values from display.
func redact(data any) any {
	doc, ok := data.(map[string]any)
	if !ok {
		return data
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if app.MaskedKeys[k] {
			out[k] = "********"
			continue
		}
		out[k] = v
	}
	return out
}

func reportOrigin(a *app.HelixApp) {
	switch a.ArchiveOrigin() {
	case archive.OriginFresh:
		warn("no archive at %s yet (run `helix archive init`)", a.Archive().Path())
	case archive.OriginBodyReset:
		warn("archive document was unreadable and has been reset to {}")
	case archive.OriginCorrupt:
		warn("archive was unreadable; a copy was kept next to %s", a.Archive().Path())
	}
}

var archiveGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print a value from the archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		unmask, _ := cmd.Flags().GetBool("unmask")

		return run("archive get", func(a *app.HelixApp) error {
			v, ok := a.GetArchiveValue(args[0], unmask)
			if !ok {
				return fmt.Errorf("key %q not found", args[0])
			}
			if s, isString := v.(string); isString {
				fmt.Println(s)
				return nil
			}
			out, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("rendering value: %w", err)
			}
			fmt.Println(string(out))
			return nil
		})
	},
}

var archiveSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Store a value in the archive",
	Long: "Store a value in the archive. VALUE is parsed as JSON when possible " +
		"and stored as a string otherwise.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mask, _ := cmd.Flags().GetBool("mask")

		var value any = args[1]
		if !mask {
			var parsed any
			if err := json.Unmarshal([]byte(args[1]), &parsed); err == nil {
				value = parsed
			}
		}

		return run("archive set", func(a *app.HelixApp) error {
			if err := a.SetArchiveValue(args[0], value, mask); err != nil {
				return err
			}
			fmt.Printf("Set %s\n", args[0])
			return nil
		})
	},
}

var archiveImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Merge a JSON object (comments allowed) into the archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading import file: %w", err)
		}

		return run("archive import", func(a *app.HelixApp) error {
			n, err := a.ImportArchive(data)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d key(s)\n", n)
			return nil
		})
	},
}

var archiveCredsCmd = &cobra.Command{
	Use:   "creds",
	Short: "Check the credentials stored in the archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("archive creds", func(a *app.HelixApp) error {
			if creds, err := a.S3Credentials(); err != nil {
				warn("s3: %v", err)
			} else {
				fmt.Printf("S3 access key: %s\n", creds.AccessKeyID)
			}

			if details, err := a.ConnectionDetails(); err != nil {
				warn("sql: %v", err)
			} else {
				redacted := details
				redacted.Password = "********"
				fmt.Printf("SQL:           %s\n", redacted.URL())
			}

			keys := a.Archive().Keys()
			sort.Strings(keys)
			fmt.Printf("Keys:          %v\n", keys)
			return nil
		})
	},
}

var archiveBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Encrypt the archive and upload it to the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("archive backup", func(a *app.HelixApp) error {
			version, err := a.BackupArchive(cmd.Context())
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}
			fmt.Printf("Archive backed up as version %d\n", version)
			return nil
		})
	},
}

var archiveRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Download, decrypt and restore the latest archive backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}

		return run("archive restore", func(a *app.HelixApp) error {
			version, err := a.RestoreArchive(cmd.Context(), passphrase, force)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}
			fmt.Printf("Restored archive version %d to %s\n", version, a.Archive().Path())
			return nil
		})
	},
}

func init() {
	archiveCmd.AddCommand(archiveInitCmd)
	archiveInitCmd.Flags().String("version", "", "Archive version (default from config)")
	archiveInitCmd.Flags().Bool("force", false, "Replace an existing archive")

	archiveCmd.AddCommand(archiveShowCmd)

	archiveCmd.AddCommand(archiveGetCmd)
	archiveGetCmd.Flags().Bool("unmask", false, "Reverse the field mask on string values")

	archiveCmd.AddCommand(archiveSetCmd)
	archiveSetCmd.Flags().Bool("mask", false, "Store the value Field-Masked")

	archiveCmd.AddCommand(archiveImportCmd)
	archiveCmd.AddCommand(archiveCredsCmd)
	archiveCmd.AddCommand(archiveBackupCmd)

	archiveCmd.AddCommand(archiveRestoreCmd)
	archiveRestoreCmd.Flags().Bool("force", false, "Replace an existing readable archive")
}
