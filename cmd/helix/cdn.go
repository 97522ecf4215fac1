package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"helix/internal/app"
)

var cdnCmd = &cobra.Command{
	Use:   "cdn",
	Short: "Manage stored blobs",
}

var cdnIngestCmd = &cobra.Command{
	Use:   "ingest [DIR]",
	Short: "Store every file in a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) > 0 {
			dir = args[0]
		}

		return run("cdn ingest", func(a *app.HelixApp) error {
			recursive := a.Config().Ingest.Recursive
			if cmd.Flags().Changed("recursive") {
				recursive, _ = cmd.Flags().GetBool("recursive")
			}

			op, err := a.Ingest(cmd.Context(), dir, recursive)
			if err != nil {
				return fmt.Errorf("ingest failed: %w", err)
			}
			fmt.Printf("Ingested %d file(s) from %s\n", op.BlobCount, op.Source)
			return nil
		})
	},
}

var cdnGetCmd = &cobra.Command{
	Use:   "get HASH.EXT",
	Short: "Fetch a blob as the HTTP route would serve it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		return run("cdn get", func(a *app.HelixApp) error {
			blob, err := a.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err := os.Stdout.Write(blob.Data)
				return err
			}
			if err := os.WriteFile(output, blob.Data, 0644); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
			fmt.Printf("Wrote %d bytes (%s) to %s\n", blob.Size, blob.ContentType(), output)
			return nil
		})
	},
}

var cdnHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "View ingest history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		return run("cdn history", func(a *app.HelixApp) error {
			ops, err := a.History(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if len(ops) == 0 {
				fmt.Println("No ingest operations recorded.")
				return nil
			}

			for _, op := range ops {
				duration := ""
				if op.FinishedAt != nil {
					duration = op.FinishedAt.Sub(op.StartedAt).Truncate(time.Millisecond).String()
				}
				fmt.Printf("%s  %s  %-8s  %5d  %-10s  %s\n",
					op.OperationID,
					op.StartedAt.Format("2006-01-02 15:04:05"),
					op.Status,
					op.BlobCount,
					duration,
					op.Source,
				)
			}
			return nil
		})
	},
}

func init() {
	cdnCmd.AddCommand(cdnIngestCmd)
	cdnIngestCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories (default from config)")

	cdnCmd.AddCommand(cdnGetCmd)
	cdnGetCmd.Flags().StringP("output", "o", "", "Write the blob to a file instead of stdout")

	cdnCmd.AddCommand(cdnHistoryCmd)
	cdnHistoryCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
