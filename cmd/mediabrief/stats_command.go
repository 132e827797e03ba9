package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats <upload-id>",
		Short: "Show dedupe and classification statistics for an upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var upload uploadSummary
			if err := ctx.getJSON(cmd.Context(), fmt.Sprintf("/api/stats/%d", id), &upload); err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, upload)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Upload %d: %s (%s)\n", upload.UploadID, upload.Filename, formatBytes(upload.FileSize))
			fmt.Fprintf(out, "  Status:     %s\n", upload.Status)
			fmt.Fprintf(out, "  Rows:       %d total, %d kept, %d duplicates removed\n",
				upload.TotalRows, upload.KeptRows, upload.RemovedRows)
			fmt.Fprintf(out, "  Coverage:   %d domestic, %d foreign\n", upload.DomesticRows, upload.ForeignRows)
			if upload.HasReport {
				fmt.Fprintf(out, "  Report:     available (`mediabrief download %d`)\n", upload.UploadID)
			} else {
				fmt.Fprintln(out, "  Report:     not generated")
			}
			if upload.ErrorMessage != "" {
				fmt.Fprintf(out, "  Error:      %s\n", upload.ErrorMessage)
			}
			fmt.Fprintf(out, "  Uploaded:   %s\n", upload.CreatedAt)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}
