package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var offset int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past uploads and their outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/history?limit=%d&offset=%d", limit, offset)
			var page historyPage
			if err := ctx.getJSON(cmd.Context(), path, &page); err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, page)
			}

			out := cmd.OutOrStdout()
			if len(page.Uploads) == 0 {
				fmt.Fprintln(out, "No uploads recorded")
				return nil
			}

			headers := table.Row{"ID", "File", "Status", "Rows", "Kept", "Report", "Uploaded"}
			rows := make([]table.Row, 0, len(page.Uploads))
			for _, upload := range page.Uploads {
				report := "-"
				if upload.HasReport {
					report = "yes"
				}
				rows = append(rows, table.Row{
					upload.UploadID,
					upload.Filename,
					upload.Status,
					upload.TotalRows,
					upload.KeptRows,
					report,
					upload.CreatedAt,
				})
			}
			fmt.Fprintln(out, renderTable(headers, rows, 1, 4, 5))
			fmt.Fprintf(out, "Showing %d of %d uploads\n", len(page.Uploads), page.Total)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of uploads to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of uploads to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}
