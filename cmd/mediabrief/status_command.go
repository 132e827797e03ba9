package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <processing-id>",
		Short: "Show the state of a processing job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var job jobStatus
			if err := ctx.getJSON(cmd.Context(), fmt.Sprintf("/api/status/%d", id), &job); err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, job)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processing %d (upload %d)\n", job.ProcessingID, job.UploadID)
			fmt.Fprintf(out, "  Stage:    %s\n", job.Stage)
			fmt.Fprintf(out, "  Status:   %s\n", job.Status)
			fmt.Fprintf(out, "  Progress: %.0f%%\n", job.Progress)
			if job.Message != "" {
				fmt.Fprintf(out, "  Message:  %s\n", job.Message)
			}
			if job.ErrorMessage != "" {
				fmt.Fprintf(out, "  Error:    %s\n", job.ErrorMessage)
			}
			fmt.Fprintf(out, "  Updated:  %s\n", job.UpdatedAt)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}
