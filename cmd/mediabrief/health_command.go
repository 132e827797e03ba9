package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check daemon health and job counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload struct {
				Status string `json:"status"`
				Jobs   struct {
					Total      int `json:"total"`
					Processing int `json:"processing"`
					Completed  int `json:"completed"`
					Failed     int `json:"failed"`
				} `json:"jobs"`
			}
			if err := ctx.getJSON(cmd.Context(), "/api/health", &payload); err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon: %s\n", payload.Status)
			fmt.Fprintf(out, "Jobs:   %d total, %d processing, %d completed, %d failed\n",
				payload.Jobs.Total, payload.Jobs.Processing, payload.Jobs.Completed, payload.Jobs.Failed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}
