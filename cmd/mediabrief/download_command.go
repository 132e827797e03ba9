package main

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "download <upload-id>",
		Short: "Download the generated briefing report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			url := fmt.Sprintf("%s/api/download/%d", ctx.apiBase(), id)
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := ctx.httpClient.Do(req)
			if err != nil {
				return wrapDialError(err, ctx.apiBase())
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return apiError(resp)
			}

			target := strings.TrimSpace(outputPath)
			if target == "" {
				target = attachmentFilename(resp, fmt.Sprintf("report_%d.md", id))
			}
			if err := saveResponse(resp.Body, target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved report to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination path for the report")
	return cmd
}

func attachmentFilename(resp *http.Response, fallback string) string {
	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition"))
	if err == nil {
		if name := filepath.Base(params["filename"]); name != "" && name != "." {
			return name
		}
	}
	return fallback
}

func saveResponse(body io.Reader, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()
	if _, err := io.Copy(file, body); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}
