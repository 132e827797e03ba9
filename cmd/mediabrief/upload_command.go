package main

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a CSV or XLSX file for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accepted, err := uploadFile(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Upload %d accepted (processing id %d)\n", accepted.UploadID, accepted.ProcessingID)
			if !watch {
				fmt.Fprintf(out, "Follow progress with `mediabrief watch %d`\n", accepted.ProcessingID)
				return nil
			}
			return watchJob(cmd, ctx, accepted.ProcessingID)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Follow processing progress after upload")
	return cmd
}

func uploadFile(ctx *commandContext, path string) (*uploadAccepted, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequest(http.MethodPost, ctx.apiBase()+"/api/upload", pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := ctx.httpClient.Do(req)
	if err != nil {
		return nil, wrapDialError(err, ctx.apiBase())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	accepted := new(uploadAccepted)
	if err := decodeBody(resp.Body, accepted); err != nil {
		return nil, err
	}
	return accepted, nil
}
