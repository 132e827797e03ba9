package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

const (
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <processing-id>",
		Short: "Follow processing progress until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return watchJob(cmd, ctx, id)
		},
	}
}

// watchJob follows the server-sent event stream for a job and prints one
// line per progress update. It returns once a terminal event arrives.
func watchJob(cmd *cobra.Command, ctx *commandContext, id int64) error {
	url := fmt.Sprintf("%s/api/progress/%d", ctx.apiBase(), id)
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// Streaming request; the shared client timeout would cut it short.
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return wrapDialError(err, ctx.apiBase())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		payload, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var frame progressFrame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			continue
		}
		printFrame(out, frame, colorize)

		switch frame.Type {
		case "finished":
			if frame.Status == "failed" {
				return errors.New("processing failed")
			}
			return nil
		case "timeout":
			return errors.New("timed out waiting for processing to finish")
		case "error":
			return fmt.Errorf("progress stream error: %s", frame.Message)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("progress stream: %w", err)
	}
	return errors.New("progress stream ended unexpectedly")
}

func printFrame(out io.Writer, frame progressFrame, colorize bool) {
	switch frame.Type {
	case "connected":
		fmt.Fprintf(out, "Watching processing %d...\n", frame.ProcessingID)
	case "progress":
		progress := 0.0
		if frame.Progress != nil {
			progress = *frame.Progress
		}
		line := fmt.Sprintf("[%3.0f%%] %-10s %s", progress, frame.Stage, frame.Message)
		fmt.Fprintln(out, strings.TrimRight(line, " "))
	case "finished":
		if frame.Status == "failed" {
			msg := frame.ErrorMessage
			if msg == "" {
				msg = "processing failed"
			}
			if colorize {
				msg = ansiRed + msg + ansiReset
			}
			fmt.Fprintf(out, "Failed at %s: %s\n", frame.Stage, msg)
			return
		}
		done := "Completed"
		if colorize {
			done = ansiGreen + done + ansiReset
		}
		fmt.Fprintf(out, "%s: %s\n", done, frame.Message)
	case "timeout":
		fmt.Fprintln(out, "Timed out waiting for updates")
	case "error":
		fmt.Fprintf(out, "Error: %s\n", frame.Message)
	}
}
