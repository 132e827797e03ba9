package dify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"mediabrief/internal/logging"
	"mediabrief/internal/services"
	"mediabrief/internal/textutil"
)

const streamChunkSize = 8192

// Source is one classified media-mention cluster from the workflow output.
type Source struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Links   []string `json:"links,omitempty"`
}

// StructuredResult is the final payload extracted from a successful
// workflow run.
type StructuredResult struct {
	DomesticSources []Source `json:"domestic_sources"`
	ForeignSources  []Source `json:"foreign_sources"`
}

// StreamStats counts the frames observed while consuming a run.
type StreamStats struct {
	NodesStarted  int
	NodesFinished int
	FramesDropped int
}

type streamFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type nodeData struct {
	Title string `json:"title"`
}

type finishData struct {
	Status  string          `json:"status"`
	Error   string          `json:"error"`
	Outputs json.RawMessage `json:"outputs"`
}

type errorData struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// consumeStream reads the SSE-style body until a workflow_finished or error
// frame arrives. The body may split multi-byte characters across reads, so
// bytes pass through an incremental decoder before line framing.
func (c *Client) consumeStream(ctx context.Context, body io.Reader) (*StructuredResult, error) {
	var (
		decoder textutil.StreamDecoder
		pending string
		stats   StreamStats
		buf     = make([]byte, streamChunkSize)
	)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			pending += decoder.Decode(buf[:n])
			for {
				line, rest, found := strings.Cut(pending, "\n")
				if !found {
					break
				}
				pending = rest
				result, done, err := c.handleLine(ctx, line, &stats)
				if err != nil {
					return nil, err
				}
				if done {
					c.logStats(ctx, stats)
					return result, nil
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return nil, services.Wrap(services.ErrTransient, "workflow", "run", "stream cancelled", ctx.Err())
			}
			return nil, services.Wrap(services.ErrTransient, "workflow", "run", "stream interrupted", readErr)
		}
	}

	// A final frame without a trailing newline still counts.
	pending += decoder.Flush()
	if line := strings.TrimSpace(pending); line != "" {
		result, done, err := c.handleLine(ctx, line, &stats)
		if err != nil {
			return nil, err
		}
		if done {
			c.logStats(ctx, stats)
			return result, nil
		}
	}

	return nil, services.Wrap(services.ErrTransient, "workflow", "run", "stream ended without a terminal event", nil)
}

func (c *Client) handleLine(ctx context.Context, line string, stats *StreamStats) (*StructuredResult, bool, error) {
	line = strings.TrimSpace(line)
	payload, ok := strings.CutPrefix(line, "data: ")
	if !ok {
		return nil, false, nil
	}

	var frame streamFrame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		// Malformed frames are dropped; the terminal frame decides the outcome.
		stats.FramesDropped++
		c.logger.WarnContext(ctx, "dropped malformed stream frame",
			logging.String("excerpt", textutil.Truncate(payload, 200)),
			logging.Error(err),
		)
		return nil, false, nil
	}

	switch frame.Event {
	case "node_started":
		stats.NodesStarted++
		var node nodeData
		_ = json.Unmarshal(frame.Data, &node)
		c.logger.DebugContext(ctx, "workflow node started", logging.String("node", node.Title))
	case "node_finished":
		stats.NodesFinished++
		var node nodeData
		_ = json.Unmarshal(frame.Data, &node)
		c.logger.DebugContext(ctx, "workflow node finished", logging.String("node", node.Title))
	case "workflow_finished":
		var finish finishData
		if err := json.Unmarshal(frame.Data, &finish); err != nil {
			return nil, false, services.Wrap(services.ErrTransient, "workflow", "run", "decode finish frame", err)
		}
		switch finish.Status {
		case "succeeded":
			result, err := c.extractOutputs(finish.Outputs)
			if err != nil {
				return nil, false, err
			}
			return result, true, nil
		case "failed":
			return nil, false, wrapClassified(Classify(finish.Error), "run")
		default:
			return nil, false, services.Wrap(services.ErrTransient, "workflow", "run",
				fmt.Sprintf("workflow finished in unexpected status %q", finish.Status), nil)
		}
	case "error":
		var fault errorData
		_ = json.Unmarshal(frame.Data, &fault)
		message := fault.Message
		if message == "" {
			message = string(frame.Data)
		}
		return nil, false, wrapClassified(Classify(message), "run")
	}
	return nil, false, nil
}

// extractOutputs locates the structured payload inside the outputs object.
// The primary field is tried first, then the configured fallbacks, then the
// sources directly on outputs.
func (c *Client) extractOutputs(outputs json.RawMessage) (*StructuredResult, error) {
	if len(outputs) == 0 {
		return nil, services.Wrap(services.ErrTransient, "workflow", "run", "finish frame has no outputs", nil)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(outputs, &fields); err != nil {
		return nil, services.Wrap(services.ErrTransient, "workflow", "run", "decode outputs", err)
	}

	candidates := append([]string{c.structuredField}, c.fallbackFields...)
	for _, field := range candidates {
		raw, ok := fields[field]
		if !ok {
			continue
		}
		var result StructuredResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, services.Wrap(services.ErrTransient, "workflow", "run",
				fmt.Sprintf("decode structured field %q", field), err)
		}
		return &result, nil
	}

	// Some workflow versions emit the sources directly on outputs.
	if _, ok := fields["domestic_sources"]; ok {
		var result StructuredResult
		if err := json.Unmarshal(outputs, &result); err != nil {
			return nil, services.Wrap(services.ErrTransient, "workflow", "run", "decode direct outputs", err)
		}
		return &result, nil
	}
	if _, ok := fields["foreign_sources"]; ok {
		var result StructuredResult
		if err := json.Unmarshal(outputs, &result); err != nil {
			return nil, services.Wrap(services.ErrTransient, "workflow", "run", "decode direct outputs", err)
		}
		return &result, nil
	}

	return nil, services.Wrap(services.ErrTransient, "workflow", "run", "outputs missing structured payload", nil)
}

func (c *Client) logStats(ctx context.Context, stats StreamStats) {
	c.logger.InfoContext(ctx, "workflow stream complete",
		logging.Int("nodes_started", stats.NodesStarted),
		logging.Int("nodes_finished", stats.NodesFinished),
		logging.Int("frames_dropped", stats.FramesDropped),
	)
}
