// Package progress turns the polled job state into a finite push stream of
// change events, consumed by the SSE and websocket endpoints.
package progress

import (
	"context"
	"log/slog"
	"time"

	"mediabrief/internal/config"
	"mediabrief/internal/logging"
	"mediabrief/internal/store"
)

// EventType identifies a progress stream frame.
type EventType string

const (
	EventConnected EventType = "connected"
	EventProgress  EventType = "progress"
	EventFinished  EventType = "finished"
	EventTimeout   EventType = "timeout"
	EventError     EventType = "error"
)

// Event is one frame of a subscription. Job is populated for connected,
// progress, and finished frames; Message carries detail for error frames.
type Event struct {
	Type    EventType
	Job     *store.Job
	Message string
}

// Watcher produces progress subscriptions backed by the store.
type Watcher struct {
	store    *store.Store
	interval time.Duration
	maxPolls int
	logger   *slog.Logger
}

// NewWatcher builds a watcher using the configured poll interval and budget.
func NewWatcher(st *store.Store, cfg *config.Config, logger *slog.Logger) *Watcher {
	interval := time.Duration(cfg.Progress.PollIntervalMillis) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	maxPolls := cfg.Progress.MaxPolls
	if maxPolls <= 0 {
		maxPolls = 300
	}
	return &Watcher{
		store:    st,
		interval: interval,
		maxPolls: maxPolls,
		logger:   logging.NewComponentLogger(logger, "progress"),
	}
}

// Subscribe returns a finite event sequence for one job. The channel opens
// with a connected frame, emits a progress frame whenever the observed
// {stage, status, progress} tuple changes, and closes after exactly one
// terminal frame: finished when the job reaches a terminal status, timeout
// when the poll budget runs out, or error on a read fault. The first poll
// happens before the first sleep so subscribers see current state
// immediately. Cancelling the context ends the sequence without a terminal
// frame.
func (w *Watcher) Subscribe(ctx context.Context, jobID int64) <-chan Event {
	events := make(chan Event)
	go w.run(ctx, jobID, events)
	return events
}

type observed struct {
	stage    store.Stage
	status   store.Status
	progress float64
}

func (w *Watcher) run(ctx context.Context, jobID int64, events chan<- Event) {
	defer close(events)

	if !send(ctx, events, Event{Type: EventConnected}) {
		return
	}

	var last *observed
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for poll := 0; poll < w.maxPolls; poll++ {
		if poll > 0 {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}

		job, err := w.store.GetJob(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.ErrorContext(ctx, "poll job", logging.Int64(logging.FieldJobID, jobID), logging.Error(err))
			send(ctx, events, Event{Type: EventError, Message: "failed to read job state"})
			return
		}
		if job == nil {
			send(ctx, events, Event{Type: EventError, Message: "job not found"})
			return
		}

		current := observed{stage: job.Stage, status: job.Status, progress: job.Progress}
		if last == nil || current != *last {
			last = &current
			if !send(ctx, events, Event{Type: EventProgress, Job: job}) {
				return
			}
		}

		if job.Status.IsTerminal() {
			send(ctx, events, Event{Type: EventFinished, Job: job})
			return
		}
	}

	send(ctx, events, Event{Type: EventTimeout, Message: "progress stream timed out"})
}

func send(ctx context.Context, events chan<- Event, event Event) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- event:
		return true
	}
}
