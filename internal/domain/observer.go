package domain

import (
	"sync"
	"time"

	m "regotest.dev/pkg/regotest/internal/model"
)

// RunObserver receives the progress of one run. Calls for a run are made
// from a single goroutine, in order, and End is called exactly once.
type RunObserver interface {
	Enqueued(node *m.Node)
	Started(node *m.Node)
	Passed(node *m.Node, duration time.Duration)
	Failed(node *m.Node, messages []string, duration time.Duration)
	Skipped(node *m.Node)
	// AppendOutput adds text to the run output. node is nil for output that
	// is not attributed to a test.
	AppendOutput(text string, node *m.Node)
	End()
}

// Observers fans every callback out to each observer in order.
type Observers []RunObserver

func (o Observers) Enqueued(node *m.Node) {
	for _, obs := range o {
		obs.Enqueued(node)
	}
}

func (o Observers) Started(node *m.Node) {
	for _, obs := range o {
		obs.Started(node)
	}
}

func (o Observers) Passed(node *m.Node, duration time.Duration) {
	for _, obs := range o {
		obs.Passed(node, duration)
	}
}

func (o Observers) Failed(node *m.Node, messages []string, duration time.Duration) {
	for _, obs := range o {
		obs.Failed(node, messages, duration)
	}
}

func (o Observers) Skipped(node *m.Node) {
	for _, obs := range o {
		obs.Skipped(node)
	}
}

func (o Observers) AppendOutput(text string, node *m.Node) {
	for _, obs := range o {
		obs.AppendOutput(text, node)
	}
}

func (o Observers) End() {
	for _, obs := range o {
		obs.End()
	}
}

// EventKind names a RunObserver callback.
type EventKind string

const (
	EventEnqueued EventKind = "enqueued"
	EventStarted  EventKind = "started"
	EventPassed   EventKind = "passed"
	EventFailed   EventKind = "failed"
	EventSkipped  EventKind = "skipped"
	EventOutput   EventKind = "output"
	EventEnd      EventKind = "end"
)

// RunEvent is one recorded callback.
type RunEvent struct {
	Kind     EventKind
	TestID   string
	Messages []string
	Duration time.Duration
	Output   string
}

// Recorder is a RunObserver that keeps every callback and can summarize the
// run as a report. It is safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	events    []RunEvent
	startedAt time.Time
	endedAt   time.Time
	ended     chan struct{}
}

// NewRecorder constructs an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		startedAt: time.Now(),
		ended:     make(chan struct{}),
	}
}

func (r *Recorder) record(ev RunEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
}

func (r *Recorder) Enqueued(node *m.Node) {
	r.record(RunEvent{Kind: EventEnqueued, TestID: node.ID})
}

func (r *Recorder) Started(node *m.Node) {
	r.record(RunEvent{Kind: EventStarted, TestID: node.ID})
}

func (r *Recorder) Passed(node *m.Node, duration time.Duration) {
	r.record(RunEvent{Kind: EventPassed, TestID: node.ID, Duration: duration})
}

func (r *Recorder) Failed(node *m.Node, messages []string, duration time.Duration) {
	r.record(RunEvent{Kind: EventFailed, TestID: node.ID, Messages: messages, Duration: duration})
}

func (r *Recorder) Skipped(node *m.Node) {
	r.record(RunEvent{Kind: EventSkipped, TestID: node.ID})
}

func (r *Recorder) AppendOutput(text string, node *m.Node) {
	ev := RunEvent{Kind: EventOutput, Output: text}
	if node != nil {
		ev.TestID = node.ID
	}

	r.record(ev)
}

func (r *Recorder) End() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, RunEvent{Kind: EventEnd})

	if r.endedAt.IsZero() {
		r.endedAt = time.Now()
		close(r.ended)
	}
}

// Done is closed once End has been called.
func (r *Recorder) Done() <-chan struct{} {
	return r.ended
}

// Events returns a copy of the recorded callbacks.
func (r *Recorder) Events() []RunEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RunEvent, len(r.events))
	copy(out, r.events)

	return out
}

// Kinds returns the recorded callback kinds, optionally filtered.
func (r *Recorder) Kinds(only ...EventKind) []EventKind {
	keep := make(map[EventKind]bool, len(only))
	for _, k := range only {
		keep[k] = true
	}

	var kinds []EventKind

	for _, ev := range r.Events() {
		if len(only) == 0 || keep[ev.Kind] {
			kinds = append(kinds, ev.Kind)
		}
	}

	return kinds
}

// Report summarizes the final state of every enqueued test, in enqueue
// order.
func (r *Recorder) Report(runID string) m.RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := m.RunReport{
		RunID:     runID,
		StartedAt: r.startedAt,
		EndedAt:   r.endedAt,
	}

	index := make(map[string]int)

	for _, ev := range r.events {
		switch ev.Kind {
		case EventEnqueued:
			if _, ok := index[ev.TestID]; !ok {
				index[ev.TestID] = len(report.Entries)
				report.Entries = append(report.Entries, m.ReportEntry{TestID: ev.TestID})
			}
		case EventPassed, EventFailed, EventSkipped:
			i, ok := index[ev.TestID]
			if !ok {
				continue
			}

			entry := &report.Entries[i]
			entry.DurationMillis = float64(ev.Duration) / float64(time.Millisecond)
			entry.Messages = ev.Messages

			switch ev.Kind {
			case EventPassed:
				entry.Outcome = m.Pass.String()
			case EventFailed:
				entry.Outcome = m.Fail.String()
			default:
				entry.Outcome = m.Skip.String()
			}
		}
	}

	return report
}
