// Package notify publishes governance and capacity events to chat platforms
// (Slack, Discord). Publishing is best-effort: a failing sink is logged and
// never fails the operation that produced the event.
package notify

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/zulandar/workyard/internal/logging"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// Event is a message formatted for display in chat.
type Event struct {
	Title    string  `json:"title"`            // headline, e.g. "GOV-2025-003 moved to Ready for Review"
	Body     string  `json:"body,omitempty"`   // detail text
	Severity string  `json:"severity"`         // "info", "warning", "error", "success"
	Color    string  `json:"color,omitempty"`  // sidebar color hint
	Fields   []Field `json:"fields,omitempty"` // key-value metadata pairs
}

// Field is a key-value pair displayed with an event.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Short bool   `json:"short,omitempty"` // hint: render side-by-side with another field
}

// Sink delivers events to one chat platform.
type Sink interface {
	Name() string
	Publish(ctx context.Context, evt Event) error
}

// Publisher is what producers of events depend on.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Notifier fans an event out to every configured sink.
type Notifier struct {
	sinks []Sink
	log   *zap.Logger
}

// New creates a Notifier. With no sinks Publish is a no-op.
func New(log *zap.Logger, sinks ...Sink) *Notifier {
	return &Notifier{sinks: sinks, log: logging.OrNop(log)}
}

// Sinks returns the configured sink names.
func (n *Notifier) Sinks() []string {
	out := make([]string, len(n.sinks))
	for i, s := range n.sinks {
		out[i] = s.Name()
	}
	return out
}

// Publish sends evt to all sinks concurrently and waits for them. Failures
// are logged only.
func (n *Notifier) Publish(ctx context.Context, evt Event) {
	if n == nil || len(n.sinks) == 0 {
		return
	}
	if evt.Color == "" {
		evt.Color = severityColor(evt.Severity)
	}
	var wg sync.WaitGroup
	for _, s := range n.sinks {
		wg.Add(1)
		go func(s Sink) {
			defer wg.Done()
			if err := s.Publish(ctx, evt); err != nil {
				n.log.Warn("notify: publish failed",
					zap.String("sink", s.Name()),
					zap.String("title", evt.Title),
					zap.Error(err))
			}
		}(s)
	}
	wg.Wait()
}

// severityColor maps a severity string to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// Transition describes a governance request status change.
type Transition struct {
	Code      string
	Title     string
	From      string
	To        string
	Actor     string
	Owner     string
	WorkItem  string
	Converted string // "phase 1", "phase 2" or ""
}

// TransitionEvent formats a status change.
func TransitionEvent(t Transition) Event {
	severity := "info"
	switch t.To {
	case "Completed":
		severity = "success"
	case "Dismissed":
		severity = "warning"
	case "Needs Refinement":
		severity = "warning"
	}
	evt := Event{
		Title:    fmt.Sprintf("%s moved to %s", t.Code, t.To),
		Body:     t.Title,
		Severity: severity,
		Color:    severityColor(severity),
		Fields: []Field{
			{Name: "From", Value: t.From, Short: true},
			{Name: "To", Value: t.To, Short: true},
		},
	}
	if t.Actor != "" {
		evt.Fields = append(evt.Fields, Field{Name: "By", Value: t.Actor, Short: true})
	}
	if t.Owner != "" {
		evt.Fields = append(evt.Fields, Field{Name: "Owner", Value: t.Owner, Short: true})
	}
	if t.Converted != "" {
		evt.Fields = append(evt.Fields, Field{Name: "Conversion", Value: t.Converted + " → " + t.WorkItem})
	}
	return evt
}
