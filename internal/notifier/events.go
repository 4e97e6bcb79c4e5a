package notifier

import (
	"fmt"
	"strings"
	"time"
)

// EventFilter is the set of event types a notifier delivers. An empty
// filter delivers everything.
type EventFilter map[string]bool

// Accepts reports whether ev passes the filter
func (f EventFilter) Accepts(ev Event) bool {
	return len(f) == 0 || f[ev.Type]
}

// ParseEvents reads an "events" param: a list or a comma separated string.
func ParseEvents(v any) (EventFilter, error) {
	var names []string
	switch ev := v.(type) {
	case nil:
		return nil, nil
	case string:
		names = strings.Split(ev, ",")
	case []string:
		names = ev
	case []any:
		for _, e := range ev {
			names = append(names, fmt.Sprint(e))
		}
	default:
		return nil, fmt.Errorf("events must be a list, got %T", v)
	}

	set := make(EventFilter, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		switch n {
		case EventCompleted, EventFailed, EventCancelled:
			set[n] = true
		case "":
		default:
			return nil, fmt.Errorf("unknown event %q", n)
		}
	}
	return set, nil
}

// Status is the terminal status named by the event type
func (e Event) Status() string {
	return strings.TrimPrefix(e.Type, "job.")
}

// Title is a one-line summary used as a message subject
func (e Event) Title() string {
	if e.Commodity != "" {
		return fmt.Sprintf("%s job %s %s (%s)", e.JobType, e.JobID, e.Status(), e.Commodity)
	}
	return fmt.Sprintf("%s job %s %s", e.JobType, e.JobID, e.Status())
}

// Text renders the event as plain text for chat and mail notifiers
func (e Event) Text() string {
	var sb strings.Builder
	sb.WriteString(e.Title())
	sb.WriteString("\n")
	if e.Summary != "" {
		fmt.Fprintf(&sb, "Summary: %s\n", e.Summary)
	}
	if e.TotalReturn != nil {
		fmt.Fprintf(&sb, "Total return: %.2f%%\n", *e.TotalReturn*100)
	}
	if e.ErrorCode != "" {
		fmt.Fprintf(&sb, "Error: %s\n", e.ErrorCode)
	}
	if len(e.RunIDs) > 0 {
		fmt.Fprintf(&sb, "Runs: %s\n", strings.Join(e.RunIDs, ", "))
	}
	if !e.FinishedAt.IsZero() {
		fmt.Fprintf(&sb, "Finished: %s\n", e.FinishedAt.UTC().Format(time.RFC3339))
	}
	return sb.String()
}
