package resolve

import "fmt"

// Status is the state of one hunk within a file.
type Status string

const (
	StatusWorking    Status = "working"
	StatusResolved   Status = "resolved"
	StatusUnresolved Status = "unresolved"
	StatusSkipped    Status = "skipped"
)

// Event is emitted to the user as hunks move through the pipeline.
type Event struct {
	File       string
	Hunk       int // 1-based index within the file
	Hunks      int // total hunks in the file
	Status     Status
	Candidates int
	Message    string
}

// Reporter emits progress events through a buffered channel.
type Reporter struct {
	ch chan Event
}

// NewReporter creates a Reporter with a buffered channel of size 64.
func NewReporter() *Reporter {
	return &Reporter{ch: make(chan Event, 64)}
}

// Emit sends an event in a non-blocking fashion. If the channel is full,
// the event is silently dropped.
func (r *Reporter) Emit(event Event) {
	if r == nil {
		return
	}
	select {
	case r.ch <- event:
	default:
	}
}

// Subscribe returns a read-only channel for consuming progress events.
func (r *Reporter) Subscribe() <-chan Event {
	return r.ch
}

// Close closes the event channel.
func (r *Reporter) Close() {
	close(r.ch)
}

// FormatEvent formats an event as a human-readable status line.
func FormatEvent(event Event) string {
	switch event.Status {
	case StatusWorking:
		return fmt.Sprintf("Resolving conflict %d of %d in %s...", event.Hunk, event.Hunks, event.File)
	case StatusResolved:
		return fmt.Sprintf("  ✓ conflict %d of %d: %d candidate(s)", event.Hunk, event.Hunks, event.Candidates)
	case StatusUnresolved:
		return fmt.Sprintf("  ✗ conflict %d of %d: no candidates survived, markers left untouched", event.Hunk, event.Hunks)
	case StatusSkipped:
		return fmt.Sprintf("  - %s skipped: %s", event.File, event.Message)
	default:
		return fmt.Sprintf("  ? conflict %d of %d (unknown status)", event.Hunk, event.Hunks)
	}
}
