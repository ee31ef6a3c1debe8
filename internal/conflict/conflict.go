// Package conflict models files containing three-way merge conflict
// markers: parsing them into spans, and rewriting resolved hunks with
// attributed candidate resolutions.
package conflict

import "strings"

// contextLines is how many unconflicted lines around a hunk are captured
// for prompt construction.
const contextLines = 3

// Span is one region of a conflict file: either plain text or a hunk.
// Concatenating Raw() over all spans in order reproduces the file
// byte-for-byte.
type Span interface {
	// Raw returns the exact original text of the span, including line
	// terminators.
	Raw() string
}

// PlainText is a run of unconflicted lines.
type PlainText struct {
	raw string

	// Lines are the span's lines without terminators.
	Lines []string
}

// Raw returns the original text of the span.
func (p *PlainText) Raw() string { return p.raw }

// Hunk is one three-way conflict region bounded by marker lines.
// Hunks are created by Parse and never mutated; the writer replaces their
// span in the output instead.
type Hunk struct {
	raw string

	// Marker annotations, e.g. branch or commit names. BaseLabel is empty
	// when the file was produced without diff3 conflict style.
	OursLabel   string
	BaseLabel   string
	TheirsLabel string

	OursLines   []string
	BaseLines   []string
	TheirsLines []string

	// Up to contextLines surrounding unconflicted lines, used only for
	// prompt construction.
	ContextBefore []string
	ContextAfter  []string

	// HasBase reports whether a ||||||| base section was present.
	HasBase bool
}

// Raw returns the original marker text of the hunk.
func (h *Hunk) Raw() string { return h.raw }

// Ours returns the ours section as newline-terminated text, or "" when the
// section is empty.
func (h *Hunk) Ours() string { return joinLines(h.OursLines) }

// Base returns the base section as newline-terminated text.
func (h *Hunk) Base() string { return joinLines(h.BaseLines) }

// Theirs returns the theirs section as newline-terminated text.
func (h *Hunk) Theirs() string { return joinLines(h.TheirsLines) }

// Before returns the captured leading context as newline-terminated text.
func (h *Hunk) Before() string { return joinLines(h.ContextBefore) }

// After returns the captured trailing context as newline-terminated text.
func (h *Hunk) After() string { return joinLines(h.ContextAfter) }

// File is an ordered sequence of spans parsed from one working-tree file.
type File struct {
	Path  string
	Spans []Span
}

// Hunks returns the file's conflict hunks in order.
func (f *File) Hunks() []*Hunk {
	var hunks []*Hunk
	for _, s := range f.Spans {
		if h, ok := s.(*Hunk); ok {
			hunks = append(hunks, h)
		}
	}
	return hunks
}

// Resolution is one deduplicated candidate replacement for a hunk, with the
// attribution labels that produced it in first-seen order.
type Resolution struct {
	// Text is the replacement for the hunk's region. Either empty or
	// newline-terminated.
	Text string

	// Labels identify the endpoint/variant (or patchpal beam) sources.
	Labels []string

	// SyntaxSuspect marks candidates that failed the advisory syntax check.
	SyntaxSuspect bool
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
