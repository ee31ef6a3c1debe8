package conflict

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned when conflict markers are missing, out of order,
// or nested. The whole file is rejected; a malformed hunk is not a hunk.
var ErrMalformed = errors.New("malformed conflict markers")

// parser states while scanning a hunk.
const (
	stateText = iota
	stateOurs
	stateBase
	stateTheirs
)

// Parse scans the full text of a file into an ordered span sequence.
// A file with zero hunks is valid and yields a single PlainText span (or no
// spans for an empty file). Stray marker-like lines outside a hunk are plain
// text; `=======` is a common heading underline and must not open anything.
func Parse(path, text string) (*File, error) {
	f := &File{Path: path}

	var (
		state = stateText
		raw   strings.Builder // accumulated original text of the open span
		plain []string
		hunk  *Hunk
	)

	flushPlain := func() {
		if raw.Len() == 0 {
			return
		}
		f.Spans = append(f.Spans, &PlainText{raw: raw.String(), Lines: plain})
		raw.Reset()
		plain = nil
	}

	lineno := 0
	for rest := text; rest != ""; {
		lineno++
		line, tail, _ := strings.Cut(rest, "\n")
		rawLine := line
		if len(tail) > 0 || strings.HasSuffix(rest, "\n") {
			rawLine += "\n"
		}
		rest = tail

		content := strings.TrimSuffix(line, "\r")

		switch {
		case isMarker(content, "<<<<<<<"):
			if state != stateText {
				return nil, fmt.Errorf("%s:%d: %w: nested %q inside open hunk", path, lineno, ErrMalformed, "<<<<<<<")
			}
			flushPlain()
			hunk = &Hunk{OursLabel: markerLabel(content)}
			raw.WriteString(rawLine)
			state = stateOurs

		case isMarker(content, "|||||||"):
			if state != stateOurs {
				// Meaningful only between <<<<<<< and =======; anywhere
				// else it is ordinary text (or an error inside a hunk).
				if state == stateText {
					raw.WriteString(rawLine)
					plain = append(plain, line)
					continue
				}
				return nil, fmt.Errorf("%s:%d: %w: unexpected %q", path, lineno, ErrMalformed, "|||||||")
			}
			hunk.HasBase = true
			hunk.BaseLabel = markerLabel(content)
			raw.WriteString(rawLine)
			state = stateBase

		case content == "=======":
			if state != stateOurs && state != stateBase {
				if state == stateText {
					raw.WriteString(rawLine)
					plain = append(plain, line)
					continue
				}
				return nil, fmt.Errorf("%s:%d: %w: unexpected %q", path, lineno, ErrMalformed, "=======")
			}
			raw.WriteString(rawLine)
			state = stateTheirs

		case isMarker(content, ">>>>>>>"):
			if state != stateTheirs {
				if state == stateText {
					raw.WriteString(rawLine)
					plain = append(plain, line)
					continue
				}
				return nil, fmt.Errorf("%s:%d: %w: %q before %q", path, lineno, ErrMalformed, ">>>>>>>", "=======")
			}
			hunk.TheirsLabel = markerLabel(content)
			raw.WriteString(rawLine)
			hunk.raw = raw.String()
			raw.Reset()
			f.Spans = append(f.Spans, hunk)
			hunk = nil
			state = stateText

		default:
			raw.WriteString(rawLine)
			switch state {
			case stateText:
				plain = append(plain, line)
			case stateOurs:
				hunk.OursLines = append(hunk.OursLines, line)
			case stateBase:
				hunk.BaseLines = append(hunk.BaseLines, line)
			case stateTheirs:
				hunk.TheirsLines = append(hunk.TheirsLines, line)
			}
		}
	}

	if state != stateText {
		return nil, fmt.Errorf("%s: %w: unterminated hunk at end of file", path, ErrMalformed)
	}
	flushPlain()

	captureContext(f)
	return f, nil
}

// isMarker reports whether content is the given 7-character marker, alone or
// followed by a space and a label.
func isMarker(content, marker string) bool {
	if !strings.HasPrefix(content, marker) {
		return false
	}
	return len(content) == len(marker) || content[len(marker)] == ' '
}

// markerLabel returns the annotation after a marker, if any.
func markerLabel(content string) string {
	if len(content) <= 8 {
		return ""
	}
	return content[8:]
}

// captureContext fills each hunk's ContextBefore/ContextAfter from the
// adjacent plain-text spans. Hunks that touch the start or end of the file,
// or another hunk, get less (possibly zero) context.
func captureContext(f *File) {
	for i, s := range f.Spans {
		h, ok := s.(*Hunk)
		if !ok {
			continue
		}
		if i > 0 {
			if p, ok := f.Spans[i-1].(*PlainText); ok {
				h.ContextBefore = tailLines(p.Lines, contextLines)
			}
		}
		if i+1 < len(f.Spans) {
			if p, ok := f.Spans[i+1].(*PlainText); ok {
				h.ContextAfter = headLines(p.Lines, contextLines)
			}
		}
	}
}

func tailLines(lines []string, n int) []string {
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return cloneLines(lines)
}

func headLines(lines []string, n int) []string {
	if len(lines) > n {
		lines = lines[:n]
	}
	return cloneLines(lines)
}

func cloneLines(lines []string) []string {
	if len(lines) == 0 {
		return nil
	}
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}
