package conflict

import (
	"fmt"
	"strings"
)

// resolutionMarker opens each candidate block. It reuses the base-section
// marker character so the file still reads as "needs human attention" but
// re-parses as plain text (a stray ||||||| outside a hunk is not a marker).
const resolutionMarker = "|||||||"

// RenderHunk returns the replacement text for a hunk's span. With no
// surviving candidates the original marker text is returned byte-for-byte,
// so a fully failed hunk is indistinguishable from one never attempted.
func RenderHunk(h *Hunk, candidates []Resolution) string {
	if len(candidates) == 0 {
		return h.Raw()
	}

	var sb strings.Builder
	for i, c := range candidates {
		suspect := ""
		if c.SyntaxSuspect {
			suspect = " [syntax?]"
		}
		fmt.Fprintf(&sb, "%s resolution %d/%d by: %s%s\n",
			resolutionMarker, i+1, len(candidates), strings.Join(c.Labels, ", "), suspect)
		sb.WriteString(c.Text)
		if c.Text != "" && !strings.HasSuffix(c.Text, "\n") {
			sb.WriteString("\n")
		}
	}
	fmt.Fprintf(&sb, "%s end of resolutions\n", resolutionMarker)
	return sb.String()
}

// Render reassembles the whole file. candidates holds one (possibly empty)
// resolution list per hunk, in hunk order; a nil slice leaves every hunk
// untouched. Plain-text spans are always emitted verbatim.
func (f *File) Render(candidates [][]Resolution) string {
	var sb strings.Builder
	hunkIdx := 0
	for _, s := range f.Spans {
		h, ok := s.(*Hunk)
		if !ok {
			sb.WriteString(s.Raw())
			continue
		}
		var cands []Resolution
		if hunkIdx < len(candidates) {
			cands = candidates[hunkIdx]
		}
		hunkIdx++
		sb.WriteString(RenderHunk(h, cands))
	}
	return sb.String()
}
