// Package prompt builds model-neutral resolution requests from conflict
// hunks. A Request carries free-form instruction text plus structured code
// blocks; protocol adapters decide how those map onto a wire shape.
package prompt

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/remerge-dev/remerge/internal/conflict"
)

// Options are the per-variant context options that shape one request.
type Options struct {
	// NoDiff omits the three-way diff block from the request.
	NoDiff bool

	// AsUserMessage phrases the instruction as part of the user turn
	// instead of a system/developer turn. Content is unchanged.
	AsUserMessage bool
}

// Block is one named code block of a request.
type Block struct {
	Name string
	Text string
}

// Request is a protocol-agnostic resolution request for one hunk.
type Request struct {
	// Instruction is the task statement.
	Instruction string

	// Blocks are the code blocks in presentation order: ours, base,
	// theirs, and (unless built with NoDiff) diff.
	Blocks []Block

	// Patch is the unified diff base -> theirs over context-wrapped text.
	// Always populated; the fixed-shape patchpal protocol consumes it even
	// when the diff block is omitted from chat prompts.
	Patch string

	// Code is the context-wrapped ours text, the text the patch must be
	// grafted onto.
	Code string

	// AsUserMessage mirrors Options.AsUserMessage for the adapters.
	AsUserMessage bool
}

// UserContent renders the code blocks as the user-turn message body.
func (r Request) UserContent() string {
	var sb strings.Builder
	if r.AsUserMessage {
		sb.WriteString(r.Instruction)
		sb.WriteString("\n\n")
	}
	for i, b := range r.Blocks {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "<|%s_start|>\n", b.Name)
		sb.WriteString(b.Text)
		if b.Text != "" && !strings.HasSuffix(b.Text, "\n") {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "<|%s_end|>\n", b.Name)
	}
	return sb.String()
}

// SystemContent returns the system-turn text, or "" when the instruction
// was folded into the user turn.
func (r Request) SystemContent() string {
	if r.AsUserMessage {
		return ""
	}
	return r.Instruction
}

// BuilderFunc produces a request for one set of context options. The
// dispatcher calls it once per query, since options vary per variant.
type BuilderFunc func(Options) Request

const instruction = `Resolve the three-way merge conflict below.

OURS between <|ours_start|><|ours_end|> and THEIRS between <|theirs_start|><|theirs_end|> both derive from BASE between <|base_start|><|base_end|>. Combine the intent of both sides; when the DIFF between <|diff_start|><|diff_end|> is present it shows how THEIRS changed BASE, so apply exactly those modifications to OURS and make no other changes.

Reply with ONLY the resolved region in a single fenced code block. Do not repeat the surrounding context lines.`

// HunkBuilder returns a BuilderFunc for one hunk. gitDiff, when non-empty,
// is extra change context (e.g. the in-progress cherry-pick's diff) appended
// to the instruction.
func HunkBuilder(h *conflict.Hunk, gitDiff string) BuilderFunc {
	before := h.Before()
	after := h.After()
	patch := unifiedDiff(before+h.Base()+after, before+h.Theirs()+after)
	code := before + h.Ours() + after

	return func(opts Options) Request {
		req := Request{
			Instruction:   instruction,
			Patch:         patch,
			Code:          code,
			AsUserMessage: opts.AsUserMessage,
			Blocks: []Block{
				{Name: "ours", Text: h.Ours()},
				{Name: "base", Text: h.Base()},
				{Name: "theirs", Text: h.Theirs()},
			},
		}
		if gitDiff != "" {
			req.Instruction += "\n\nThe DIFF originates from the change between <|change_start|><|change_end|>.\n\n<|change_start|>\n" + gitDiff + "\n<|change_end|>"
		}
		if !opts.NoDiff {
			req.Blocks = append(req.Blocks, Block{Name: "diff", Text: patch})
		}
		return req
	}
}

// StaticBuilder returns a BuilderFunc over a prepared patch/code pair. The
// benchmark replays the dispatcher against labeled datasets this way,
// without a parsed hunk.
func StaticBuilder(patch, code string) BuilderFunc {
	return func(opts Options) Request {
		req := Request{
			Instruction:   instruction,
			Patch:         patch,
			Code:          code,
			AsUserMessage: opts.AsUserMessage,
			Blocks: []Block{
				{Name: "code", Text: code},
			},
		}
		if !opts.NoDiff {
			req.Blocks = append(req.Blocks, Block{Name: "diff", Text: patch})
		}
		return req
	}
}

// unifiedDiff renders a line-level unified diff from a to b.
func unifiedDiff(a, b string) string {
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "base",
		ToFile:   "theirs",
		Context:  3,
	})
	return diff
}
