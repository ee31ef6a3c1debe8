// Package protocol translates neutral resolution requests into the wire
// shapes of the supported backend families and translates their responses
// back into resolved text. Adding a backend means adding one Adapter; the
// dispatcher never sees a wire shape.
package protocol

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/remerge-dev/remerge/internal/prompt"
)

// Kind identifies a backend wire protocol family.
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindPatchpal  Kind = "patchpal"
)

// Valid reports whether k names a supported protocol family.
func (k Kind) Valid() bool {
	switch k {
	case KindOpenAI, KindAnthropic, KindPatchpal:
		return true
	}
	return false
}

// Params are the resolved per-query request parameters an adapter needs to
// materialize one wire request.
type Params struct {
	// APIKey is the ready-to-use secret for the endpoint, or "".
	APIKey string

	// Extra is the merged JSON override mapping (endpoint baseline,
	// overridden by variant JSON, overridden by variant sampling fields).
	// Applied on top of the baseline body, last writer wins.
	Extra map[string]any
}

// Adapter is the capability pair every protocol family implements.
// Decode returns one resolved text per answer; only patchpal produces more
// than one (its ranked beams).
type Adapter interface {
	Encode(req prompt.Request, p Params) ([]byte, error)
	Headers(p Params) http.Header
	Decode(body []byte) ([]string, error)
}

// New returns the adapter for a protocol kind. noChat selects the
// plain-completion body for openai endpoints and is ignored otherwise.
func New(kind Kind, noChat bool) (Adapter, error) {
	switch kind {
	case KindOpenAI:
		return &OpenAI{NoChat: noChat}, nil
	case KindAnthropic:
		return &Anthropic{}, nil
	case KindPatchpal:
		return &Patchpal{}, nil
	}
	return nil, fmt.Errorf("protocol: unknown kind %q", kind)
}

// applyExtra merges the override mapping into a baseline body.
func applyExtra(body map[string]any, extra map[string]any) {
	for k, v := range extra {
		body[k] = v
	}
}

// unwrapFence extracts the content of the first fenced code block in s, or
// returns s verbatim when no complete fence is present. The opening fence's
// language tag is discarded.
func unwrapFence(s string) string {
	lines := strings.Split(s, "\n")
	start := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			start = i
			break
		}
	}
	if start == -1 {
		return s
	}
	for j := start + 1; j < len(lines); j++ {
		if strings.TrimSpace(lines[j]) == "```" {
			inner := lines[start+1 : j]
			if len(inner) == 0 {
				return ""
			}
			return strings.Join(inner, "\n") + "\n"
		}
	}
	return s
}
