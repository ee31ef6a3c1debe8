package protocol

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/remerge-dev/remerge/internal/prompt"
)

// anthropicVersion is the messages-API version header the wire requires.
const anthropicVersion = "2023-06-01"

// defaultMaxTokens is the max_tokens baseline; the field is mandatory on
// this wire and overridable through the endpoint/variant JSON mapping.
const defaultMaxTokens = 8192

// Anthropic speaks the messages API.
type Anthropic struct{}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *Anthropic) Encode(req prompt.Request, p Params) ([]byte, error) {
	body := map[string]any{
		"max_tokens": defaultMaxTokens,
		"messages": []openAIMessage{
			{Role: "user", Content: req.UserContent()},
		},
	}
	if sys := req.SystemContent(); sys != "" {
		body["system"] = sys
	}
	applyExtra(body, p.Extra)
	return json.Marshal(body)
}

func (a *Anthropic) Headers(p Params) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("anthropic-version", anthropicVersion)
	if p.APIKey != "" {
		h.Set("x-api-key", p.APIKey)
	}
	return h
}

// Decode concatenates the text-type content blocks and unwraps a fenced
// code block when present.
func (a *Anthropic) Decode(body []byte) ([]string, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if resp.Error != nil {
		return nil, decodeErrf("anthropic: %s: %s", resp.Error.Type, resp.Error.Message)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, decodeErrf("anthropic: response has no text content blocks")
	}
	return []string{unwrapFence(sb.String())}, nil
}
