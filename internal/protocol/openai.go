package protocol

import (
	"encoding/json"
	"net/http"

	"github.com/remerge-dev/remerge/internal/prompt"
)

// OpenAI speaks the chat-completions wire shape (or the plain completions
// shape when NoChat is set), which most self-hosted servers such as
// llama.cpp and vLLM also expose.
type OpenAI struct {
	// NoChat selects /v1/completions-style bodies: one prompt string
	// instead of a message list.
	NoChat bool
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Encode builds the request body. Sampling and reasoning-effort overrides
// sit at the top level, as the wire format requires.
func (o *OpenAI) Encode(req prompt.Request, p Params) ([]byte, error) {
	body := map[string]any{}
	if o.NoChat {
		promptText := req.UserContent()
		if sys := req.SystemContent(); sys != "" {
			promptText = sys + "\n\n" + promptText
		}
		body["prompt"] = promptText
	} else {
		var messages []openAIMessage
		if sys := req.SystemContent(); sys != "" {
			messages = append(messages, openAIMessage{Role: "system", Content: sys})
		}
		messages = append(messages, openAIMessage{Role: "user", Content: req.UserContent()})
		body["messages"] = messages
	}
	applyExtra(body, p.Extra)
	return json.Marshal(body)
}

func (o *OpenAI) Headers(p Params) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		h.Set("Authorization", "Bearer "+p.APIKey)
	}
	return h
}

// Decode extracts the first choice's content. A fenced code block, if
// present, is unwrapped; otherwise the raw content is used verbatim.
func (o *OpenAI) Decode(body []byte) ([]string, error) {
	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if resp.Error != nil {
		return nil, decodeErrf("openai: server error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, decodeErrf("openai: response has no choices")
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		content = resp.Choices[0].Text
	}
	if content == "" {
		return nil, decodeErrf("openai: first choice has no content")
	}
	return []string{unwrapFence(content)}, nil
}
