package protocol

import (
	"encoding/json"
	"net/http"

	"github.com/remerge-dev/remerge/internal/prompt"
)

// jsonRPCVersion is the JSON-RPC protocol version patchpal servers speak.
const jsonRPCVersion = "2.0"

// patchpalMethod is the single inference method of the patchpal wire.
const patchpalMethod = "inference"

// Patchpal speaks the fixed-shape patch-resolution protocol: a JSON-RPC 2.0
// "inference" call carrying the raw patch and code, answered with an ordered
// list of ranked candidate resolutions (beams).
type Patchpal struct{}

type patchpalRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

type patchpalResponse struct {
	JSONRPC string            `json:"jsonrpc"`
	Result  [][]json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (pp *Patchpal) Encode(req prompt.Request, p Params) ([]byte, error) {
	params := map[string]any{
		"patch": req.Patch,
		"code":  req.Code,
	}
	applyExtra(params, p.Extra)
	return json.Marshal(patchpalRequest{
		JSONRPC: jsonRPCVersion,
		Method:  patchpalMethod,
		Params:  params,
	})
}

func (pp *Patchpal) Headers(p Params) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return h
}

// Decode returns every beam's text in rank order. Each result element is an
// array whose first member is the beam text.
func (pp *Patchpal) Decode(body []byte) ([]string, error) {
	var resp patchpalResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if resp.Error != nil {
		return nil, decodeErrf("patchpal: server error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if resp.JSONRPC != jsonRPCVersion {
		return nil, decodeErrf("patchpal: invalid jsonrpc version %q", resp.JSONRPC)
	}
	if len(resp.Result) == 0 {
		return nil, decodeErrf("patchpal: response has no beams")
	}
	beams := make([]string, 0, len(resp.Result))
	for i, beam := range resp.Result {
		if len(beam) == 0 {
			return nil, decodeErrf("patchpal: beam %d is empty", i)
		}
		var text string
		if err := json.Unmarshal(beam[0], &text); err != nil {
			return nil, decodeErrf("patchpal: beam %d is not a string", i)
		}
		beams = append(beams, text)
	}
	return beams, nil
}
