//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remerge-dev/remerge/internal/config"
	"github.com/remerge-dev/remerge/internal/dispatch"
	"github.com/remerge-dev/remerge/internal/resolve"
	"github.com/remerge-dev/remerge/internal/syntax"
)

// chatHandler answers every chat completion with a fixed fenced code block,
// the way a well-behaved endpoint does.
func chatHandler(answer string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "```go\n" + answer + "```"}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// patchpalHandler answers with two beams, the first matching the chat
// endpoint's answer so deduplication has something to merge.
func patchpalHandler(first, second string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"jsonrpc": "2.0",
			"result":  [][]any{{first, 0.9}, {second, 0.4}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// TestResolve_E2E drives the whole pipeline over real HTTP: parse a
// conflicted Go file, query an openai-style and a patchpal-style server,
// deduplicate, syntax-check, and rewrite the file.
func TestResolve_E2E(t *testing.T) {
	chatSrv := httptest.NewServer(chatHandler("var x = 3\n"))
	defer chatSrv.Close()
	ppSrv := httptest.NewServer(patchpalHandler("var x = 3\n", "var x = 4\n"))
	defer ppSrv.Close()

	endpoints := []config.Endpoint{
		{
			Name:    "chat",
			URL:     chatSrv.URL,
			Kind:    "openai",
			Timeout: config.Duration(30 * time.Second),
		},
		{
			Name:    "pp",
			URL:     ppSrv.URL,
			Kind:    "patchpal",
			Timeout: config.Duration(30 * time.Second),
		},
	}

	disp, err := dispatch.New(endpoints)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "x.go")
	content := "package x\n\n<<<<<<< HEAD\nvar x = 1\n||||||| base\nvar x = 0\n=======\nvar x = 2\n>>>>>>> other\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	resolver := resolve.New(disp, resolve.WithSyntaxCheck(syntax.NewChecker()))
	res, err := resolver.ResolveFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Hunks)
	assert.Equal(t, 1, res.Resolved)
	require.True(t, res.Written)

	// Two distinct candidates: the shared answer (chat + first beam) and
	// the second beam.
	require.Len(t, res.Candidates[0], 2)
	assert.Equal(t, "var x = 3\n", res.Candidates[0][0].Text)
	assert.Equal(t, []string{"chat", "pp#1"}, res.Candidates[0][0].Labels)
	assert.Equal(t, []string{"pp#2"}, res.Candidates[0][1].Labels)
	assert.False(t, res.Candidates[0][0].SyntaxSuspect)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "||||||| resolution 1/2 by: chat, pp#1\nvar x = 3\n")
	assert.Contains(t, out, "||||||| resolution 2/2 by: pp#2\nvar x = 4\n")
	assert.Contains(t, out, "||||||| end of resolutions\n")
	assert.NotContains(t, out, "<<<<<<<")
}
