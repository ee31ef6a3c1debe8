package bench

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remerge-dev/remerge/internal/config"
	"github.com/remerge-dev/remerge/internal/dispatch"
	"github.com/remerge-dev/remerge/internal/protocol"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestDispatcher(t *testing.T, answer string) *dispatch.Dispatcher {
	t.Helper()
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		body, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": answer}},
			},
		})
		return &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(bytes.NewReader(body)),
		}, nil
	})
	d, err := dispatch.New([]config.Endpoint{{
		Name:    "model",
		URL:     "http://model.test/v1/chat/completions",
		Kind:    protocol.KindOpenAI,
		Timeout: config.Duration(time.Minute),
	}}, dispatch.WithTransport(transport))
	require.NoError(t, err)
	return d
}

func testEntries() []Entry {
	return []Entry{
		{Index: 0, Patch: "P0", Code: "C0", PatchedCode: "answer"},
		{Index: 1, Patch: "P1", Code: "C1", PatchedCode: "something else"},
	}
}

func TestRunner_ScoresEveryEntry(t *testing.T) {
	runner, err := NewRunner(newTestDispatcher(t, "answer"), WithOutput(io.Discard))
	require.NoError(t, err)

	require.NoError(t, runner.Run(context.Background(), testEntries()))

	results := runner.Results()
	require.Len(t, results, 2)
	assert.True(t, results[0].Correct)
	assert.False(t, results[1].Correct)
	assert.Equal(t, "model", results[0].Model)
}

func TestRunner_CheckpointResumeSkipsDoneEntries(t *testing.T) {
	checkpoint := filepath.Join(t.TempDir(), "cp.csv")

	first, err := NewRunner(newTestDispatcher(t, "answer"),
		WithOutput(io.Discard),
		WithCheckpoint(checkpoint, 1),
		WithMaxEntries(1))
	require.NoError(t, err)
	require.NoError(t, first.Run(context.Background(), testEntries()))
	require.Len(t, first.Results(), 1)

	// The resumed run must only process the remaining entry.
	second, err := NewRunner(newTestDispatcher(t, "answer"),
		WithOutput(io.Discard),
		WithCheckpoint(checkpoint, 1))
	require.NoError(t, err)
	require.NoError(t, second.Run(context.Background(), testEntries()))

	results := second.Results()
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].EntryIndex)
	assert.Equal(t, 1, results[1].EntryIndex)

	saved, err := LoadCheckpoint(checkpoint)
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestRunner_MaxEntries(t *testing.T) {
	runner, err := NewRunner(newTestDispatcher(t, "x"), WithOutput(io.Discard), WithMaxEntries(1))
	require.NoError(t, err)

	require.NoError(t, runner.Run(context.Background(), testEntries()))
	assert.Len(t, runner.Results(), 1)
}
