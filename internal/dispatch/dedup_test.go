package dispatch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedup_ByteIdenticalTextsMerge(t *testing.T) {
	candidates := Dedup([]Outcome{
		{Index: 0, Label: "gpt", Text: "x = 1\n"},
		{Index: 1, Label: "claude", Text: "x = 1\n"},
		{Index: 2, Label: "pp#1", Text: "x = 2\n"},
	})

	require.Len(t, candidates, 2)
	assert.Equal(t, "x = 1\n", candidates[0].Text)
	assert.Equal(t, []string{"gpt", "claude"}, candidates[0].Labels)
	assert.Equal(t, []string{"pp#1"}, candidates[1].Labels)
}

func TestDedup_WhitespaceDifferencesKeptApart(t *testing.T) {
	candidates := Dedup([]Outcome{
		{Index: 0, Label: "a", Text: "x = 1\n"},
		{Index: 1, Label: "b", Text: "x  = 1\n"},
		{Index: 2, Label: "c", Text: "x = 1"},
	})
	assert.Len(t, candidates, 3)
}

func TestDedup_FirstSeenOrderByStaticIndex(t *testing.T) {
	// Completion order scrambled; static index order must win.
	candidates := Dedup([]Outcome{
		{Index: 2, Label: "c", Text: "third\n"},
		{Index: 0, Label: "a", Text: "first\n"},
		{Index: 1, Label: "b", Text: "second\n"},
	})

	require.Len(t, candidates, 3)
	assert.Equal(t, "first\n", candidates[0].Text)
	assert.Equal(t, "second\n", candidates[1].Text)
	assert.Equal(t, "third\n", candidates[2].Text)
}

func TestDedup_SkipsFailures(t *testing.T) {
	candidates := Dedup([]Outcome{
		{Index: 0, Label: "a", Err: errors.New("boom"), Kind: FailNetwork},
		{Index: 1, Label: "b", Text: "ok\n"},
	})

	require.Len(t, candidates, 1)
	assert.Equal(t, []string{"b"}, candidates[0].Labels)
}

func TestDedup_AllFailed(t *testing.T) {
	candidates := Dedup([]Outcome{
		{Index: 0, Label: "a", Err: errors.New("x")},
		{Index: 1, Label: "b", Err: errors.New("y")},
	})
	assert.Empty(t, candidates)
}

func TestDedup_Empty(t *testing.T) {
	assert.Empty(t, Dedup(nil))
}
