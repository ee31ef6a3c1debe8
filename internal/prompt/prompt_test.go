package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remerge-dev/remerge/internal/conflict"
)

func parseHunk(t *testing.T, text string) *conflict.Hunk {
	t.Helper()
	f, err := conflict.Parse("x", text)
	require.NoError(t, err)
	hunks := f.Hunks()
	require.Len(t, hunks, 1)
	return hunks[0]
}

const hunkText = `before1
before2
<<<<<<< HEAD
ours line
||||||| base
base line
=======
theirs line
>>>>>>> other
after1
after2
`

func TestHunkBuilder_Blocks(t *testing.T) {
	h := parseHunk(t, hunkText)
	req := HunkBuilder(h, "")(Options{})

	names := make([]string, len(req.Blocks))
	for i, b := range req.Blocks {
		names[i] = b.Name
	}
	assert.Equal(t, []string{"ours", "base", "theirs", "diff"}, names)
	assert.Equal(t, "ours line\n", req.Blocks[0].Text)
	assert.Equal(t, "base line\n", req.Blocks[1].Text)
	assert.Equal(t, "theirs line\n", req.Blocks[2].Text)
}

func TestHunkBuilder_PatchAndCodeIncludeContext(t *testing.T) {
	h := parseHunk(t, hunkText)
	req := HunkBuilder(h, "")(Options{})

	assert.Equal(t, "before1\nbefore2\nours line\nafter1\nafter2\n", req.Code)
	assert.Contains(t, req.Patch, "-base line")
	assert.Contains(t, req.Patch, "+theirs line")
	assert.Contains(t, req.Patch, " before1")
	assert.Contains(t, req.Patch, " after2")
}

func TestHunkBuilder_NoDiffOmitsBlockNotPatch(t *testing.T) {
	h := parseHunk(t, hunkText)
	req := HunkBuilder(h, "")(Options{NoDiff: true})

	for _, b := range req.Blocks {
		assert.NotEqual(t, "diff", b.Name)
	}
	// The patch field stays populated for fixed-shape protocols.
	assert.NotEmpty(t, req.Patch)
}

func TestHunkBuilder_GitDiffAppendedToInstruction(t *testing.T) {
	h := parseHunk(t, hunkText)
	req := HunkBuilder(h, "diff --git a/f b/f\n")(Options{})

	assert.Contains(t, req.Instruction, "<|change_start|>")
	assert.Contains(t, req.Instruction, "diff --git a/f b/f")
	assert.NotContains(t, req.UserContent(), "<|change_start|>")
}

func TestRequest_UserContentMarkers(t *testing.T) {
	h := parseHunk(t, hunkText)
	req := HunkBuilder(h, "")(Options{})
	content := req.UserContent()

	assert.Contains(t, content, "<|ours_start|>\nours line\n<|ours_end|>\n")
	assert.Contains(t, content, "<|base_start|>\nbase line\n<|base_end|>\n")
	assert.Contains(t, content, "<|theirs_start|>\ntheirs line\n<|theirs_end|>\n")
	assert.Contains(t, content, "<|diff_start|>\n")
	assert.False(t, strings.HasPrefix(content, req.Instruction))
}

func TestRequest_SystemVersusUserInstruction(t *testing.T) {
	h := parseHunk(t, hunkText)

	sys := HunkBuilder(h, "")(Options{})
	assert.NotEmpty(t, sys.SystemContent())
	assert.False(t, strings.Contains(sys.UserContent(), sys.Instruction))

	user := HunkBuilder(h, "")(Options{AsUserMessage: true})
	assert.Empty(t, user.SystemContent())
	assert.True(t, strings.HasPrefix(user.UserContent(), user.Instruction))
}

func TestHunkBuilder_TwoWayHunkEmptyBase(t *testing.T) {
	h := parseHunk(t, "<<<<<<< a\nx\n=======\ny\n>>>>>>> b\n")
	req := HunkBuilder(h, "")(Options{})

	assert.Equal(t, "", req.Blocks[1].Text)
	assert.Contains(t, req.UserContent(), "<|base_start|>\n<|base_end|>\n")
}

func TestStaticBuilder(t *testing.T) {
	req := StaticBuilder("PATCH", "CODE")(Options{})

	assert.Equal(t, "PATCH", req.Patch)
	assert.Equal(t, "CODE", req.Code)
	require.Len(t, req.Blocks, 2)
	assert.Equal(t, "code", req.Blocks[0].Name)
	assert.Equal(t, "diff", req.Blocks[1].Name)

	noDiff := StaticBuilder("PATCH", "CODE")(Options{NoDiff: true})
	require.Len(t, noDiff.Blocks, 1)
}
