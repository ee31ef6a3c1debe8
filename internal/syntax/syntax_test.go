package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSupports(t *testing.T) {
	c := NewChecker()
	assert.True(t, c.Supports("main.go"))
	assert.True(t, c.Supports("lib/util.py"))
	assert.True(t, c.Supports("src/lib.rs"))
	assert.True(t, c.Supports("app.ts"))
	assert.True(t, c.Supports("App.TSX"))
	assert.False(t, c.Supports("README.md"))
	assert.False(t, c.Supports("Makefile"))
}

func TestCheck_ValidSource(t *testing.T) {
	c := NewChecker()
	assert.True(t, c.Check("main.go", []byte("package main\n\nfunc main() {}\n")))
	assert.True(t, c.Check("x.py", []byte("def f():\n    return 1\n")))
	assert.True(t, c.Check("x.rs", []byte("fn main() {}\n")))
	assert.True(t, c.Check("x.ts", []byte("const x: number = 1;\n")))
}

func TestCheck_BrokenSource(t *testing.T) {
	c := NewChecker()
	assert.False(t, c.Check("main.go", []byte("package main\n\nfunc broken( {\n")))
	assert.False(t, c.Check("x.rs", []byte("fn main( {\n")))
}

func TestCheck_UnsupportedPassesTrivially(t *testing.T) {
	c := NewChecker()
	assert.True(t, c.Check("notes.txt", []byte("anything ((( goes\n")))
}
