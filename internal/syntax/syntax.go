// Package syntax runs an advisory parse over candidate resolutions spliced
// into their file, using tree-sitter grammars. A candidate that does not
// parse is flagged for the reviewer, never dropped or reordered.
package syntax

import (
	"path/filepath"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Checker maps file extensions to tree-sitter grammars. A new parser is
// created per Check call, so a Checker is safe to share across goroutines.
type Checker struct {
	languages map[string]*tree_sitter.Language
}

// NewChecker creates a Checker with Go, Python, Rust, and TypeScript
// grammars registered.
func NewChecker() *Checker {
	return &Checker{
		languages: map[string]*tree_sitter.Language{
			".go":  tree_sitter.NewLanguage(tree_sitter_go.Language()),
			".py":  tree_sitter.NewLanguage(tree_sitter_python.Language()),
			".rs":  tree_sitter.NewLanguage(tree_sitter_rust.Language()),
			".ts":  tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
			".tsx": tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()),
		},
	}
}

// Supports reports whether path's extension has a registered grammar.
func (c *Checker) Supports(path string) bool {
	_, ok := c.languages[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Check parses source with the grammar registered for path and reports
// whether the tree is free of syntax errors. Unsupported extensions pass
// trivially.
func (c *Checker) Check(path string, source []byte) bool {
	lang, ok := c.languages[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return true
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(lang); err != nil {
		return true
	}
	tree := parser.Parse(source, nil)
	if tree == nil {
		return true
	}
	defer tree.Close()

	return !tree.RootNode().HasError()
}
