// Package resolve drives the full pipeline for working-tree files: parse
// conflicts, query every endpoint per hunk, deduplicate the survivors, and
// rewrite each file with attributed candidates. Hunks are independent and
// run in parallel; a hunk with zero surviving candidates keeps its original
// markers byte-for-byte.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/remerge-dev/remerge/internal/conflict"
	"github.com/remerge-dev/remerge/internal/dispatch"
	"github.com/remerge-dev/remerge/internal/prompt"
	"github.com/remerge-dev/remerge/internal/syntax"
)

// Resolver ties the pipeline together for one run.
type Resolver struct {
	disp     *dispatch.Dispatcher
	reporter *Reporter
	checker  *syntax.Checker
	gitDiff  string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithReporter attaches a progress reporter; it may be nil.
func WithReporter(r *Reporter) Option {
	return func(rs *Resolver) { rs.reporter = r }
}

// WithSyntaxCheck enables the advisory syntax check on candidates.
func WithSyntaxCheck(c *syntax.Checker) Option {
	return func(rs *Resolver) { rs.checker = c }
}

// WithGitDiff supplies extra change context (e.g. the in-progress
// cherry-pick's diff) included in every prompt.
func WithGitDiff(diff string) Option {
	return func(rs *Resolver) { rs.gitDiff = diff }
}

// New creates a Resolver over a ready dispatcher.
func New(disp *dispatch.Dispatcher, opts ...Option) *Resolver {
	r := &Resolver{disp: disp}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FileResult is the outcome of processing one file.
type FileResult struct {
	Path string

	// Hunks and Resolved count the file's conflicts and how many ended
	// with at least one candidate.
	Hunks    int
	Resolved int

	// Candidates holds the deduplicated resolutions per hunk, in hunk
	// order.
	Candidates [][]conflict.Resolution

	// Written reports whether the file was rewritten.
	Written bool

	// Err is set when the file could not be processed (e.g. malformed
	// markers); other files are unaffected.
	Err error
}

// ResolveFile processes a single file in place.
func (r *Resolver) ResolveFile(ctx context.Context, path string) (*FileResult, error) {
	res := &FileResult{Path: path}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	file, err := conflict.Parse(path, string(data))
	if err != nil {
		return nil, err
	}
	hunks := file.Hunks()
	res.Hunks = len(hunks)
	if len(hunks) == 0 {
		return res, nil
	}

	res.Candidates = make([][]conflict.Resolution, len(hunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range hunks {
		r.reporter.Emit(Event{File: path, Hunk: i + 1, Hunks: len(hunks), Status: StatusWorking})
		g.Go(func() error {
			outcomes, err := r.disp.Dispatch(gctx, prompt.HunkBuilder(h, r.gitDiff))
			if err != nil {
				return err
			}
			cands := dispatch.Dedup(outcomes)
			r.checkSyntax(file, h, cands)
			res.Candidates[i] = cands

			status := StatusResolved
			if len(cands) == 0 {
				status = StatusUnresolved
			}
			r.reporter.Emit(Event{File: path, Hunk: i + 1, Hunks: len(hunks), Status: status, Candidates: len(cands)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Query set construction failed or the run was aborted. Hunks
		// without outcomes fall back to their original markers below.
		if !errors.Is(err, context.Canceled) {
			return nil, err
		}
	}

	for _, cands := range res.Candidates {
		if len(cands) > 0 {
			res.Resolved++
		}
	}
	if res.Resolved == 0 {
		// Nothing to change; leave the file alone entirely.
		return res, nil
	}

	out := file.Render(res.Candidates)
	if err := os.WriteFile(path, []byte(out), info.Mode().Perm()); err != nil {
		return nil, fmt.Errorf("resolve: write %s: %w", path, err)
	}
	res.Written = true
	return res, nil
}

// ResolveFiles processes every file, continuing past per-file failures.
// A file's parse error is recorded on its result, never propagated; the
// returned error reports only run-level aborts.
func (r *Resolver) ResolveFiles(ctx context.Context, paths []string) ([]*FileResult, error) {
	results := make([]*FileResult, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := r.ResolveFile(ctx, path)
		if err != nil {
			r.reporter.Emit(Event{File: path, Status: StatusSkipped, Message: err.Error()})
			results = append(results, &FileResult{Path: path, Err: err})
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// checkSyntax marks candidates whose text does not parse when spliced into
// the file. Other hunks are substituted with their ours section so the rest
// of the file is at least plausible source text. Advisory only.
func (r *Resolver) checkSyntax(file *conflict.File, target *conflict.Hunk, cands []conflict.Resolution) {
	if r.checker == nil || !r.checker.Supports(file.Path) {
		return
	}
	for i := range cands {
		if !r.checker.Check(file.Path, []byte(spliceForCheck(file, target, cands[i].Text))) {
			cands[i].SyntaxSuspect = true
		}
	}
}

// spliceForCheck rebuilds the file with the target hunk replaced by text
// and every other hunk replaced by its ours section.
func spliceForCheck(file *conflict.File, target *conflict.Hunk, text string) string {
	var out string
	for _, s := range file.Spans {
		switch h := s.(type) {
		case *conflict.Hunk:
			if h == target {
				out += text
			} else {
				out += h.Ours()
			}
		default:
			out += s.Raw()
		}
	}
	return out
}
