package mcptools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/remerge-dev/remerge/internal/config"
	"github.com/remerge-dev/remerge/internal/conflict"
	"github.com/remerge-dev/remerge/internal/dispatch"
	"github.com/remerge-dev/remerge/internal/gitutil"
	"github.com/remerge-dev/remerge/internal/resolve"
	"github.com/remerge-dev/remerge/internal/syntax"
)

// ResolveService handles MCP tool calls. It holds the endpoint configuration
// and builds a fresh resolver per call so each invocation sees the current
// repository state.
type ResolveService struct {
	cfg *config.Config
}

// NewResolveService creates a ResolveService with the given configuration.
func NewResolveService(cfg *config.Config) *ResolveService {
	return &ResolveService{cfg: cfg}
}

func repoDir(input string) (string, error) {
	if input == "" {
		return os.Getwd()
	}
	info, err := os.Stat(input)
	if err != nil {
		return "", fmt.Errorf("cannot access repoPath: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("repoPath is not a directory: %s", input)
	}
	return input, nil
}

// ScanConflicts lists every file with unresolved conflict markers and how
// many conflict hunks each one contains.
func (s *ResolveService) ScanConflicts(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ScanConflictsInput,
) (*mcp.CallToolResult, ScanConflictsOutput, error) {
	dir, err := repoDir(input.RepoPath)
	if err != nil {
		return nil, ScanConflictsOutput{}, err
	}

	paths, err := gitutil.FindConflictedFiles(ctx, dir)
	if err != nil {
		return nil, ScanConflictsOutput{}, err
	}

	out := ScanConflictsOutput{Files: []ConflictedFile{}}
	for _, p := range paths {
		full := filepath.Join(dir, p)
		data, err := os.ReadFile(full)
		if err != nil {
			return nil, ScanConflictsOutput{}, fmt.Errorf("read %s: %w", p, err)
		}
		file, err := conflict.Parse(full, string(data))
		if err != nil {
			// Unparseable markers still count as a conflicted file.
			out.Files = append(out.Files, ConflictedFile{Path: p})
			continue
		}
		out.Files = append(out.Files, ConflictedFile{Path: p, Hunks: len(file.Hunks())})
	}
	return nil, out, nil
}

// ResolveConflicts queries the configured endpoints for every conflict hunk
// in the requested files and rewrites the files with candidate resolutions.
func (s *ResolveService) ResolveConflicts(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ResolveConflictsInput,
) (*mcp.CallToolResult, ResolveConflictsOutput, error) {
	dir, err := repoDir(input.RepoPath)
	if err != nil {
		return nil, ResolveConflictsOutput{}, err
	}

	paths := input.Paths
	if len(paths) == 0 {
		paths, err = gitutil.FindConflictedFiles(ctx, dir)
		if err != nil {
			return nil, ResolveConflictsOutput{}, err
		}
	}
	if len(paths) == 0 {
		return nil, ResolveConflictsOutput{Message: "no conflicted files found"}, nil
	}

	disp, err := dispatch.New(s.cfg.Endpoints)
	if err != nil {
		return nil, ResolveConflictsOutput{}, err
	}

	opts := []resolve.Option{}
	if s.cfg.SyntaxCheck {
		opts = append(opts, resolve.WithSyntaxCheck(syntax.NewChecker()))
	}
	if hash, err := gitutil.CherryPickCommit(ctx, dir); err == nil && hash != "" {
		if diff, err := gitutil.CommitDiff(ctx, dir, hash); err == nil {
			opts = append(opts, resolve.WithGitDiff(diff))
		}
	}
	resolver := resolve.New(disp, opts...)

	full := make([]string, len(paths))
	for i, p := range paths {
		if filepath.IsAbs(p) {
			full[i] = p
		} else {
			full[i] = filepath.Join(dir, p)
		}
	}

	results, err := resolver.ResolveFiles(ctx, full)
	if err != nil {
		return nil, ResolveConflictsOutput{}, err
	}

	out := ResolveConflictsOutput{Files: make([]ResolvedFile, 0, len(results))}
	resolved := 0
	for i, r := range results {
		rf := ResolvedFile{
			Path:     paths[i],
			Hunks:    r.Hunks,
			Resolved: r.Resolved,
			Written:  r.Written,
		}
		if r.Err != nil {
			rf.Error = r.Err.Error()
		}
		resolved += r.Resolved
		out.Files = append(out.Files, rf)
	}
	out.Message = fmt.Sprintf("resolved %d hunk(s) across %d file(s)", resolved, len(results))
	return nil, out, nil
}
