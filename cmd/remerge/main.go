// Command remerge resolves git merge conflicts by querying configured model
// endpoints and rewriting conflicted files with candidate resolutions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/remerge-dev/remerge/internal/config"
	"github.com/remerge-dev/remerge/internal/dispatch"
	"github.com/remerge-dev/remerge/internal/gitutil"
	"github.com/remerge-dev/remerge/internal/mcptools"
	"github.com/remerge-dev/remerge/internal/resolve"
	"github.com/remerge-dev/remerge/internal/syntax"
)

// CLI flags parsed from command line.
type cliFlags struct {
	Config   string
	Verbose  bool
	ServeMCP bool
	Version  bool
}

// version is set by goreleaser at build time.
var version = "dev"

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "remerge.yaml"
	}
	return filepath.Join(home, ".config", "remerge.yaml")
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// Endpoint keys are commonly kept in a .env next to the repo.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: loading .env: %v", err)
	}

	var flags cliFlags

	fs := flag.NewFlagSet("remerge", flag.ContinueOnError)
	fs.StringVar(&flags.Config, "config", defaultConfigPath(), "path to the endpoint configuration")
	fs.BoolVar(&flags.Verbose, "verbose", false, "enable verbose output")
	fs.BoolVar(&flags.ServeMCP, "serve-mcp", false, "run as MCP server on stdio")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Println(version)
		return nil
	}

	if fs.Arg(0) == "init" {
		return runInit(fs.Args()[1:])
	}

	cfg, err := config.Load(flags.Config)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.ServeMCP {
		return mcptools.RunStdio(ctx, mcptools.NewServer(cfg))
	}

	return runResolve(ctx, cfg, flags.Verbose)
}

// runResolve drives the default mode: find every conflicted file in the
// current repository, query all endpoints, and rewrite the files.
func runResolve(ctx context.Context, cfg *config.Config, verbose bool) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}

	if err := gitutil.CheckDiff3(ctx, dir); err != nil {
		return err
	}

	paths, err := gitutil.FindConflictedFiles(ctx, dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Println("No conflicted files found.")
		return nil
	}

	var dispOpts []dispatch.Option
	if verbose {
		dispOpts = append(dispOpts, dispatch.WithEventFunc(func(ev dispatch.Event) {
			switch ev.Phase {
			case dispatch.PhaseRetry:
				log.Printf("%s: retrying (attempt %d): %v", ev.Label, ev.Attempts, ev.Err)
			case dispatch.PhaseFailure:
				log.Printf("%s: failed after %d attempt(s): %v", ev.Label, ev.Attempts, ev.Err)
			}
		}))
	}

	disp, err := dispatch.New(cfg.Endpoints, dispOpts...)
	if err != nil {
		return err
	}

	reporter := resolve.NewReporter()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range reporter.Subscribe() {
			fmt.Println(resolve.FormatEvent(ev))
		}
	}()

	opts := []resolve.Option{resolve.WithReporter(reporter)}
	if cfg.SyntaxCheck {
		opts = append(opts, resolve.WithSyntaxCheck(syntax.NewChecker()))
	}
	if hash, err := gitutil.CherryPickCommit(ctx, dir); err == nil && hash != "" {
		diff, err := gitutil.CommitDiff(ctx, dir, hash)
		if err != nil {
			log.Printf("warning: reading cherry-pick diff: %v", err)
		} else {
			opts = append(opts, resolve.WithGitDiff(diff))
		}
	}

	resolver := resolve.New(disp, opts...)
	results, err := resolver.ResolveFiles(ctx, paths)
	reporter.Close()
	<-done
	if err != nil {
		return err
	}

	written := 0
	resolved := 0
	hunks := 0
	for _, r := range results {
		if r.Err != nil {
			log.Printf("warning: %s: %v", r.Path, r.Err)
			continue
		}
		hunks += r.Hunks
		resolved += r.Resolved
		if r.Written {
			written++
		}
	}
	fmt.Printf("Resolved %d of %d conflict(s) in %d file(s).\n", resolved, hunks, written)

	if written > 0 {
		added, err := gitutil.AppendAssistedBy(ctx, dir)
		if err != nil {
			log.Printf("warning: updating merge message: %v", err)
		} else if added && verbose {
			log.Printf("added Assisted-by trailer to merge message")
		}
	}
	return nil
}
