// Command remerge-bench replays a dataset of historical merge conflicts
// against the configured endpoints and reports per-model accuracy.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/remerge-dev/remerge/internal/bench"
	"github.com/remerge-dev/remerge/internal/config"
	"github.com/remerge-dev/remerge/internal/dispatch"
)

type cliFlags struct {
	Config             string
	Dataset            string
	Checkpoint         string
	CheckpointInterval int
	MaxEntries         int
	StatsOnly          bool
	Verbose            bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: loading .env: %v", err)
	}

	var flags cliFlags

	fs := flag.NewFlagSet("remerge-bench", flag.ContinueOnError)
	fs.StringVar(&flags.Config, "config", "", "path to the endpoint configuration")
	fs.StringVar(&flags.Dataset, "dataset", "", "path to the conflict dataset CSV")
	fs.StringVar(&flags.Checkpoint, "checkpoint", "bench-checkpoint.csv", "path to the checkpoint CSV")
	fs.IntVar(&flags.CheckpointInterval, "checkpoint-interval", 10, "save the checkpoint every N entries")
	fs.IntVar(&flags.MaxEntries, "max-entries", 0, "process at most N entries (0 = all)")
	fs.BoolVar(&flags.StatsOnly, "stats", false, "print stats from the checkpoint and exit")
	fs.BoolVar(&flags.Verbose, "verbose", false, "enable verbose output")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.StatsOnly {
		results, err := bench.LoadCheckpoint(flags.Checkpoint)
		if err != nil {
			return err
		}
		bench.WriteSummary(os.Stdout, bench.Summarize(results))
		return nil
	}

	if flags.Config == "" {
		return fmt.Errorf("-config is required")
	}
	if flags.Dataset == "" {
		return fmt.Errorf("-dataset is required")
	}

	cfg, err := config.Load(flags.Config)
	if err != nil {
		return err
	}

	entries, err := bench.LoadDataset(flags.Dataset)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d entries from %s\n", len(entries), flags.Dataset)

	var dispOpts []dispatch.Option
	if flags.Verbose {
		dispOpts = append(dispOpts, dispatch.WithEventFunc(func(ev dispatch.Event) {
			if ev.Phase == dispatch.PhaseRetry || ev.Phase == dispatch.PhaseFailure {
				log.Printf("%s: %s: %v", ev.Label, ev.Phase, ev.Err)
			}
		}))
	}

	disp, err := dispatch.New(cfg.Endpoints, dispOpts...)
	if err != nil {
		return err
	}

	runnerOpts := []bench.RunnerOption{
		bench.WithCheckpoint(flags.Checkpoint, flags.CheckpointInterval),
	}
	if flags.MaxEntries > 0 {
		runnerOpts = append(runnerOpts, bench.WithMaxEntries(flags.MaxEntries))
	}

	runner, err := bench.NewRunner(disp, runnerOpts...)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d existing results from checkpoint\n", len(runner.Results()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runner.Run(ctx, entries); err != nil {
		// Keep partial results visible even when interrupted.
		bench.WriteSummary(os.Stdout, bench.Summarize(runner.Results()))
		return err
	}

	bench.WriteSummary(os.Stdout, bench.Summarize(runner.Results()))
	return nil
}
