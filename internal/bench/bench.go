// Package bench replays a dataset of historical merge conflicts against the
// configured endpoints and scores each model's answers against the known
// human resolution.
package bench

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/remerge-dev/remerge/internal/dispatch"
	"github.com/remerge-dev/remerge/internal/prompt"
)

// Entry is one conflict from the dataset: the inputs that were sent to the
// model at capture time and the resolution the developer actually committed.
type Entry struct {
	Index       int
	Patch       string
	Code        string
	PatchedCode string
	PatchCommit string
	CodeCommit  string
	Filename    string
}

// Result records how one model answered one entry.
type Result struct {
	EntryIndex      int
	Model           string
	Correct         bool
	CorrectAligned  bool
	CorrectStripped bool
	// Duration is the wall-clock time of the query in seconds.
	Duration float64
	// FailedDiff holds a unified diff between the answer and the expected
	// resolution when the answer was not byte-exact. Empty otherwise.
	FailedDiff  string
	Error       bool
	PatchCommit string
	CodeCommit  string
}

// LoadDataset reads a conflict dataset CSV. Each record carries a description
// in column 2 ("codehash / patchhash\nfilename") and the patch, code and
// expected resolution in columns 3 through 5. Short records are skipped.
func LoadDataset(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var entries []Entry
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset: %w", err)
		}
		if first {
			// header row
			first = false
			continue
		}
		if len(record) < 6 {
			continue
		}
		codeCommit, rest, _ := strings.Cut(record[2], " / ")
		patchCommit, filename, _ := strings.Cut(rest, "\n")
		entries = append(entries, Entry{
			Index:       len(entries),
			Patch:       record[3],
			Code:        record[4],
			PatchedCode: record[5],
			PatchCommit: strings.TrimSpace(patchCommit),
			CodeCommit:  strings.TrimSpace(codeCommit) + "^",
			Filename:    strings.TrimSpace(filename),
		})
	}
	return entries, nil
}

// Aligned reports whether two texts match once blank lines are dropped and
// every interior run of whitespace collapses to a single space. Leading
// indentation is preserved, so the comparison is sensitive to the shape of
// the code but not to trailing or in-line spacing.
func Aligned(a, b string) bool {
	return alignKey(a) == alignKey(b)
}

func alignKey(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var sb strings.Builder
		seenNonSpace := false
		pendingSpace := false
		for _, c := range line {
			switch {
			case c == ' ' || c == '\t' || c == '\v' || c == '\f' || c == '\r':
				if !seenNonSpace {
					sb.WriteRune(c)
				} else {
					pendingSpace = true
				}
			default:
				if pendingSpace {
					sb.WriteByte(' ')
					pendingSpace = false
				}
				sb.WriteRune(c)
				seenNonSpace = true
			}
		}
		out = append(out, sb.String())
	}
	return strings.Join(out, "\n")
}

// Stripped reports whether two texts match after all whitespace collapses,
// including newlines and indentation. This is the loosest equality tier.
func Stripped(a, b string) bool {
	return stripKey(a) == stripKey(b)
}

func stripKey(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Score builds a Result for one answer against the expected resolution.
func Score(entry Entry, model, answer string, duration float64) Result {
	res := Result{
		EntryIndex:      entry.Index,
		Model:           model,
		Correct:         answer == entry.PatchedCode,
		CorrectAligned:  Aligned(answer, entry.PatchedCode),
		CorrectStripped: Stripped(answer, entry.PatchedCode),
		Duration:        duration,
		PatchCommit:     entry.PatchCommit,
		CodeCommit:      entry.CodeCommit,
	}
	if !res.Correct {
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(answer),
			B:        difflib.SplitLines(entry.PatchedCode),
			FromFile: "answer",
			ToFile:   "expected",
			Context:  1,
		})
		if err == nil {
			res.FailedDiff = diff
		}
	}
	return res
}

// errorResult marks a query that produced no usable answer.
func errorResult(entry Entry, model string) Result {
	return Result{
		EntryIndex:  entry.Index,
		Model:       model,
		Error:       true,
		PatchCommit: entry.PatchCommit,
		CodeCommit:  entry.CodeCommit,
	}
}

// Stats aggregates per-model results across all scored entries.
type Stats struct {
	Total            int
	Correct          int
	CorrectAligned   int
	CorrectStripped  int
	Errors           int
	Accuracy         float64
	AccuracyAligned  float64
	AccuracyStripped float64
	ErrorRate        float64
	AvgDuration      float64
}

// Summarize folds results into per-model stats.
func Summarize(results []Result) map[string]Stats {
	totals := map[string]*Stats{}
	durations := map[string][]float64{}
	for _, r := range results {
		s := totals[r.Model]
		if s == nil {
			s = &Stats{}
			totals[r.Model] = s
		}
		s.Total++
		if r.Correct {
			s.Correct++
		}
		if r.CorrectAligned {
			s.CorrectAligned++
		}
		if r.CorrectStripped {
			s.CorrectStripped++
		}
		if r.Error {
			s.Errors++
		}
		durations[r.Model] = append(durations[r.Model], r.Duration)
	}

	out := make(map[string]Stats, len(totals))
	for model, s := range totals {
		n := float64(s.Total)
		s.Accuracy = float64(s.Correct) / n
		s.AccuracyAligned = float64(s.CorrectAligned) / n
		s.AccuracyStripped = float64(s.CorrectStripped) / n
		s.ErrorRate = float64(s.Errors) / n
		var sum float64
		for _, d := range durations[model] {
			sum += d
		}
		s.AvgDuration = sum / n
		out[model] = *s
	}
	return out
}

// WriteSummary prints the per-model table, sorted by accuracy descending.
func WriteSummary(w io.Writer, stats map[string]Stats) {
	type row struct {
		model string
		s     Stats
	}
	rows := make([]row, 0, len(stats))
	for model, s := range stats {
		rows = append(rows, row{model, s})
	}
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rows[j].s.Accuracy > rows[j-1].s.Accuracy; j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s: total=%d correct=%d (%.1f%%) aligned=%d (%.1f%%) stripped=%d (%.1f%%) errors=%d (%.1f%%) avg=%.1fs\n",
			r.model, r.s.Total,
			r.s.Correct, r.s.Accuracy*100,
			r.s.CorrectAligned, r.s.AccuracyAligned*100,
			r.s.CorrectStripped, r.s.AccuracyStripped*100,
			r.s.Errors, r.s.ErrorRate*100,
			r.s.AvgDuration)
	}
}

var checkpointHeader = []string{
	"entry_index", "model", "correct", "correct_aligned", "correct_stripped",
	"duration", "failed_diff", "error", "patch_commit", "code_commit",
}

// SaveCheckpoint writes all results to a CSV so an interrupted run can
// resume without re-querying the endpoints.
func SaveCheckpoint(path string, results []Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(checkpointHeader); err != nil {
		return err
	}
	for _, r := range results {
		record := []string{
			strconv.Itoa(r.EntryIndex),
			r.Model,
			strconv.FormatBool(r.Correct),
			strconv.FormatBool(r.CorrectAligned),
			strconv.FormatBool(r.CorrectStripped),
			strconv.FormatFloat(r.Duration, 'f', -1, 64),
			r.FailedDiff,
			strconv.FormatBool(r.Error),
			r.PatchCommit,
			r.CodeCommit,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// LoadCheckpoint reads a previously saved checkpoint. A missing file is not
// an error; it simply means a fresh run.
func LoadCheckpoint(path string) ([]Result, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(checkpointHeader)

	var results []Result
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read checkpoint: %w", err)
		}
		if first {
			first = false
			continue
		}
		idx, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("checkpoint entry index: %w", err)
		}
		duration, err := strconv.ParseFloat(record[5], 64)
		if err != nil {
			return nil, fmt.Errorf("checkpoint duration: %w", err)
		}
		results = append(results, Result{
			EntryIndex:      idx,
			Model:           record[1],
			Correct:         record[2] == "true",
			CorrectAligned:  record[3] == "true",
			CorrectStripped: record[4] == "true",
			Duration:        duration,
			FailedDiff:      record[6],
			Error:           record[7] == "true",
			PatchCommit:     record[8],
			CodeCommit:      record[9],
		})
	}
	return results, nil
}

// Runner drives the replay loop.
type Runner struct {
	disp           *dispatch.Dispatcher
	results        []Result
	done           map[int]bool
	checkpointPath string
	interval       int
	maxEntries     int
	out            io.Writer
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithCheckpoint enables periodic checkpointing every interval entries.
func WithCheckpoint(path string, interval int) RunnerOption {
	return func(r *Runner) {
		r.checkpointPath = path
		r.interval = interval
	}
}

// WithMaxEntries caps how many dataset entries are processed.
func WithMaxEntries(n int) RunnerOption {
	return func(r *Runner) { r.maxEntries = n }
}

// WithOutput sets where progress lines are printed. Defaults to os.Stdout.
func WithOutput(w io.Writer) RunnerOption {
	return func(r *Runner) { r.out = w }
}

// NewRunner builds a Runner. If a checkpoint path is configured and the file
// exists, prior results are loaded and their entries skipped.
func NewRunner(disp *dispatch.Dispatcher, opts ...RunnerOption) (*Runner, error) {
	r := &Runner{
		disp:     disp,
		done:     map[int]bool{},
		interval: 10,
		out:      os.Stdout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.checkpointPath != "" {
		prior, err := LoadCheckpoint(r.checkpointPath)
		if err != nil {
			return nil, err
		}
		r.results = prior
		for _, res := range prior {
			r.done[res.EntryIndex] = true
		}
	}
	return r, nil
}

// Results returns all accumulated results, checkpointed and new.
func (r *Runner) Results() []Result {
	return r.results
}

// Run replays each pending entry through the dispatcher and scores every
// answer. Entries already present in the checkpoint are skipped.
func (r *Runner) Run(ctx context.Context, entries []Entry) error {
	limit := len(entries)
	if r.maxEntries > 0 && r.maxEntries < limit {
		limit = r.maxEntries
	}

	sinceCheckpoint := 0
	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry := entries[i]
		if r.done[entry.Index] {
			continue
		}
		fmt.Fprintf(r.out, "Processing entry %d of %d...\n", i+1, len(entries))

		outcomes, err := r.disp.Dispatch(ctx, prompt.StaticBuilder(entry.Patch, entry.Code))
		if err != nil {
			return err
		}
		for _, o := range outcomes {
			if o.Succeeded() {
				r.results = append(r.results, Score(entry, o.Label, o.Text, o.Duration.Seconds()))
			} else {
				r.results = append(r.results, errorResult(entry, o.Label))
			}
		}
		r.done[entry.Index] = true

		sinceCheckpoint++
		if r.checkpointPath != "" && sinceCheckpoint >= r.interval {
			if err := SaveCheckpoint(r.checkpointPath, r.results); err != nil {
				return err
			}
			sinceCheckpoint = 0
		}
	}

	if r.checkpointPath != "" && sinceCheckpoint > 0 {
		if err := SaveCheckpoint(r.checkpointPath, r.results); err != nil {
			return err
		}
	}
	return nil
}
