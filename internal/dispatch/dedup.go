package dispatch

import (
	"sort"

	"github.com/remerge-dev/remerge/internal/conflict"
)

// Dedup groups successful outcomes whose resolved text is byte-identical
// into candidates, ordered by first-seen outcome in static query order.
// Whitespace-only differences are deliberately kept apart; looser
// equivalences belong to benchmark scoring, not to output.
func Dedup(outcomes []Outcome) []conflict.Resolution {
	// Outcomes normally arrive in issue order already; sorting by the
	// static index makes the ordering independent of how the caller
	// collected them.
	sorted := make([]Outcome, len(outcomes))
	copy(sorted, outcomes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	byText := make(map[string]int)
	var candidates []conflict.Resolution
	for _, o := range sorted {
		if !o.Succeeded() {
			continue
		}
		if i, ok := byText[o.Text]; ok {
			candidates[i].Labels = append(candidates[i].Labels, o.Label)
			continue
		}
		byText[o.Text] = len(candidates)
		candidates = append(candidates, conflict.Resolution{
			Text:   o.Text,
			Labels: []string{o.Label},
		})
	}
	return candidates
}
