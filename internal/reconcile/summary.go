package reconcile

import (
	"math"

	"github.com/trestlehq/bidlevel/internal/model"
)

// TakeoffTotal sums quantity times unit cost over the selected takeoff
// subset, treating missing unit costs as zero.
func TakeoffTotal(selected []model.TakeoffItem) float64 {
	var total float64
	for _, it := range selected {
		total += it.ExtendedCost()
	}
	return total
}

// Summarize reduces match and discrepancy results into display metrics.
// matches must cover exactly the selected source set the caller has checked
// on; selection is the caller's state and is passed explicitly, never
// inferred. bidTotal is the subject bid's full line-item total, unfiltered
// by selection.
func Summarize(takeoffTotal, bidTotal float64, matches []model.MatchResult, discrepancies []model.Discrepancy) model.Summary {
	matched := 0
	for _, m := range matches {
		if m.Matched() {
			matched++
		}
	}

	selected := len(matches)
	pct := 0
	if selected > 0 {
		pct = int(math.Round(float64(matched) / float64(selected) * 100))
	}

	return model.Summary{
		TakeoffTotal:     takeoffTotal,
		BidTotal:         bidTotal,
		SelectedCount:    selected,
		MatchedCount:     matched,
		MatchPercentage:  pct,
		DiscrepancyCount: len(discrepancies),
	}
}
