package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trestlehq/bidlevel/internal/model"
)

func TestTakeoffTotal(t *testing.T) {
	items := []model.TakeoffItem{
		{Quantity: 10, UnitCost: f(5)},
		{Quantity: 3, UnitCost: f(100)},
		{Quantity: 7}, // no unit cost counts as zero
	}
	assert.InDelta(t, 350.0, TakeoffTotal(items), 1e-9)
}

func TestSummarize_CountsAndPercentage(t *testing.T) {
	matches := []model.MatchResult{
		{SourceID: "t1", MatchedID: "c1"},
		{SourceID: "t2", MatchedID: "c2"},
		{SourceID: "t3"},
	}
	discrepancies := []model.Discrepancy{{SourceID: "t3", Kind: model.DiscrepancyMissing}}

	s := Summarize(1000, 1100, matches, discrepancies)
	assert.Equal(t, 3, s.SelectedCount)
	assert.Equal(t, 2, s.MatchedCount)
	assert.Equal(t, 67, s.MatchPercentage) // 2/3 rounds to 67
	assert.Equal(t, 1, s.DiscrepancyCount)
	assert.Equal(t, 1000.0, s.TakeoffTotal)
	assert.Equal(t, 1100.0, s.BidTotal)
}

func TestSummarize_EmptySelection(t *testing.T) {
	s := Summarize(0, 0, nil, nil)
	assert.Equal(t, 0, s.SelectedCount)
	assert.Equal(t, 0, s.MatchPercentage) // not NaN, not a division error
}

func TestSummarize_AllMatched(t *testing.T) {
	matches := []model.MatchResult{
		{SourceID: "t1", MatchedID: "c1"},
		{SourceID: "t2", MatchedID: "c2"},
	}
	s := Summarize(0, 0, matches, nil)
	assert.Equal(t, 100, s.MatchPercentage)
}

func TestSummarize_RoundsHalfUp(t *testing.T) {
	// 1 of 8 matched is 12.5%, rounds to 13.
	matches := []model.MatchResult{
		{SourceID: "t1", MatchedID: "c1"},
		{SourceID: "t2"}, {SourceID: "t3"}, {SourceID: "t4"},
		{SourceID: "t5"}, {SourceID: "t6"}, {SourceID: "t7"}, {SourceID: "t8"},
	}
	s := Summarize(0, 0, matches, nil)
	assert.Equal(t, 13, s.MatchPercentage)
}
