package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trestlehq/bidlevel/internal/model"
)

func f(v float64) *float64 { return &v }

func TestDetectDiscrepancies_Missing(t *testing.T) {
	pairs := []Pair{{SourceID: "t1", Matched: false, BaseQuantity: f(10)}}

	got := DetectDiscrepancies(pairs, DefaultThresholds())
	require.Len(t, got, 1)
	assert.Equal(t, model.DiscrepancyMissing, got[0].Kind)
	assert.Equal(t, "t1", got[0].SourceID)
	assert.Zero(t, got[0].Difference)
	assert.Zero(t, got[0].PercentDiff)
}

func TestDetectDiscrepancies_QuantityVariance(t *testing.T) {
	// 10 vs 13 is a 30% variance against the base of 10.
	pairs := []Pair{{
		SourceID:     "t1",
		Matched:      true,
		BaseQuantity: f(10),
		BidQuantity:  f(13),
	}}

	got := DetectDiscrepancies(pairs, DefaultThresholds())
	require.Len(t, got, 1)
	assert.Equal(t, model.DiscrepancyQuantity, got[0].Kind)
	assert.InDelta(t, 3.0, got[0].Difference, 1e-9)
	assert.InDelta(t, 30.0, got[0].PercentDiff, 1e-9)
}

func TestDetectDiscrepancies_ThresholdIsStrict(t *testing.T) {
	// Exactly 20% quantity variance does not trigger.
	pairs := []Pair{{
		SourceID:     "t1",
		Matched:      true,
		BaseQuantity: f(100),
		BidQuantity:  f(120),
	}}
	assert.Empty(t, DetectDiscrepancies(pairs, DefaultThresholds()))

	// A hair over does.
	pairs[0].BidQuantity = f(120.01)
	got := DetectDiscrepancies(pairs, DefaultThresholds())
	require.Len(t, got, 1)
	assert.Equal(t, model.DiscrepancyQuantity, got[0].Kind)
}

func TestDetectDiscrepancies_PriceThresholdBoundary(t *testing.T) {
	pairs := []Pair{{
		SourceID:     "t1",
		Matched:      true,
		BaseUnitCost: f(100),
		BidUnitPrice: f(115),
	}}
	assert.Empty(t, DetectDiscrepancies(pairs, DefaultThresholds()))

	pairs[0].BidUnitPrice = f(115.5)
	got := DetectDiscrepancies(pairs, DefaultThresholds())
	require.Len(t, got, 1)
	assert.Equal(t, model.DiscrepancyPrice, got[0].Kind)
}

func TestDetectDiscrepancies_BothChecksIndependent(t *testing.T) {
	pairs := []Pair{{
		SourceID:     "t1",
		Matched:      true,
		BaseQuantity: f(10),
		BidQuantity:  f(15),
		BaseUnitCost: f(50),
		BidUnitPrice: f(60),
	}}

	got := DetectDiscrepancies(pairs, DefaultThresholds())
	require.Len(t, got, 2)
	assert.Equal(t, model.DiscrepancyQuantity, got[0].Kind)
	assert.Equal(t, model.DiscrepancyPrice, got[1].Kind)
}

func TestDetectDiscrepancies_UnderThresholdVariance(t *testing.T) {
	pairs := []Pair{{
		SourceID:     "t1",
		Matched:      true,
		BaseQuantity: f(100),
		BidQuantity:  f(110),
		BaseUnitCost: f(100),
		BidUnitPrice: f(110),
	}}
	assert.Empty(t, DetectDiscrepancies(pairs, DefaultThresholds()))
}

func TestDetectDiscrepancies_ZeroOrAbsentDenominatorSkips(t *testing.T) {
	pairs := []Pair{
		{SourceID: "t1", Matched: true, BaseQuantity: f(0), BidQuantity: f(50)},
		{SourceID: "t2", Matched: true, BidQuantity: f(50)},          // base absent
		{SourceID: "t3", Matched: true, BaseUnitCost: f(100)},        // bid side absent
		{SourceID: "t4", Matched: true, BaseUnitCost: f(0), BidUnitPrice: f(1)},
	}
	assert.Empty(t, DetectDiscrepancies(pairs, DefaultThresholds()))
}

func TestDetectDiscrepancies_NegativeVarianceUsesMagnitude(t *testing.T) {
	// A bid well under the estimate is flagged the same as one well over.
	pairs := []Pair{{
		SourceID:     "t1",
		Matched:      true,
		BaseUnitCost: f(100),
		BidUnitPrice: f(70),
	}}

	got := DetectDiscrepancies(pairs, DefaultThresholds())
	require.Len(t, got, 1)
	assert.InDelta(t, 30.0, got[0].Difference, 1e-9)
	assert.InDelta(t, 30.0, got[0].PercentDiff, 1e-9)
}

func TestDetectDiscrepancies_CustomThresholds(t *testing.T) {
	pairs := []Pair{{
		SourceID:     "t1",
		Matched:      true,
		BaseQuantity: f(100),
		BidQuantity:  f(106),
	}}

	assert.Empty(t, DetectDiscrepancies(pairs, DefaultThresholds()))

	tight := Thresholds{QuantityPct: 5, PricePct: 5}
	got := DetectDiscrepancies(pairs, tight)
	require.Len(t, got, 1)
	assert.Equal(t, model.DiscrepancyQuantity, got[0].Kind)
}
