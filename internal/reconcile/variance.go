package reconcile

import "github.com/trestlehq/bidlevel/internal/model"

// Thresholds holds the variance percentages above which a matched pair is
// flagged. A pair is flagged strictly above the threshold: exactly 20.0%
// does not trigger a quantity discrepancy, 20.01% does.
type Thresholds struct {
	QuantityPct float64 `yaml:"quantity_pct" mapstructure:"quantity_pct"`
	PricePct    float64 `yaml:"price_pct" mapstructure:"price_pct"`
}

// DefaultThresholds returns the stock policy: 20% quantity, 15% price.
func DefaultThresholds() Thresholds {
	return Thresholds{QuantityPct: 20, PricePct: 15}
}

// Pair is one matched (or unmatched) source item prepared for discrepancy
// detection. Base values form the denominator of each variance check (the
// takeoff side, or the subject bid in bid-to-bid mode); Bid values form the
// numerator side. Nil means the side did not report the figure.
type Pair struct {
	SourceID string

	Matched bool

	BaseQuantity *float64
	BaseUnitCost *float64

	BidQuantity *float64
	BidUnitPrice *float64
}

// DetectDiscrepancies classifies each pair. An unmatched pair yields missing.
// A matched pair is checked independently for quantity and price variance,
// so a single pair may carry both. Checks with a zero or absent denominator, or
// an absent numerator, are skipped silently.
func DetectDiscrepancies(pairs []Pair, th Thresholds) []model.Discrepancy {
	var out []model.Discrepancy
	for _, p := range pairs {
		if !p.Matched {
			out = append(out, model.Discrepancy{
				SourceID: p.SourceID,
				Kind:     model.DiscrepancyMissing,
			})
			continue
		}

		if d, ok := variance(p.BidQuantity, p.BaseQuantity); ok && d.pct > th.QuantityPct {
			out = append(out, model.Discrepancy{
				SourceID:    p.SourceID,
				Kind:        model.DiscrepancyQuantity,
				Difference:  d.abs,
				PercentDiff: d.pct,
			})
		}

		if d, ok := variance(p.BidUnitPrice, p.BaseUnitCost); ok && d.pct > th.PricePct {
			out = append(out, model.Discrepancy{
				SourceID:    p.SourceID,
				Kind:        model.DiscrepancyPrice,
				Difference:  d.abs,
				PercentDiff: d.pct,
			})
		}
	}
	return out
}

type varianceResult struct {
	abs float64
	pct float64
}

// variance computes |bid - base| and its percentage of base. Returns false
// when either side is absent or the denominator is zero.
func variance(bid, base *float64) (varianceResult, bool) {
	if bid == nil || base == nil || *base == 0 {
		return varianceResult{}, false
	}
	abs := *bid - *base
	if abs < 0 {
		abs = -abs
	}
	return varianceResult{abs: abs, pct: abs / *base * 100}, true
}
