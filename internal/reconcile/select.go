// Package reconcile implements the bid reconciliation engine: candidate
// selection, matching, discrepancy detection, metrics aggregation, and
// result caching.
package reconcile

import (
	"github.com/trestlehq/bidlevel/internal/model"
	"github.com/trestlehq/bidlevel/internal/trade"
)

// FilterTakeoffItems returns the takeoff items comparable to the subject bid:
// those whose trade category normalizes equal to the bid's derived trade.
// When the bid's trade is unknown the result is empty; an unfiltered
// superset is never a valid fallback.
func FilterTakeoffItems(items []model.TakeoffItem, bid model.Bid) []model.TakeoffItem {
	t := trade.Derive(bid)
	if t == trade.Unknown {
		return nil
	}
	var out []model.TakeoffItem
	for _, it := range items {
		if trade.NormalizeCategory(it.TradeCategory()) == t {
			out = append(out, it)
		}
	}
	return out
}

// FilterSiblingBids returns the other bids on the job whose derived trade
// matches the subject's, for bid-to-bid comparison. The subject itself is
// excluded, as is everything when the subject's trade is unknown.
func FilterSiblingBids(bids []model.Bid, bid model.Bid) []model.Bid {
	t := trade.Derive(bid)
	if t == trade.Unknown {
		return nil
	}
	var out []model.Bid
	for _, b := range bids {
		if b.ID == bid.ID {
			continue
		}
		if trade.Derive(b) == t {
			out = append(out, b)
		}
	}
	return out
}
