// Package matchai provides the AI-assisted line-item matching client used by
// the reconciliation engine. The concrete implementation is backed by Claude;
// the engine depends only on the Client interface and degrades to heuristic
// matching when the service is unavailable.
package matchai

import "context"

// Mode mirrors the reconciliation comparison mode on the wire.
type Mode string

const (
	ModeTakeoff Mode = "takeoff"
	ModeBids    Mode = "bid-to-bid"
)

// Item is one line item sent to the matching service, from either side of
// the comparison. Nil numeric fields mean the figure was not reported.
type Item struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Category    string   `json:"category,omitempty"`
	Quantity    *float64 `json:"quantity,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	UnitCost    *float64 `json:"unit_cost,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
}

// MatchRequest asks the service to pair each subject item with at most one
// candidate item.
type MatchRequest struct {
	SubjectItems   []Item
	CandidateItems []Item
	Mode           Mode
}

// ItemMatch is one scored pairing from the service. MatchedID is empty when
// the service found no counterpart. Variance percentages are precomputed by
// the service and may be absent.
type ItemMatch struct {
	SourceID            string   `json:"source_id"`
	MatchedID           string   `json:"matched_id"`
	Confidence          float64  `json:"confidence"` // 0-100
	MatchType           string   `json:"match_type"`
	Notes               string   `json:"notes,omitempty"`
	QuantityVariancePct *float64 `json:"quantity_variance_pct,omitempty"`
	PriceVariancePct    *float64 `json:"price_variance_pct,omitempty"`
}

// Client defines the matching service operations used by the engine. A call
// may return matches for only a subset of subject items; callers fall back
// per item, not per batch.
type Client interface {
	MatchItems(ctx context.Context, req MatchRequest) ([]ItemMatch, error)
}
