package model

import "time"

// ComparisonMode selects what a subject bid is reconciled against.
type ComparisonMode string

const (
	// ModeTakeoff compares the bid against the job's takeoff estimate.
	ModeTakeoff ComparisonMode = "takeoff"
	// ModeBids compares the bid against sibling bids in the same trade.
	ModeBids ComparisonMode = "bids"
)

// Valid reports whether m is a known comparison mode.
func (m ComparisonMode) Valid() bool {
	return m == ModeTakeoff || m == ModeBids
}

// MatchType tags how a match was produced.
type MatchType string

const (
	MatchTypeExact MatchType = "exact"
	MatchTypeFuzzy MatchType = "fuzzy"
	MatchTypeAI    MatchType = "ai"
	MatchTypeNone  MatchType = "none"
)

// MatchResult pairs a source item with at most one counterpart. MatchedID is
// empty when no counterpart was found; Confidence is 0-100. Variance fields
// are precomputed by the AI matching service when it produced the match.
type MatchResult struct {
	SourceID           string    `json:"source_id"`
	MatchedID          string    `json:"matched_id,omitempty"`
	Confidence         float64   `json:"confidence"`
	Type               MatchType `json:"match_type"`
	Notes              string    `json:"notes,omitempty"`
	QuantityVariancePct *float64 `json:"quantity_variance_pct,omitempty"`
	PriceVariancePct    *float64 `json:"price_variance_pct,omitempty"`
}

// Matched reports whether a counterpart was found.
func (m MatchResult) Matched() bool {
	return m.MatchedID != ""
}

// DiscrepancyKind classifies a flagged matched/unmatched pair.
type DiscrepancyKind string

const (
	DiscrepancyMissing  DiscrepancyKind = "missing"
	DiscrepancyQuantity DiscrepancyKind = "quantity"
	DiscrepancyPrice    DiscrepancyKind = "price"
)

// Discrepancy tags a source item with a variance classification. Difference
// and PercentDiff are zero for missing items, where no counterpart exists to
// diff against.
type Discrepancy struct {
	SourceID    string          `json:"source_id"`
	Kind        DiscrepancyKind `json:"kind"`
	Difference  float64         `json:"difference,omitempty"`   // absolute
	PercentDiff float64         `json:"percent_diff,omitempty"` // of the baseline value
}

// Summary holds the aggregated display metrics for one reconciliation run.
type Summary struct {
	TakeoffTotal     float64 `json:"takeoff_total"`
	BidTotal         float64 `json:"bid_total"`
	SelectedCount    int     `json:"selected_count"`
	MatchedCount     int     `json:"matched_count"`
	MatchPercentage  int     `json:"match_percentage"`
	DiscrepancyCount int     `json:"discrepancy_count"`
}

// CacheEntry is the stored value for one reconciliation key. Entries are
// overwritten on refresh and never independently expired; staleness is the
// caller's responsibility.
type CacheEntry struct {
	Matches       []MatchResult `json:"matches"`
	Discrepancies []Discrepancy `json:"discrepancies"`
	Summary       Summary       `json:"summary"`
	Advisory      string        `json:"advisory,omitempty"` // non-fatal degradation note
	ComputedAt    time.Time     `json:"computed_at"`
}

// ReconcileResult is what the engine returns to callers: the cache entry
// plus whether it was served from cache.
type ReconcileResult struct {
	BidID  string         `json:"bid_id"`
	JobID  string         `json:"job_id"`
	Mode   ComparisonMode `json:"mode"`
	Cached bool           `json:"cached"`
	CacheEntry
}
