package reconcile

import (
	"strings"

	"github.com/trestlehq/bidlevel/internal/model"
	"github.com/trestlehq/bidlevel/internal/trade"
)

// Candidate is a match target: an item id and its description.
type Candidate struct {
	ID          string
	Description string
}

// heuristicConfidence is the fixed score assigned to substring matches. The
// heuristic has no similarity scoring, so all its matches carry the same
// confidence.
const heuristicConfidence = 60

// HeuristicMatch finds the first candidate whose normalized description
// contains the source description, or is contained by it. This is a
// deliberately crude bidirectional substring test used as a fallback when no
// AI match exists for an item; ties break by candidate order, first match
// wins. An exact normalized equality is tagged MatchTypeExact, containment
// MatchTypeFuzzy, and no match MatchTypeNone with an empty MatchedID.
func HeuristicMatch(sourceID, sourceDesc string, candidates []Candidate) model.MatchResult {
	src := trade.NormalizeText(sourceDesc)
	if src == "" {
		return model.MatchResult{SourceID: sourceID, Type: model.MatchTypeNone}
	}
	for _, c := range candidates {
		cand := trade.NormalizeText(c.Description)
		if cand == "" {
			continue
		}
		if src == cand {
			return model.MatchResult{
				SourceID:   sourceID,
				MatchedID:  c.ID,
				Confidence: 100,
				Type:       model.MatchTypeExact,
			}
		}
		if strings.Contains(cand, src) || strings.Contains(src, cand) {
			return model.MatchResult{
				SourceID:   sourceID,
				MatchedID:  c.ID,
				Confidence: heuristicConfidence,
				Type:       model.MatchTypeFuzzy,
			}
		}
	}
	return model.MatchResult{SourceID: sourceID, Type: model.MatchTypeNone}
}

// lineItemCandidates converts bid line items into match candidates,
// preserving order.
func lineItemCandidates(items []model.BidLineItem) []Candidate {
	out := make([]Candidate, 0, len(items))
	for _, li := range items {
		out = append(out, Candidate{ID: li.ID, Description: li.Description})
	}
	return out
}

// takeoffCandidates converts takeoff items into match candidates.
func takeoffCandidates(items []model.TakeoffItem) []Candidate {
	out := make([]Candidate, 0, len(items))
	for _, it := range items {
		out = append(out, Candidate{ID: it.ID, Description: it.Description})
	}
	return out
}
