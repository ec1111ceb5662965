package matchai

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
)

// DefaultModel is the Claude model used when none is configured.
const DefaultModel = "claude-sonnet-4-5-20250929"

// maxTokensPerItem sizes the response budget; each pairing is a small JSON
// object and 120 tokens leaves room for notes.
const maxTokensPerItem = 120

const minMaxTokens = 1024

// systemPrompt instructs the model to act as a construction estimator pairing
// line items across documents.
const systemPrompt = `You are a senior construction estimator reconciling bid line items.

You are given two lists of line items: SUBJECT items and CANDIDATE items. For every subject item, find the candidate item that describes the same scope of work, if any. Items may use different wording, abbreviations, units, or grouping for the same scope.

Rules:
- Return valid JSON only: an array of objects, one per subject item, in subject order
- Each object: {"source_id": "<subject id>", "matched_id": "<candidate id or empty string>", "confidence": <0-100>, "match_type": "exact"|"fuzzy"|"ai", "notes": "<brief reason>", "quantity_variance_pct": <number or null>, "price_variance_pct": <number or null>}
- matched_id must be an id from the candidate list, or "" when nothing matches
- Match a candidate to at most one subject item
- confidence reflects how certain you are the two items cover the same scope
- quantity_variance_pct and price_variance_pct are |subject - candidate| as a percentage of the subject value; null when either side lacks the figure
- Do not invent items and do not wrap the array in any other structure`

// buildUserPrompt renders the two item lists as JSON for the model.
func buildUserPrompt(req MatchRequest) (string, error) {
	subjects, err := json.Marshal(req.SubjectItems)
	if err != nil {
		return "", eris.Wrap(err, "matchai: marshal subject items")
	}
	candidates, err := json.Marshal(req.CandidateItems)
	if err != nil {
		return "", eris.Wrap(err, "matchai: marshal candidate items")
	}

	return fmt.Sprintf(`Comparison mode: %s

SUBJECT items:
%s

CANDIDATE items:
%s

Pair each subject item with its best candidate. Return the JSON array.`,
		req.Mode, subjects, candidates), nil
}

// maxTokensFor sizes the response token budget by subject count.
func maxTokensFor(subjectCount int) int64 {
	tokens := int64(subjectCount * maxTokensPerItem)
	if tokens < minMaxTokens {
		tokens = minMaxTokens
	}
	return tokens
}
