package matchai

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// cleanJSON strips markdown code fences and surrounding prose the model
// sometimes wraps around its JSON array.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	// Tolerate prose before/after by slicing to the outermost array.
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return text
}

// parseMatches decodes the model response into ItemMatch values, dropping
// entries that reference unknown subject or candidate ids and clamping
// confidence into [0,100].
func parseMatches(text string, req MatchRequest) ([]ItemMatch, error) {
	var raw []ItemMatch
	if err := json.Unmarshal([]byte(cleanJSON(text)), &raw); err != nil {
		return nil, eris.Wrap(err, "matchai: parse response JSON")
	}

	subjects := make(map[string]bool, len(req.SubjectItems))
	for _, it := range req.SubjectItems {
		subjects[it.ID] = true
	}
	candidates := make(map[string]bool, len(req.CandidateItems))
	for _, it := range req.CandidateItems {
		candidates[it.ID] = true
	}

	out := make([]ItemMatch, 0, len(raw))
	for _, m := range raw {
		if !subjects[m.SourceID] {
			zap.L().Warn("matchai: dropping match for unknown subject id", zap.String("source_id", m.SourceID))
			continue
		}
		if m.MatchedID != "" && !candidates[m.MatchedID] {
			zap.L().Warn("matchai: dropping hallucinated candidate id",
				zap.String("source_id", m.SourceID),
				zap.String("matched_id", m.MatchedID),
			)
			continue
		}
		if m.Confidence < 0 {
			m.Confidence = 0
		}
		if m.Confidence > 100 {
			m.Confidence = 100
		}
		if m.MatchType == "" {
			m.MatchType = "ai"
		}
		out = append(out, m)
	}
	return out, nil
}
