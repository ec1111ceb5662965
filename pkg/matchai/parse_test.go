package matchai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matchReq() MatchRequest {
	return MatchRequest{
		SubjectItems:   []Item{{ID: "s1"}, {ID: "s2"}},
		CandidateItems: []Item{{ID: "c1"}, {ID: "c2"}},
		Mode:           ModeTakeoff,
	}
}

func TestCleanJSON_Fences(t *testing.T) {
	assert.Equal(t, `[{"a":1}]`, cleanJSON("```json\n[{\"a\":1}]\n```"))
	assert.Equal(t, `[{"a":1}]`, cleanJSON("```\n[{\"a\":1}]\n```"))
	assert.Equal(t, `[{"a":1}]`, cleanJSON(`[{"a":1}]`))
}

func TestCleanJSON_SurroundingProse(t *testing.T) {
	got := cleanJSON(`Here are the matches: [{"a":1}] Let me know if you need more.`)
	assert.Equal(t, `[{"a":1}]`, got)
}

func TestParseMatches_Valid(t *testing.T) {
	text := `[
		{"source_id":"s1","matched_id":"c1","confidence":92,"match_type":"ai","notes":"same scope"},
		{"source_id":"s2","matched_id":"","confidence":0,"match_type":"ai"}
	]`

	got, err := parseMatches(text, matchReq())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].MatchedID)
	assert.Equal(t, 92.0, got[0].Confidence)
	assert.Equal(t, "", got[1].MatchedID)
}

func TestParseMatches_DropsUnknownSubject(t *testing.T) {
	text := `[{"source_id":"ghost","matched_id":"c1","confidence":90}]`

	got, err := parseMatches(text, matchReq())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseMatches_DropsHallucinatedCandidate(t *testing.T) {
	text := `[{"source_id":"s1","matched_id":"c99","confidence":90}]`

	got, err := parseMatches(text, matchReq())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseMatches_ClampsConfidence(t *testing.T) {
	text := `[
		{"source_id":"s1","matched_id":"c1","confidence":150},
		{"source_id":"s2","matched_id":"c2","confidence":-10}
	]`

	got, err := parseMatches(text, matchReq())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 100.0, got[0].Confidence)
	assert.Equal(t, 0.0, got[1].Confidence)
}

func TestParseMatches_DefaultsMatchType(t *testing.T) {
	text := `[{"source_id":"s1","matched_id":"c1","confidence":80}]`

	got, err := parseMatches(text, matchReq())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ai", got[0].MatchType)
}

func TestParseMatches_InvalidJSON(t *testing.T) {
	_, err := parseMatches("not json at all", matchReq())
	assert.Error(t, err)
}
