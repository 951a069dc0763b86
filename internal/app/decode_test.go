package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodePlanValid(t *testing.T) {
	goal, queries, err := DecodePlan(`{"goal": "Map the current state of the field", "queries": ["a", "b", "c", "d", "e"]}`)
	require.NoError(t, err)
	require.Equal(t, "Map the current state of the field", goal)
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, queries)
}

func TestDecodePlanStripsMarkdownFence(t *testing.T) {
	raw := "```json\n{\"goal\": \"g\", \"queries\": [\"one\"]}\n```"
	goal, queries, err := DecodePlan(raw)
	require.NoError(t, err)
	require.Equal(t, "g", goal)
	require.Equal(t, []string{"one"}, queries)
}

func TestDecodePlanTrimsFields(t *testing.T) {
	goal, queries, err := DecodePlan(`{"goal": "  spaced goal  ", "queries": ["  q1  "]}`)
	require.NoError(t, err)
	require.Equal(t, "spaced goal", goal)
	require.Equal(t, []string{"q1"}, queries)
}

func TestDecodePlanRejectsProse(t *testing.T) {
	_, _, err := DecodePlan("Here is my plan: search the web for everything.")
	require.ErrorIs(t, err, ErrMalformedPlan)
}

func TestDecodePlanRejectsMissingGoal(t *testing.T) {
	_, _, err := DecodePlan(`{"goal": "   ", "queries": ["a"]}`)
	require.ErrorIs(t, err, ErrMalformedPlan)
}

func TestDecodePlanRejectsEmptyQueries(t *testing.T) {
	_, _, err := DecodePlan(`{"goal": "g", "queries": []}`)
	require.ErrorIs(t, err, ErrMalformedPlan)
}

func TestDecodePlanRejectsBlankQuery(t *testing.T) {
	_, _, err := DecodePlan(`{"goal": "g", "queries": ["a", "   ", "c"]}`)
	require.ErrorIs(t, err, ErrMalformedPlan)
}

func TestDecodeQueryListValid(t *testing.T) {
	queries, err := DecodeQueryList(`["x1", "x2", "x3", "x4", "x5"]`)
	require.NoError(t, err)
	require.Len(t, queries, 5)
}

func TestDecodeQueryListAcceptsShorterList(t *testing.T) {
	// Regenerated sets are not pinned to five entries.
	queries, err := DecodeQueryList(`["x1", "x2", "x3"]`)
	require.NoError(t, err)
	require.Equal(t, []string{"x1", "x2", "x3"}, queries)
}

func TestDecodeQueryListStripsMarkdownFence(t *testing.T) {
	queries, err := DecodeQueryList("```\n[\"only one\"]\n```")
	require.NoError(t, err)
	require.Equal(t, []string{"only one"}, queries)
}

func TestDecodeQueryListRejectsObject(t *testing.T) {
	_, err := DecodeQueryList(`{"queries": ["a"]}`)
	require.ErrorIs(t, err, ErrMalformedQueryList)
}

func TestDecodeQueryListRejectsNonStringEntries(t *testing.T) {
	_, err := DecodeQueryList(`["a", 2, "c"]`)
	require.ErrorIs(t, err, ErrMalformedQueryList)
}

func TestDecodeQueryListRejectsEmpty(t *testing.T) {
	_, err := DecodeQueryList(`[]`)
	require.ErrorIs(t, err, ErrMalformedQueryList)
}

func TestDecodeQueryListRejectsBlankEntry(t *testing.T) {
	_, err := DecodeQueryList(`["a", "   "]`)
	require.ErrorIs(t, err, ErrMalformedQueryList)
}

func TestParseQuestionListKeepsNumberingAndDropsBlanks(t *testing.T) {
	raw := "1. What scope?\n\n  2. Which audience?  \r\n3. How deep?\n\n"
	got := ParseQuestionList(raw)
	require.Equal(t, []string{"1. What scope?", "2. Which audience?", "3. How deep?"}, got)
}

func TestParseQuestionListEmptyReply(t *testing.T) {
	require.Empty(t, ParseQuestionList("\n  \n\t\n"))
}
