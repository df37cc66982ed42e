package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_MarkdownShape(t *testing.T) {
	raw := `## Summary
Participation is healthy with most students posting weekly.

## Positives
- High reply rate on the opening thread
- Three students answered peer questions

## Alerts
- Two students have not posted at all

## Insights
- Discussion quality improved after the instructor's prompt

## Recommended Action
Send a reminder to the two silent students.`

	result, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Participation is healthy with most students posting weekly.", result.Summary)
	assert.Equal(t, []string{
		"High reply rate on the opening thread",
		"Three students answered peer questions",
	}, result.Positives)
	assert.Equal(t, []string{"Two students have not posted at all"}, result.Alerts)
	assert.Equal(t, []string{"Discussion quality improved after the instructor's prompt"}, result.Insights)
	assert.Equal(t, "Send a reminder to the two silent students.", result.RecommendedAction)
}

func TestParse_MarkdownSectionAliases(t *testing.T) {
	raw := `# Summary
Quiet week overall.
# Strengths
- Assignment completion stayed high
# Concerns
- Forum went silent after Tuesday
# Observations
- Most activity happens on weekends
# Recommended Next Step
Post a mid-week discussion prompt.`

	result, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Quiet week overall.", result.Summary)
	assert.Equal(t, []string{"Assignment completion stayed high"}, result.Positives)
	assert.Equal(t, []string{"Forum went silent after Tuesday"}, result.Alerts)
	assert.Equal(t, []string{"Most activity happens on weekends"}, result.Insights)
	assert.Equal(t, "Post a mid-week discussion prompt.", result.RecommendedAction)
}

func TestParse_LegacyJSONShape(t *testing.T) {
	raw := `{
		"summary": "Strong engagement this cycle.",
		"positives": ["All students submitted on time"],
		"alerts": [],
		"insights": ["Peer feedback threads drive most posts"],
		"recommended_action": "Highlight the best peer feedback in class."
	}`

	result, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Strong engagement this cycle.", result.Summary)
	assert.Equal(t, []string{"All students submitted on time"}, result.Positives)
	assert.Empty(t, result.Alerts)
	assert.Equal(t, "Highlight the best peer feedback in class.", result.RecommendedAction)
}

func TestParse_LegacyJSONRecommendationKey(t *testing.T) {
	raw := `{"summary": "ok", "recommendation": "Check in with the class."}`

	result, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Check in with the class.", result.RecommendedAction)
}

func TestParse_CodeFencedJSON(t *testing.T) {
	raw := "```json\n{\"summary\": \"Fenced but valid.\"}\n```"

	result, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Fenced but valid.", result.Summary)
}

func TestParse_CapsListsAtThree(t *testing.T) {
	raw := `{
		"summary": "busy",
		"positives": ["a", "b", "c", "d", "e"],
		"alerts": ["1", "2", "3", "4"],
		"insights": ["x", "y", "z", "w"]
	}`

	result, err := Parse(raw)
	require.NoError(t, err)
	assert.Len(t, result.Positives, 3)
	assert.Len(t, result.Alerts, 3)
	assert.Len(t, result.Insights, 3)
}

func TestParse_EmptyResponse(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\n"} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrUnparseable)
	}
}

func TestParse_NoSummaryIsFailure(t *testing.T) {
	_, err := Parse("## Positives\n- something good")
	assert.ErrorIs(t, err, ErrUnparseable)

	_, err = Parse(`{"positives": ["good"]}`)
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestParse_NumberedBullets(t *testing.T) {
	raw := `## Summary
fine
## Insights
1. First insight
2. Second insight`

	result, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"First insight", "Second insight"}, result.Insights)
}

func TestStripBullet(t *testing.T) {
	assert.Equal(t, "item", stripBullet("- item"))
	assert.Equal(t, "item", stripBullet("* item"))
	assert.Equal(t, "item", stripBullet("1. item"))
	assert.Equal(t, "plain", stripBullet("plain"))
}
