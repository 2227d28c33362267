package qanta

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openqb/qantagen/internal/model"
)

func testRecords() []model.QuestionRecord {
	return []model.QuestionRecord{
		{
			QID:      "packet_Q01",
			Fold:     "guesstrain",
			Answer:   "Nile",
			Category: "Geography",
			Text:     "This river flows north. ||| For 10 points, name it.",
		},
		{
			QID:      "packet_Q02",
			Fold:     "guesstrain",
			Answer:   `William "the Bard" Shakespeare`,
			Category: "Fine_Arts:Literature",
			Text:     "He wrote Hamlet.",
		},
	}
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testRecords()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Question ID,Fold,Answer,Category,Text", lines[0])
	assert.Contains(t, lines[1], "packet_Q01,guesstrain,Nile,Geography")
	// Embedded quotes must survive CSV quoting.
	assert.Contains(t, lines[2], `""the Bard""`)
}

func TestReadCSV_RoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testRecords()))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "packet_Q01", got[0].QID)
	assert.Equal(t, "Nile", got[0].Answer)
	assert.Equal(t, StableID("packet_Q01"), got[0].NumericID)
	require.Len(t, got[0].Sentences, 2)
	assert.Equal(t, 1, got[0].Sentences[0].Index)
	assert.Equal(t, "This river flows north.", got[0].Sentences[0].Text)
	assert.Equal(t, `William "the Bard" Shakespeare`, got[1].Answer)
}

func TestReadCSV_UnderscoreHeader(t *testing.T) {
	t.Parallel()

	in := strings.NewReader("Question_ID,Fold,Answer,Category,Text\nq1,test,ans,Cat,Body.\n")
	got, err := ReadCSV(in)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "q1", got[0].QID)
}

func TestReadCSV_MissingColumn(t *testing.T) {
	t.Parallel()

	in := strings.NewReader("Question ID,Fold,Answer\nq1,test,ans\n")
	_, err := ReadCSV(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "category"`)
}

func TestReadCSV_ReviewPlaceholderFlagged(t *testing.T) {
	t.Parallel()

	in := strings.NewReader("Question ID,Fold,Answer,Category,Text\nq1,test," + model.AnswerNeedsReview + ",Misc,Body.\n")
	got, err := ReadCSV(in)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].NeedsReview)
}

func TestReadCSV_Empty(t *testing.T) {
	t.Parallel()

	got, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMergeCSV_LaterWins(t *testing.T) {
	t.Parallel()

	var first, second bytes.Buffer
	require.NoError(t, WriteCSV(&first, []model.QuestionRecord{
		{QID: "q1", Fold: "test", Answer: "old answer", Category: "Misc", Text: "Body."},
		{QID: "q2", Fold: "test", Answer: "kept", Category: "Misc", Text: "Body."},
	}))
	require.NoError(t, WriteCSV(&second, []model.QuestionRecord{
		{QID: "q1", Fold: "guesstrain", Answer: "new answer", Category: "History", Text: "Body."},
		{QID: "q3", Fold: "test", Answer: "added", Category: "Misc", Text: "Body."},
	}))

	var out bytes.Buffer
	n, err := MergeCSV(&out, &first, &second)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	merged, err := ReadCSV(&out)
	require.NoError(t, err)
	require.Len(t, merged, 3)

	// First-appearance order, later content.
	assert.Equal(t, "q1", merged[0].QID)
	assert.Equal(t, "new answer", merged[0].Answer)
	assert.Equal(t, "guesstrain", merged[0].Fold)
	assert.Equal(t, "q2", merged[1].QID)
	assert.Equal(t, "q3", merged[2].QID)
}
