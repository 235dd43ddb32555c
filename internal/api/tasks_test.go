package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renvik/mangarr/internal/normalize"
	"github.com/renvik/mangarr/internal/provider"
)

func testTaskHandler() *TaskHandler {
	return &TaskHandler{opts: Options{
		Weights: normalize.DefaultWeights(),
		Order:   normalize.Ascending,
	}}
}

func TestPrepareChaptersDropsPremiumAndDuplicates(t *testing.T) {
	h := testTaskHandler()

	raw := []provider.Chapter{
		{Number: 2, Label: "2", URL: "https://a/c/2"},
		{Number: 1, Label: "1", URL: "https://a/c/1", Title: "Romance Dawn"},
		{Number: 1, Label: "1", URL: "https://b/c/1"},
		{Number: 3, Label: "3", URL: "https://a/c/3", Premium: true},
	}

	got := h.prepareChapters(raw, nil)

	require.Len(t, got, 2, "premium entries and duplicates never become tasks")
	assert.Equal(t, "1", got[0].Label)
	assert.Equal(t, "Romance Dawn", got[0].Title, "the more complete duplicate wins")
	assert.Equal(t, "2", got[1].Label)
}

func TestPrepareChaptersAppliesLabelSelection(t *testing.T) {
	h := testTaskHandler()

	raw := []provider.Chapter{
		{Number: 1, Label: "1", URL: "https://a/c/1"},
		{Number: 2, Label: "2", URL: "https://a/c/2"},
		{Number: 2.5, Label: "2.5", URL: "https://a/c/2-5"},
	}

	got := h.prepareChapters(raw, []string{"2", "2.5"})
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].Label)
	assert.Equal(t, "2.5", got[1].Label)

	assert.Empty(t, h.prepareChapters(raw, []string{"99"}))
}
