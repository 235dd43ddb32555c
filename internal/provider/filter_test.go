package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chapterList() []Chapter {
	return []Chapter{
		{Number: 1, Label: "1"},
		{Number: 2, Label: "2"},
		{Number: 2.5, Label: "2.5"},
		{Number: 3, Label: "3"},
		{Number: 4, Label: "4"},
	}
}

func TestFilterChaptersByLabel(t *testing.T) {
	out := FilterChapters(chapterList(), "2.5", "", "")
	require.Len(t, out, 1)
	assert.Equal(t, "2.5", out[0].Label)
}

func TestFilterChaptersByIndexFallback(t *testing.T) {
	// "5" is not a label in the list, so 1-based index lookup applies.
	out := FilterChapters(chapterList(), "5", "", "")
	require.Len(t, out, 1)
	assert.Equal(t, "4", out[0].Label)
}

func TestFilterChaptersUnknown(t *testing.T) {
	assert.Empty(t, FilterChapters(chapterList(), "99", "", ""))
}

func TestFilterRange(t *testing.T) {
	out := FilterRange(chapterList(), "2-4")
	require.Len(t, out, 3)
	assert.Equal(t, "2", out[0].Label)
	assert.Equal(t, "3", out[2].Label)

	assert.Nil(t, FilterRange(chapterList(), "4-2"))
	assert.Nil(t, FilterRange(chapterList(), "1-99"))
	assert.Nil(t, FilterRange(chapterList(), "nope"))
}

func TestFilterList(t *testing.T) {
	out := FilterList(chapterList(), "1, 3, 5")
	require.Len(t, out, 3)
	assert.Equal(t, "1", out[0].Label)
	assert.Equal(t, "2.5", out[1].Label)
	assert.Equal(t, "4", out[2].Label)

	// Out-of-range and junk entries are skipped.
	out = FilterList(chapterList(), "2,99,x")
	require.Len(t, out, 1)
	assert.Equal(t, "2", out[0].Label)
}

func TestFilterChaptersEmptySelectorsReturnAll(t *testing.T) {
	assert.Len(t, FilterChapters(chapterList(), "", "", ""), 5)
}

func TestFilterPrecedence(t *testing.T) {
	// A chapter selector wins over range and list.
	out := FilterChapters(chapterList(), "3", "1-2", "4")
	require.Len(t, out, 1)
	assert.Equal(t, "3", out[0].Label)
}
