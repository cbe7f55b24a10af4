package main

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeQuestions builds n distinct questions in the given category.
func makeQuestions(category string, n int) []Question {
	questions := make([]Question, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, Question{
			Text:     fmt.Sprintf("%s question %d?", category, i),
			Choices:  []string{"a", "b", "c"},
			Correct:  i % 3,
			Category: category,
		})
	}
	return questions
}

func testQuestionPool() []Question {
	var pool []Question
	pool = append(pool, makeQuestions("science", 8)...)
	pool = append(pool, makeQuestions("history", 4)...)
	pool = append(pool, makeQuestions("sports", 3)...)
	return pool
}

func uniqueTexts(t *testing.T, questions []Question) map[string]bool {
	t.Helper()

	seen := make(map[string]bool)
	for _, q := range questions {
		require.False(t, seen[q.Text], "duplicate question text: %s", q.Text)
		seen[q.Text] = true
	}
	return seen
}

func TestNewCatalogRejectsInvalidRecords(t *testing.T) {
	catalog, err := newCatalog([]Question{
		{Text: "fine?", Choices: []string{"a", "b"}, Correct: 1, Category: "general"},
		{Text: "", Choices: []string{"a", "b"}, Correct: 0, Category: "general"},
		{Text: "bad correct?", Choices: []string{"a", "b"}, Correct: 5, Category: "general"},
		{Text: "one choice?", Choices: []string{"a"}, Correct: 0, Category: "general"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.Len())

	_, err = newCatalog(nil)
	assert.Error(t, err)
}

func TestCatalogCategories(t *testing.T) {
	catalog, err := newCatalog(testQuestionPool())
	require.NoError(t, err)

	assert.Equal(t, []string{"history", "science", "sports"}, catalog.Categories())
}

func TestSelectDefault(t *testing.T) {
	catalog, err := newCatalog(testQuestionPool())
	require.NoError(t, err)

	selected := catalog.Select(nil, nil, 6)
	require.Len(t, selected, 6)
	uniqueTexts(t, selected)
}

func TestSelectByCategory(t *testing.T) {
	catalog, err := newCatalog(testQuestionPool())
	require.NoError(t, err)

	selected := catalog.Select(nil, []string{"science"}, 6)
	require.Len(t, selected, 6)
	uniqueTexts(t, selected)

	for _, q := range selected {
		assert.Equal(t, "science", q.Category)
	}
}

func TestSelectBackfillsShortCategories(t *testing.T) {
	catalog, err := newCatalog(testQuestionPool())
	require.NoError(t, err)

	// Only 3 sports questions exist, so the rest come from the catalog.
	selected := catalog.Select(nil, []string{"sports"}, 6)
	require.Len(t, selected, 6)
	uniqueTexts(t, selected)

	sports := 0
	for _, q := range selected {
		if q.Category == "sports" {
			sports++
		}
	}
	assert.Equal(t, 3, sports)
}

func TestSelectCustomQuestions(t *testing.T) {
	catalog, err := newCatalog(testQuestionPool())
	require.NoError(t, err)

	custom := makeQuestions("custom", 10)
	selected := catalog.Select(custom, nil, 6)
	require.Len(t, selected, 6)
	uniqueTexts(t, selected)

	for _, q := range selected {
		assert.Equal(t, "custom", q.Category)
	}
}

func TestSelectShortCustomListFallsBack(t *testing.T) {
	catalog, err := newCatalog(testQuestionPool())
	require.NoError(t, err)

	custom := makeQuestions("custom", 3)
	selected := catalog.Select(custom, nil, 6)
	require.Len(t, selected, 6)
	uniqueTexts(t, selected)

	for _, q := range selected {
		assert.NotEqual(t, "custom", q.Category)
	}
}

func TestSelectDeduplicatesByText(t *testing.T) {
	duplicated := append(makeQuestions("science", 6), makeQuestions("science", 6)...)
	catalog, err := newCatalog(duplicated)
	require.NoError(t, err)

	selected := catalog.Select(nil, nil, 6)
	require.Len(t, selected, 6)
	uniqueTexts(t, selected)
}
