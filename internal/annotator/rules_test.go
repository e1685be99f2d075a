package annotator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeIndependentRules(t *testing.T) {
	got := Analyze("Part was missing and bolt was loose")

	assert.Equal(t, []string{
		"Component may have been missed during picking or packing.",
		"Improper tightening or missing fasteners during assembly.",
	}, got.Causes)
	assert.Equal(t, []string{
		"Review packaging checklist and train staff on common oversight areas.",
		"Review torque settings and ensure proper assembly verification steps.",
	}, got.Suggestions)
}

func TestAnalyzeFallback(t *testing.T) {
	got := Analyze("everything fine")
	assert.Equal(t, []string{FallbackCause}, got.Causes)
	assert.Equal(t, []string{FallbackSuggestion}, got.Suggestions)
}

func TestAnalyzeSingleRules(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		cause string
	}{
		{"not included", "Manual NOT INCLUDED in box", "Component may have been missed during picking or packing."},
		{"wobbly", "Seat feels wobbly", "Improper tightening or missing fasteners during assembly."},
		{"slipping", "belt keeps slipping", "Improper tightening or missing fasteners during assembly."},
		{"bent", "Frame arrived Bent", "Likely shipping damage or weak protective materials."},
		{"damaged", "damaged corner", "Likely shipping damage or weak protective materials."},
		{"substring", "suspected wrongdoing", "Incorrect item picked from inventory or mislabeled part."},
		{"incorrect", "Incorrect handle shipped", "Incorrect item picked from inventory or mislabeled part."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze(tt.text)
			require.Len(t, got.Causes, 1)
			require.Len(t, got.Suggestions, 1)
			assert.Equal(t, tt.cause, got.Causes[0])
		})
	}
}

func TestAnalyzeAllRulesInOrder(t *testing.T) {
	got := Analyze("wrong part, bent tube, loose screw, missing cap")
	require.Len(t, got.Causes, 4)
	for i, r := range Rules() {
		assert.Equal(t, r.Cause, got.Causes[i])
		assert.Equal(t, r.Suggestion, got.Suggestions[i])
	}
}

func TestAnalyzeEmptyText(t *testing.T) {
	got := Analyze("")
	assert.Equal(t, []string{FallbackCause}, got.Causes)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, []string{"missing", "incorrect"}, Classify("Missing bolt, wrong label"))
	assert.Empty(t, Classify("all good"))
}

func TestRulesReturnsCopy(t *testing.T) {
	r := Rules()
	r[0].Cause = "changed"
	assert.NotEqual(t, "changed", Rules()[0].Cause)
}

func TestAnalyzeConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := New().Analyze("loose and damaged")
			assert.Len(t, got.Causes, 2)
		}()
	}
	wg.Wait()
}
