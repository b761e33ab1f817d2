package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeSegment(t *testing.T) {
	tests := map[string]string{
		"HW1":              "HW1",
		"HW_1":             "HW_1",
		"Linear Algebra 2": "Linear%20Algebra%202",
		"a/b":              "a%2Fb",
		`a\b`:              "a%5Cb",
		"50%":              "50%25",
		"":                 "%",
		".":                "%2E",
		"..":               "%2E%2E",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeSegment(in), "input %q", in)
	}
}

func TestSanitizeSegment_DistinctNames(t *testing.T) {
	names := []string{"HW 1", "HW_1", "HW/1", `HW\1`, "HW%201", "HW1", " HW 1", "", ".", "..", "%", "%2E"}

	seen := make(map[string]string, len(names))
	for _, name := range names {
		segment := SanitizeSegment(name)
		assert.NotContains(t, segment, "/", "name %q", name)
		if other, ok := seen[segment]; ok {
			t.Errorf("%q and %q both encode to %q", other, name, segment)
		}
		seen[segment] = name
	}
}

func TestBlobPaths(t *testing.T) {
	assert.Equal(t, "extracted_texts/Week%203/alice.txt", ExtractedTextPath("Week 3", "alice"))
	assert.Equal(t, "feedbacks/Week%203/alice.txt", FeedbackPath("Week 3", "alice"))
	assert.Equal(t, "uploads/Week%203/alice.pdf", UploadPath("Week 3", "alice"))
	assert.Equal(t, "jobs/42.json", JobPath("42"))
	assert.Equal(t, []string{
		"extracted_texts/Week%203/",
		"feedbacks/Week%203/",
		"uploads/Week%203/",
	}, AssignmentPrefixes("Week 3"))
}

func TestAssignmentPrefixes_DoNotOverlap(t *testing.T) {
	for _, prefix := range AssignmentPrefixes("HW 1") {
		assert.False(t, strings.HasPrefix(FeedbackPath("HW_1", "alice"), prefix), prefix)
		assert.False(t, strings.HasPrefix(ExtractedTextPath("HW_1", "alice"), prefix), prefix)
		assert.False(t, strings.HasPrefix(UploadPath("HW/1", "alice"), prefix), prefix)
	}
}
