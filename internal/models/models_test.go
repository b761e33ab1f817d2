package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignmentIndex_AddFindRemove(t *testing.T) {
	var idx AssignmentIndex
	idx.Normalize()

	idx.Add(Assignment{Title: "HW1", ModelAnswer: "a"})
	idx.Add(Assignment{Title: "HW2", ModelAnswer: "b"})

	a := idx.Find("HW2")
	require.NotNil(t, a)
	assert.NotNil(t, a.ExtractedTexts)
	assert.NotNil(t, a.GradedStudents)

	a.ExtractedTexts["alice"] = "extracted_texts/HW2/alice.txt"
	assert.True(t, idx.Find("HW2").HasSubmission("alice"))

	assert.True(t, idx.Remove("HW1"))
	assert.False(t, idx.Remove("HW1"))
	assert.Nil(t, idx.Find("HW1"))
	assert.Len(t, idx.Assignments, 1)
}

func TestAssignment_AllFinalized(t *testing.T) {
	a := Assignment{Title: "HW1"}
	a.normalize()
	assert.True(t, a.AllFinalized())

	a.ExtractedTexts["alice"] = "p1"
	a.ExtractedTexts["bob"] = "p2"
	a.GradedStudents["alice"] = GradedStudent{Feedback: "ok", Finalized: true}
	assert.False(t, a.AllFinalized())
	assert.True(t, a.IsFinalized("alice"))
	assert.False(t, a.IsFinalized("bob"))

	a.GradedStudents["bob"] = GradedStudent{Feedback: "ok", Finalized: true}
	assert.True(t, a.AllFinalized())
}

func TestSubmissionIndex_SetSemantics(t *testing.T) {
	var idx SubmissionIndex
	idx.Normalize()

	idx.Add("alice", "HW1")
	idx.Add("alice", "HW2")
	idx.Add("alice", "HW1")
	idx.Add("bob", "HW1")
	assert.Equal(t, []string{"HW1", "HW2"}, idx.Titles("alice"))

	idx.RemoveTitle("HW1")
	assert.Equal(t, []string{"HW2"}, idx.Titles("alice"))
	assert.False(t, idx.Has("bob", "HW1"))
	_, ok := idx.Students["bob"]
	assert.False(t, ok)
}
