package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/RubachokBoss/evalmate/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGradingMessages(t *testing.T) {
	messages := BuildGradingMessages("Be strict", "4", "2+2=4")
	require.Len(t, messages, 8)
	for _, m := range messages[:6] {
		assert.Equal(t, "system", m.Role)
	}
	assert.Equal(t, "Grading Instructions: Be strict", messages[5].Content)
	assert.Equal(t, models.ChatMessage{Role: "user", Content: "Student Answer: 4"}, messages[6])
	assert.Equal(t, models.ChatMessage{Role: "user", Content: "Model Answer: 2+2=4"}, messages[7])

	assert.Len(t, BuildGradingMessages("  ", "4", "2+2=4"), 7)
}

func TestGradingFlow_FinalizeRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "HW1", "Maths", time.Now())
	require.NoError(t, env.submissionSvc.Record(ctx, "HW1", "alice", "", "four"))

	draft, err := env.gradingSvc.GenerateFeedback(ctx, "HW1", "alice", "")
	require.NoError(t, err)
	assert.Equal(t, "Correct, well explained.", draft)

	stored, err := env.gradingSvc.Draft(ctx, "HW1", "alice")
	require.NoError(t, err)
	assert.Equal(t, draft, stored)

	require.Len(t, env.grader.requests, 1)
	sent := env.grader.requests[0]
	assert.Equal(t, "Student Answer: four", sent[len(sent)-2].Content)

	feedback := "Good work\n\nsee step 2 ✓"
	require.NoError(t, env.gradingSvc.Finalize(ctx, "HW1", "alice", feedback))

	a := env.assignment(t, "HW1")
	assert.Equal(t, models.GradedStudent{Feedback: feedback, Finalized: true}, a.GradedStudents["alice"])

	blob, err := env.gradingSvc.Feedback(ctx, "HW1", "alice")
	require.NoError(t, err)
	assert.Equal(t, feedback, blob.Text)

	list, err := env.assignmentSvc.ListAssignments(ctx, "")
	require.NoError(t, err)
	assert.Len(t, Categorize(list).Finalized, 1)

	_, ok := env.drafts.Get("HW1", "alice")
	assert.False(t, ok)
	require.Len(t, env.publisher.finalized, 1)

	err = env.gradingSvc.Finalize(ctx, "HW1", "alice", "changed")
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
	_, err = env.gradingSvc.GenerateFeedback(ctx, "HW1", "alice", "")
	assert.ErrorIs(t, err, ErrAlreadyFinalized)

	blob, err = env.gradingSvc.Feedback(ctx, "HW1", "alice")
	require.NoError(t, err)
	assert.Equal(t, feedback, blob.Text)

	// resubmission after finalization is refused
	err = env.submissionSvc.Submit(ctx, "HW1", "alice", []byte("%PDFt:again"), nil)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}

func TestGenerateFeedback_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "HW1", "Maths", time.Now())

	_, err := env.gradingSvc.GenerateFeedback(ctx, "HW1", "alice", "")
	assert.ErrorIs(t, err, ErrNotSubmitted)

	_, err = env.gradingSvc.GenerateFeedback(ctx, "nope", "alice", "")
	assert.ErrorIs(t, err, ErrAssignmentNotFound)

	require.NoError(t, env.submissionSvc.Record(ctx, "HW1", "alice", "", "four"))
	env.grader.err = errors.New("rate limited")

	_, err = env.gradingSvc.GenerateFeedback(ctx, "HW1", "alice", "")
	var gradingErr *GradingError
	require.ErrorAs(t, err, &gradingErr)

	_, err = env.gradingSvc.Draft(ctx, "HW1", "alice")
	assert.ErrorIs(t, err, ErrNoDraft)
}

func TestFinalize_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "HW1", "Maths", time.Now())
	require.NoError(t, env.submissionSvc.Record(ctx, "HW1", "alice", "", "four"))

	err := env.gradingSvc.Finalize(ctx, "HW1", "alice", "Good")
	assert.ErrorIs(t, err, ErrNoDraft)

	var validationErr *ValidationError
	err = env.gradingSvc.Finalize(ctx, "HW1", "alice", "  ")
	require.ErrorAs(t, err, &validationErr)

	_, err = env.gradingSvc.Feedback(ctx, "HW1", "alice")
	assert.ErrorIs(t, err, ErrFeedbackNotFound)
}

func TestFinalize_RemovesFeedbackWhenIndexWriteFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "HW1", "Maths", time.Now())
	require.NoError(t, env.submissionSvc.Record(ctx, "HW1", "alice", "", "four"))
	_, err := env.gradingSvc.GenerateFeedback(ctx, "HW1", "alice", "")
	require.NoError(t, err)

	env.blobs.failOn(repository.AssignmentsPath)
	err = env.gradingSvc.Finalize(ctx, "HW1", "alice", "Good work")
	require.Error(t, err)

	_, err = env.gradingSvc.Feedback(ctx, "HW1", "alice")
	assert.ErrorIs(t, err, ErrFeedbackNotFound)

	_, ok := env.drafts.Get("HW1", "alice")
	assert.True(t, ok)
}

func TestFinalize_ConcurrentFinalizersKeepBlobAndIndexInSync(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "HW1", "Maths", time.Now())
	require.NoError(t, env.submissionSvc.Record(ctx, "HW1", "alice", "", "four"))
	_, err := env.gradingSvc.GenerateFeedback(ctx, "HW1", "alice", "")
	require.NoError(t, err)

	// both finalizers pass the pre-checks before either commits
	env.blobs.holdGets(repository.AssignmentsPath, 2)

	texts := []string{"A", "B"}
	errs := make([]error, len(texts))
	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			errs[i] = env.gradingSvc.Finalize(ctx, "HW1", "alice", text)
		}(i, text)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		// the loser sees either the finalized flag or the draft already consumed
		assert.True(t, errors.Is(err, ErrAlreadyFinalized) || errors.Is(err, ErrNoDraft), err.Error())
	}
	assert.Equal(t, 1, succeeded)

	a := env.assignment(t, "HW1")
	graded := a.GradedStudents["alice"]
	require.True(t, graded.Finalized)

	blob, err := env.gradingSvc.Feedback(ctx, "HW1", "alice")
	require.NoError(t, err)
	assert.Equal(t, graded.Feedback, blob.Text)
	require.Len(t, env.publisher.finalized, 1)
}

func TestFinalize_LosesToCommitAfterPreCheck(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "HW1", "Maths", time.Now())
	require.NoError(t, env.submissionSvc.Record(ctx, "HW1", "alice", "", "four"))
	_, err := env.gradingSvc.GenerateFeedback(ctx, "HW1", "alice", "")
	require.NoError(t, err)

	// another finalizer commits "A" right after this call has read the assignment
	env.blobs.onceAfterGet(repository.AssignmentsPath, func() {
		require.NoError(t, env.blobs.Put(ctx, repository.FeedbackPath("HW1", "alice"), []byte("A"), repository.ContentTypeText))
		_, err := env.assignments.Update(ctx, func(idx *models.AssignmentIndex) error {
			idx.Find("HW1").GradedStudents["alice"] = models.GradedStudent{Feedback: "A", Finalized: true}
			return nil
		})
		require.NoError(t, err)
	})

	err = env.gradingSvc.Finalize(ctx, "HW1", "alice", "B")
	assert.ErrorIs(t, err, ErrAlreadyFinalized)

	blob, err := env.gradingSvc.Feedback(ctx, "HW1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "A", blob.Text)
	assert.Equal(t, "A", env.assignment(t, "HW1").GradedStudents["alice"].Feedback)
}
