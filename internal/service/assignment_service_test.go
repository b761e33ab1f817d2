package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/RubachokBoss/evalmate/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAssignment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.assignmentSvc.CreateAssignment(ctx, &models.CreateAssignmentRequest{
		Title:       "  HW1 ",
		Subject:     "Maths",
		Deadline:    "2024-03-02 23:59:00",
		ModelAnswer: "2+2=4",
	})
	require.NoError(t, err)
	assert.Equal(t, "HW1", created.Title)
	assert.Equal(t, time.Date(2024, 3, 2, 23, 59, 0, 0, time.UTC), created.Deadline)

	list, err := env.assignmentSvc.ListAssignments(ctx, AllSubjects)
	require.NoError(t, err)
	require.Len(t, list, 1)

	categories := Categorize(list)
	assert.Len(t, categories.NoSubmissions, 1)
}

func TestCreateAssignment_Rejected(t *testing.T) {
	tests := []struct {
		name  string
		req   models.CreateAssignmentRequest
		field string
	}{
		{
			name:  "blank title",
			req:   models.CreateAssignmentRequest{Title: "   ", Deadline: "2024-03-02 10:00:00", ModelAnswer: "x"},
			field: "title",
		},
		{
			name:  "empty model answer",
			req:   models.CreateAssignmentRequest{Title: "HW2", Deadline: "2024-03-02 10:00:00", ModelAnswer: ""},
			field: "model_answer",
		},
		{
			name:  "bad deadline",
			req:   models.CreateAssignmentRequest{Title: "HW2", Deadline: "tomorrow", ModelAnswer: "x"},
			field: "deadline",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.create(t, "HW1", "Maths", time.Now())

			_, err := env.assignmentSvc.CreateAssignment(context.Background(), &tt.req)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Contains(t, validationErr.Fields, tt.field)

			list, err := env.assignmentSvc.ListAssignments(context.Background(), "")
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestCreateAssignment_DuplicateTitle(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "HW1", "Maths", time.Now())

	_, err := env.assignmentSvc.CreateAssignment(context.Background(), &models.CreateAssignmentRequest{
		Title: "HW1", Deadline: "2024-03-02 10:00:00", ModelAnswer: "other",
	})
	assert.ErrorIs(t, err, ErrDuplicateTitle)

	a := env.assignment(t, "HW1")
	assert.Equal(t, "2+2=4", a.ModelAnswer)
}

func TestCreateAssignment_Concurrent(t *testing.T) {
	env := newTestEnv(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.assignmentSvc.CreateAssignment(context.Background(), &models.CreateAssignmentRequest{
				Title:       fmt.Sprintf("HW%d", i),
				Deadline:    "2024-03-02 10:00:00",
				ModelAnswer: "x",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	list, err := env.assignmentSvc.ListAssignments(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, list, 8)
}

func TestListAssignments_SubjectFilter(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "HW1", "Maths", time.Now())
	env.create(t, "Essay", "English", time.Now())
	env.create(t, "HW2", "Maths", time.Now())

	maths, err := env.assignmentSvc.ListAssignments(context.Background(), "Maths")
	require.NoError(t, err)
	require.Len(t, maths, 2)
	assert.Equal(t, "HW1", maths[0].Title)
	assert.Equal(t, "HW2", maths[1].Title)

	subjects, err := env.assignmentSvc.Subjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"English", "Maths"}, subjects)
}

func TestDeleteAssignment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "HW1", "English", time.Now())
	env.create(t, "HW2", "English", time.Now())

	require.NoError(t, env.submissionSvc.Submit(ctx, "HW1", "alice", []byte("%PDFmy essay"), nil))
	require.NoError(t, env.submissionSvc.Submit(ctx, "HW2", "alice", []byte("%PDFother essay"), nil))
	env.drafts.Put("HW1", "alice", "draft")

	require.NoError(t, env.assignmentSvc.DeleteAssignment(ctx, "HW1"))

	_, err := env.assignmentSvc.GetAssignment(ctx, "HW1")
	assert.ErrorIs(t, err, ErrAssignmentNotFound)

	subs, err := env.subs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"HW2"}, subs.Titles("alice"))

	_, ok := env.drafts.Get("HW1", "alice")
	assert.False(t, ok)

	exists, err := env.blobs.Exists(ctx, repository.ExtractedTextPath("HW1", "alice"))
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = env.blobs.Exists(ctx, repository.ExtractedTextPath("HW2", "alice"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDeleteAssignment_AbsentIsNoop(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "HW1", "Maths", time.Now())

	revision, err := env.assignments.Load(context.Background())
	require.NoError(t, err)

	require.NoError(t, env.assignmentSvc.DeleteAssignment(context.Background(), "missing"))

	after, err := env.assignments.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, revision.Revision, after.Revision)
}

func TestDeleteAssignment_RestoresOnSubmissionStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "HW1", "English", time.Now())
	env.create(t, "HW2", "English", time.Now())
	env.create(t, "HW3", "English", time.Now())
	require.NoError(t, env.submissionSvc.Submit(ctx, "HW2", "alice", []byte("%PDFessay"), nil))

	env.blobs.failOn(repository.SubmissionsPath)

	err := env.assignmentSvc.DeleteAssignment(ctx, "HW2")
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)

	list, err := env.assignmentSvc.ListAssignments(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "HW2", list[1].Title)
	assert.True(t, list[1].HasSubmission("alice"))

	subs, err := env.subs.Load(ctx)
	require.NoError(t, err)
	assert.True(t, subs.Has("alice", "HW2"))
}

func TestAssignments_SimilarTitlesKeepSeparateBlobs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	today := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	env.blobs.WithClock(func() time.Time { return today })
	env.dashboardSvc.now = func() time.Time { return today }

	deadline := time.Date(2024, 3, 20, 18, 0, 0, 0, time.UTC)
	env.create(t, "HW 1", "Maths", deadline)
	env.create(t, "HW_1", "Maths", deadline)
	env.create(t, "HW/1", "Maths", deadline)

	require.NoError(t, env.submissionSvc.Record(ctx, "HW 1", "alice", "", "spaced"))
	require.NoError(t, env.submissionSvc.Record(ctx, "HW_1", "alice", "", "underscored"))
	_, err := env.gradingSvc.GenerateFeedback(ctx, "HW_1", "alice", "")
	require.NoError(t, err)
	require.NoError(t, env.gradingSvc.Finalize(ctx, "HW_1", "alice", "Good work"))

	_, err = env.gradingSvc.Feedback(ctx, "HW 1", "alice")
	assert.ErrorIs(t, err, ErrFeedbackNotFound)
	_, err = env.gradingSvc.Feedback(ctx, "HW/1", "alice")
	assert.ErrorIs(t, err, ErrFeedbackNotFound)

	text, err := env.submissionSvc.ExtractedText(ctx, "HW 1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "spaced", text)

	dash, err := env.dashboardSvc.Student(ctx, "alice", AllSubjects)
	require.NoError(t, err)
	assert.Equal(t, []models.Notice{{Kind: models.NoticeGradedToday, Title: "HW_1"}}, dash.Notifications)

	require.NoError(t, env.assignmentSvc.DeleteAssignment(ctx, "HW 1"))

	a := env.assignment(t, "HW_1")
	assert.Equal(t, models.GradedStudent{Feedback: "Good work", Finalized: true}, a.GradedStudents["alice"])

	text, err = env.submissionSvc.ExtractedText(ctx, "HW_1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "underscored", text)

	blob, err := env.gradingSvc.Feedback(ctx, "HW_1", "alice")
	require.NoError(t, err)
	assert.Equal(t, a.GradedStudents["alice"].Feedback, blob.Text)
}
