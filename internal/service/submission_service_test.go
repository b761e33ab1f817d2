package service

import (
	"context"
	"testing"
	"time"

	"github.com/RubachokBoss/evalmate/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmit_MathRoutedAndRecorded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "HW1", "Maths", time.Now().Add(24*time.Hour))

	pdf := []byte("%PDFt:We have|f:" + b64("2+2=4"))
	require.NoError(t, env.submissionSvc.Submit(ctx, "HW1", "alice", pdf, nil))

	a := env.assignment(t, "HW1")
	assert.Equal(t, repository.ExtractedTextPath("HW1", "alice"), a.ExtractedTexts["alice"])
	assert.Equal(t, []string{repository.UploadPath("HW1", "alice")}, a.SubmittedFiles)

	text, err := env.submissionSvc.ExtractedText(ctx, "HW1", "alice")
	require.NoError(t, err)
	assert.Contains(t, text, "We have")
	assert.Contains(t, text, "2+2=4")
	// math pages never reach the handwriting detector
	assert.Empty(t, env.detector.calls)

	subs, err := env.subs.Load(ctx)
	require.NoError(t, err)
	assert.True(t, subs.Has("alice", "HW1"))

	list, err := env.assignmentSvc.ListAssignments(ctx, "")
	require.NoError(t, err)
	assert.Len(t, Categorize(list).PendingGrading, 1)

	require.Len(t, env.publisher.recorded, 1)
	assert.Equal(t, "alice", env.publisher.recorded[0].Student)
}

func TestSubmit_HandwritingResubmissionReplacesText(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "Essay", "English", time.Now())

	require.NoError(t, env.submissionSvc.Submit(ctx, "Essay", "bob", []byte("%PDFfirst draft"), nil))
	require.NoError(t, env.submissionSvc.Submit(ctx, "Essay", "bob", []byte("%PDFsecond draft"), nil))

	text, err := env.submissionSvc.ExtractedText(ctx, "Essay", "bob")
	require.NoError(t, err)
	assert.Equal(t, "second draft", text)
	assert.Equal(t, 1, env.detector.calls["first draft"])

	subs, err := env.subs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Essay"}, subs.Titles("bob"))
}

func TestRecord_ResubmissionDropsStaleDraft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "Essay", "English", time.Now())

	require.NoError(t, env.submissionSvc.Record(ctx, "Essay", "bob", "", "first draft"))
	_, err := env.gradingSvc.GenerateFeedback(ctx, "Essay", "bob", "")
	require.NoError(t, err)

	// a failed resubmission leaves the draft alone
	err = env.submissionSvc.Record(ctx, "Essay", "bob", "", "  ")
	require.Error(t, err)
	_, err = env.gradingSvc.Draft(ctx, "Essay", "bob")
	require.NoError(t, err)

	require.NoError(t, env.submissionSvc.Record(ctx, "Essay", "bob", "", "second draft"))

	_, err = env.gradingSvc.Draft(ctx, "Essay", "bob")
	assert.ErrorIs(t, err, ErrNoDraft)
	err = env.gradingSvc.Finalize(ctx, "Essay", "bob", "Based on the first draft")
	assert.ErrorIs(t, err, ErrNoDraft)
}

func TestSubmit_ExtractionFailureChangesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "Essay", "English", time.Now())
	env.detector.failures = map[string]int{"unreadable": 5}

	before, err := env.assignments.Load(ctx)
	require.NoError(t, err)

	err = env.submissionSvc.Submit(ctx, "Essay", "bob", []byte("%PDFunreadable"), nil)
	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)

	after, err := env.assignments.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Revision, after.Revision)

	exists, err := env.blobs.Exists(ctx, repository.UploadPath("Essay", "bob"))
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, env.publisher.recorded)
}

func TestSubmit_Rejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "Essay", "English", time.Now())

	var validationErr *ValidationError
	err := env.submissionSvc.Submit(ctx, "Essay", "bob", []byte("plain text"), nil)
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "file")

	err = env.submissionSvc.Submit(ctx, "Essay", " ", []byte("%PDFx"), nil)
	require.ErrorAs(t, err, &validationErr)

	err = env.submissionSvc.Submit(ctx, "Missing", "bob", []byte("%PDFx"), nil)
	assert.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestRecord_RevertsWhenSubmissionIndexFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "Essay", "English", time.Now())
	require.NoError(t, env.submissionSvc.Record(ctx, "Essay", "bob", "", "old answer"))

	env.blobs.failOn(repository.SubmissionsPath)
	err := env.submissionSvc.Record(ctx, "Essay", "carol", repository.UploadPath("Essay", "carol"), "new answer")
	require.Error(t, err)

	a := env.assignment(t, "Essay")
	assert.False(t, a.HasSubmission("carol"))
	assert.True(t, a.HasSubmission("bob"))
	assert.Empty(t, a.SubmittedFiles)

	exists, err := env.blobs.Exists(ctx, repository.ExtractedTextPath("Essay", "carol"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "Essay", "English", time.Now())

	resp, err := env.submissionSvc.Upload(ctx, "Essay", "bob", []byte("hello"))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Nil(t, resp)

	resp, err = env.submissionSvc.Upload(ctx, "Essay", "bob", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, repository.UploadPath("Essay", "bob"), resp.UploadPath)
	assert.Len(t, resp.SHA256, 64)
	assert.EqualValues(t, 8, resp.Size)

	a := env.assignment(t, "Essay")
	assert.False(t, a.HasSubmission("bob"))
}
