package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportService_FeedbackPDF(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exporter := NewExportService(env.assignmentSvc, env.gradingSvc, time.UTC, zerolog.Nop())

	env.create(t, "HW1", "Maths", time.Now())
	require.NoError(t, env.submissionSvc.Record(ctx, "HW1", "alice", "", "four"))

	_, err := exporter.FeedbackPDF(ctx, "HW1", "alice")
	assert.ErrorIs(t, err, ErrFeedbackNotFound)

	_, err = env.gradingSvc.GenerateFeedback(ctx, "HW1", "alice", "")
	require.NoError(t, err)
	require.NoError(t, env.gradingSvc.Finalize(ctx, "HW1", "alice", "Très bien, see step 2."))

	data, err := exporter.FeedbackPDF(ctx, "HW1", "alice")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	_, err = exporter.FeedbackPDF(ctx, "HW9", "alice")
	assert.ErrorIs(t, err, ErrAssignmentNotFound)
}
