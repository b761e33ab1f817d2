package repository

import (
	"context"
	"testing"
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(newBoltStore(t), zerolog.Nop())

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	second := &models.ExtractionJob{ID: "b", Title: "HW1", Student: "bob", Status: models.JobStatusQueued, CreatedAt: base.Add(time.Minute)}
	first := &models.ExtractionJob{ID: "a", Title: "HW1", Student: "alice", Status: models.JobStatusRunning, CreatedAt: base}
	require.NoError(t, repo.Save(ctx, second))
	require.NoError(t, repo.Save(ctx, first))

	got, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Student)
	assert.Equal(t, models.SchemaVersion, got.SchemaVersion)

	jobs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].ID)
	assert.Equal(t, "b", jobs[1].ID)

	require.NoError(t, repo.Delete(ctx, "a"))
	got, err = repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)
}
