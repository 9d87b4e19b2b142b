package database

import (
	"context"
	"testing"
	"time"

	"housekeeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuns_CreateFinishList(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	run := &models.SyncRun{
		ID:          "run-1",
		Status:      models.RunStatusRunning,
		WindowStart: day("2025-07-01"),
		WindowEnd:   day("2025-07-15"),
		StartedAt:   time.Now().UTC(),
	}
	require.NoError(t, db.CreateRun(ctx, run))

	require.NoError(t, db.FinishRun(ctx, "run-1", models.RunStatusCompleted, `{"created":2}`))

	runs, err := db.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, models.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, `{"created":2}`, runs[0].Stats)
	assert.NotNil(t, runs[0].FinishedAt)
	assert.Equal(t, "2025-07-01", runs[0].WindowStart.Format(models.DateFormat))
}

func TestListRuns_LimitAndOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		run := &models.SyncRun{
			ID:          string(rune('a' + i)),
			Status:      models.RunStatusCompleted,
			WindowStart: day("2025-07-01"),
			WindowEnd:   day("2025-07-15"),
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.CreateRun(ctx, run))
	}

	runs, err := db.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// Newest first.
	assert.Equal(t, "e", runs[0].ID)
	assert.Equal(t, "d", runs[1].ID)
}
