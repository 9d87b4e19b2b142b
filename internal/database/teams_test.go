package database

import (
	"context"
	"testing"

	"housekeeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertTeam_AndGet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	team := &models.Team{
		ID:          1,
		Name:        "Morning crew",
		PropertyIDs: []int64{272758},
		Channels: []models.ChannelConfig{
			{Type: models.ChannelTelegram, Target: "12345"},
			{Type: models.ChannelEmail, Target: "crew@example.com"},
		},
	}
	require.NoError(t, db.UpsertTeam(ctx, team))

	got, err := db.GetTeam(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Morning crew", got.Name)
	assert.Equal(t, []int64{272758}, got.PropertyIDs)
	require.Len(t, got.Channels, 2)
	assert.Equal(t, models.ChannelTelegram, got.Channels[0].Type)

	// Upsert replaces in place.
	team.Name = "Evening crew"
	require.NoError(t, db.UpsertTeam(ctx, team))
	got, err = db.GetTeam(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Evening crew", got.Name)
}

func TestGetTeam_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetTeam(context.Background(), 42)
	assert.ErrorIs(t, err, ErrTeamNotFound)
}

func TestTeamsForProperty(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertTeam(ctx, &models.Team{ID: 1, Name: "A", PropertyIDs: []int64{272758}}))
	require.NoError(t, db.UpsertTeam(ctx, &models.Team{ID: 2, Name: "B", PropertyIDs: []int64{272758, 300000}}))
	require.NoError(t, db.UpsertTeam(ctx, &models.Team{ID: 3, Name: "C", PropertyIDs: []int64{300000}}))

	teams, err := db.TeamsForProperty(ctx, 272758)
	require.NoError(t, err)
	require.Len(t, teams, 2)

	teams, err = db.TeamsForProperty(ctx, 999999)
	require.NoError(t, err)
	assert.Empty(t, teams)
}
