package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"housekeeper/internal/models"
)

// UpsertTeam creates or replaces a team row. Teams are managed outside
// this core (seeded from config); the store only reads them during runs.
func (db *DB) UpsertTeam(ctx context.Context, team *models.Team) error {
	propertyIDs, err := json.Marshal(team.PropertyIDs)
	if err != nil {
		return fmt.Errorf("encode property ids: %w", err)
	}
	channels, err := json.Marshal(team.Channels)
	if err != nil {
		return fmt.Errorf("encode channels: %w", err)
	}

	query := `
        INSERT INTO teams (id, name, property_ids, channels, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            property_ids = excluded.property_ids,
            channels = excluded.channels,
            updated_at = excluded.updated_at
    `
	now := time.Now().UTC()
	_, err = db.db.ExecContext(ctx, query, team.ID, team.Name, string(propertyIDs), string(channels), now, now)
	if err != nil {
		return fmt.Errorf("upsert team: %w", err)
	}
	return nil
}

func (db *DB) GetTeam(ctx context.Context, id int64) (*models.Team, error) {
	query := `SELECT id, name, property_ids, channels, created_at, updated_at FROM teams WHERE id = ?`
	team, err := scanTeam(db.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return team, nil
}

func (db *DB) ListTeams(ctx context.Context) ([]models.Team, error) {
	query := `SELECT id, name, property_ids, channels, created_at, updated_at FROM teams ORDER BY id`
	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, *team)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return teams, nil
}

// TeamsForProperty filters in Go: property lists are small JSON arrays and
// teams number in the tens at most.
func (db *DB) TeamsForProperty(ctx context.Context, propertyID int64) ([]models.Team, error) {
	teams, err := db.ListTeams(ctx)
	if err != nil {
		return nil, err
	}

	var matched []models.Team
	for _, team := range teams {
		if team.ServesProperty(propertyID) {
			matched = append(matched, team)
		}
	}
	return matched, nil
}

func scanTeam(row rowScanner) (*models.Team, error) {
	var (
		team        models.Team
		propertyIDs string
		channels    string
	)
	err := row.Scan(&team.ID, &team.Name, &propertyIDs, &channels, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(propertyIDs), &team.PropertyIDs); err != nil {
		return nil, fmt.Errorf("decode property ids: %w", err)
	}
	if err := json.Unmarshal([]byte(channels), &team.Channels); err != nil {
		return nil, fmt.Errorf("decode channels: %w", err)
	}
	return &team, nil
}
