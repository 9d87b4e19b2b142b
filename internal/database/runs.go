package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"housekeeper/internal/models"
)

func (db *DB) CreateRun(ctx context.Context, run *models.SyncRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	query := `
        INSERT INTO sync_runs (id, status, window_start, window_end, started_at, stats)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	_, err := db.db.ExecContext(ctx, query,
		run.ID,
		run.Status,
		run.WindowStart.Format(models.DateFormat),
		run.WindowEnd.Format(models.DateFormat),
		run.StartedAt,
		run.Stats,
	)
	if err != nil {
		return fmt.Errorf("create sync run: %w", err)
	}
	return nil
}

func (db *DB) FinishRun(ctx context.Context, id string, status string, stats string) error {
	query := `UPDATE sync_runs SET status = ?, stats = ?, finished_at = ? WHERE id = ?`
	_, err := db.db.ExecContext(ctx, query, status, stats, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("finish sync run: %w", err)
	}
	return nil
}

func (db *DB) ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
        SELECT id, status, window_start, window_end, started_at, finished_at, stats
        FROM sync_runs ORDER BY started_at DESC LIMIT ?
    `
	rows, err := db.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []models.SyncRun
	for rows.Next() {
		var (
			run        models.SyncRun
			winStart   string
			winEnd     string
			finishedAt sql.NullTime
		)
		err := rows.Scan(&run.ID, &run.Status, &winStart, &winEnd, &run.StartedAt, &finishedAt, &run.Stats)
		if err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}

		if run.WindowStart, err = time.ParseInLocation(models.DateFormat, winStart, time.UTC); err != nil {
			return nil, fmt.Errorf("parse window_start %q: %w", winStart, err)
		}
		if run.WindowEnd, err = time.ParseInLocation(models.DateFormat, winEnd, time.UTC); err != nil {
			return nil, fmt.Errorf("parse window_end %q: %w", winEnd, err)
		}
		if finishedAt.Valid {
			t := finishedAt.Time
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}
