package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kabinet/internal/models"
)

const progressColumns = `id, user_id, funnel_id, current_step, is_completed, started_at, completed_at, last_activity`

// GetOrCreateProgress возвращает запись прогресса, создавая её с current_step=1 при первом обращении.
// Второй результат сообщает, была ли запись создана сейчас.
func (db *DB) GetOrCreateProgress(ctx context.Context, userID, funnelID int64, now time.Time) (*models.FunnelProgress, bool, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO funnel_progress (user_id, funnel_id, current_step, is_completed, started_at, last_activity)
         VALUES (?, ?, 1, 0, ?, ?)
         ON CONFLICT(user_id, funnel_id) DO NOTHING`,
		userID, funnelID, now, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create funnel progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	progress, err := db.GetProgress(ctx, userID, funnelID)
	if err != nil {
		return nil, false, err
	}
	return progress, n > 0, nil
}

func (db *DB) GetProgress(ctx context.Context, userID, funnelID int64) (*models.FunnelProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM funnel_progress WHERE user_id = ? AND funnel_id = ?`
	p, err := scanProgress(db.QueryRowContext(ctx, query, userID, funnelID))
	if err != nil {
		return nil, notFound(err, "funnel progress for funnel", funnelID)
	}
	return p, nil
}

func (db *DB) UpdateProgress(ctx context.Context, p *models.FunnelProgress) error {
	query := `UPDATE funnel_progress
              SET current_step = ?, is_completed = ?, completed_at = ?, last_activity = ?
              WHERE id = ?`
	var completedAt sql.NullTime
	if p.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *p.CompletedAt, Valid: true}
	}
	res, err := db.ExecContext(ctx, query, p.CurrentStep, p.IsCompleted, completedAt, p.LastActivity, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update funnel progress: %w", err)
	}
	return expectAffected(res, "funnel progress", p.ID)
}

func (db *DB) GetUserProgress(ctx context.Context, userID int64) ([]*models.FunnelProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM funnel_progress WHERE user_id = ? ORDER BY started_at`
	return db.queryProgress(ctx, query, userID)
}

func (db *DB) GetFunnelProgress(ctx context.Context, funnelID int64) ([]*models.FunnelProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM funnel_progress WHERE funnel_id = ? ORDER BY started_at`
	return db.queryProgress(ctx, query, funnelID)
}

func (db *DB) queryProgress(ctx context.Context, query string, args ...interface{}) ([]*models.FunnelProgress, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query funnel progress: %w", err)
	}
	defer rows.Close()

	var list []*models.FunnelProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan funnel progress: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func scanProgress(row rowScanner) (*models.FunnelProgress, error) {
	var p models.FunnelProgress
	var completedAt sql.NullTime
	err := row.Scan(&p.ID, &p.UserID, &p.FunnelID, &p.CurrentStep, &p.IsCompleted, &p.StartedAt, &completedAt, &p.LastActivity)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		p.CompletedAt = &t
	}
	return &p, nil
}
