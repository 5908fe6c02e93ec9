package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kabinet/internal/models"
)

const funnelSelect = `SELECT f.id, f.name, f.description, f.is_active, f.created_at,
                             (SELECT COUNT(*) FROM funnel_steps s WHERE s.funnel_id = f.id)
                      FROM funnels f`

const stepColumns = `id, funnel_id, step_order, title, content, content_type, COALESCE(file_id, ''), is_free, created_at`

func (db *DB) CreateFunnel(ctx context.Context, funnel *models.Funnel) error {
	query := `INSERT INTO funnels (name, description, is_active, created_at) VALUES (?, ?, ?, ?)`
	now := time.Now()
	res, err := db.ExecContext(ctx, query, funnel.Name, funnel.Description, funnel.IsActive, now)
	if err != nil {
		return fmt.Errorf("failed to create funnel: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	funnel.ID = id
	funnel.CreatedAt = now
	return nil
}

func (db *DB) GetFunnel(ctx context.Context, id int64) (*models.Funnel, error) {
	funnel, err := scanFunnel(db.QueryRowContext(ctx, funnelSelect+` WHERE f.id = ?`, id))
	if err != nil {
		return nil, notFound(err, "funnel", id)
	}
	return funnel, nil
}

func (db *DB) GetFunnels(ctx context.Context, activeOnly bool) ([]*models.Funnel, error) {
	query := funnelSelect
	if activeOnly {
		query += ` WHERE f.is_active = 1`
	}
	query += ` ORDER BY f.id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query funnels: %w", err)
	}
	defer rows.Close()

	var funnels []*models.Funnel
	for rows.Next() {
		f, err := scanFunnel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan funnel: %w", err)
		}
		funnels = append(funnels, f)
	}
	return funnels, rows.Err()
}

func (db *DB) SetFunnelActive(ctx context.Context, id int64, active bool) error {
	res, err := db.ExecContext(ctx, `UPDATE funnels SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update funnel: %w", err)
	}
	return expectAffected(res, "funnel", id)
}

// DeleteFunnel удаляет курс, его шаги и весь прогресс пользователей по нему.
func (db *DB) DeleteFunnel(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM funnel_progress WHERE funnel_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete funnel progress: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM funnel_steps WHERE funnel_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete funnel steps: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM funnels WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete funnel: %w", err)
		}
		return expectAffected(res, "funnel", id)
	})
}

func (db *DB) GetFunnelSteps(ctx context.Context, funnelID int64) ([]models.FunnelStep, error) {
	query := `SELECT ` + stepColumns + ` FROM funnel_steps WHERE funnel_id = ? ORDER BY step_order`
	rows, err := db.QueryContext(ctx, query, funnelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query funnel steps: %w", err)
	}
	defer rows.Close()

	var steps []models.FunnelStep
	for rows.Next() {
		var s models.FunnelStep
		var contentType string
		if err := rows.Scan(&s.ID, &s.FunnelID, &s.Order, &s.Title, &s.Content, &contentType, &s.FileID, &s.IsFree, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan funnel step: %w", err)
		}
		s.ContentType = models.ContentType(contentType)
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// AppendFunnelStep добавляет шаг в конец курса: order = количество шагов + 1.
func (db *DB) AppendFunnelStep(ctx context.Context, step *models.FunnelStep) error {
	if step.ContentType == "" {
		step.ContentType = models.ContentText
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM funnels WHERE id = ?`, step.FunnelID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check funnel: %w", err)
		}
		if exists == 0 {
			return notFound(sql.ErrNoRows, "funnel", step.FunnelID)
		}

		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM funnel_steps WHERE funnel_id = ?`, step.FunnelID).Scan(&count); err != nil {
			return fmt.Errorf("failed to count funnel steps: %w", err)
		}

		now := time.Now()
		var fileID interface{}
		if step.FileID != "" {
			fileID = step.FileID
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO funnel_steps (funnel_id, step_order, title, content, content_type, file_id, is_free, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			step.FunnelID, count+1, step.Title, step.Content, string(step.ContentType), fileID, step.IsFree, now)
		if err != nil {
			return fmt.Errorf("failed to create funnel step: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		step.ID = id
		step.Order = count + 1
		step.CreatedAt = now
		return nil
	})
}

// DeleteFunnelStep удаляет шаг и сдвигает следующие, чтобы нумерация осталась без пропусков.
func (db *DB) DeleteFunnelStep(ctx context.Context, stepID int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var funnelID int64
		var order int
		err := tx.QueryRowContext(ctx, `SELECT funnel_id, step_order FROM funnel_steps WHERE id = ?`, stepID).Scan(&funnelID, &order)
		if err != nil {
			return notFound(err, "funnel step", stepID)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM funnel_steps WHERE id = ?`, stepID); err != nil {
			return fmt.Errorf("failed to delete funnel step: %w", err)
		}
		// два прохода, чтобы не задеть UNIQUE(funnel_id, step_order) посреди обновления
		if _, err := tx.ExecContext(ctx,
			`UPDATE funnel_steps SET step_order = -(step_order - 1) WHERE funnel_id = ? AND step_order > ?`, funnelID, order); err != nil {
			return fmt.Errorf("failed to shift funnel steps: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE funnel_steps SET step_order = -step_order WHERE funnel_id = ? AND step_order < 0`, funnelID); err != nil {
			return fmt.Errorf("failed to shift funnel steps: %w", err)
		}
		return nil
	})
}

func (db *DB) SetStepFree(ctx context.Context, stepID int64, isFree bool) error {
	res, err := db.ExecContext(ctx, `UPDATE funnel_steps SET is_free = ? WHERE id = ?`, isFree, stepID)
	if err != nil {
		return fmt.Errorf("failed to update funnel step: %w", err)
	}
	return expectAffected(res, "funnel step", stepID)
}

func scanFunnel(row rowScanner) (*models.Funnel, error) {
	var f models.Funnel
	if err := row.Scan(&f.ID, &f.Name, &f.Description, &f.IsActive, &f.CreatedAt, &f.StepsCount); err != nil {
		return nil, err
	}
	return &f, nil
}
