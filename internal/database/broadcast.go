package database

import (
	"context"
	"fmt"
	"time"

	"kabinet/internal/models"
)

const broadcastSettingsID = 1

// GetOrCreateBroadcastSettings возвращает единственную запись настроек рассылки.
func (db *DB) GetOrCreateBroadcastSettings(ctx context.Context) (*models.BroadcastSettings, error) {
	_, err := db.ExecContext(ctx,
		`INSERT INTO broadcast_settings (id, default_text, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(id) DO NOTHING`,
		broadcastSettingsID, models.DefaultBroadcastText, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create broadcast settings: %w", err)
	}

	var s models.BroadcastSettings
	err = db.QueryRowContext(ctx, `SELECT id, default_text, updated_at FROM broadcast_settings WHERE id = ?`, broadcastSettingsID).
		Scan(&s.ID, &s.DefaultText, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get broadcast settings: %w", err)
	}
	return &s, nil
}

func (db *DB) UpdateDefaultBroadcastText(ctx context.Context, text string) error {
	if _, err := db.GetOrCreateBroadcastSettings(ctx); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `UPDATE broadcast_settings SET default_text = ?, updated_at = ? WHERE id = ?`,
		text, time.Now(), broadcastSettingsID)
	if err != nil {
		return fmt.Errorf("failed to update broadcast text: %w", err)
	}
	return nil
}
