package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kabinet/internal/models"
)

const userColumns = `telegram_id, username, first_name, last_name, COALESCE(phone, ''), is_active, last_activity, created_at, updated_at`

// UpsertUser создает пользователя или обновляет имя и снова делает его активным.
func (db *DB) UpsertUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (telegram_id, username, first_name, last_name, is_active, last_activity, created_at, updated_at)
              VALUES (?, ?, ?, ?, 1, ?, ?, ?)
              ON CONFLICT(telegram_id) DO UPDATE SET
                username = excluded.username,
                first_name = excluded.first_name,
                last_name = excluded.last_name,
                is_active = 1,
                last_activity = excluded.last_activity,
                updated_at = excluded.updated_at`
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		user.TelegramID,
		user.Username,
		user.FirstName,
		user.LastName,
		now,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (db *DB) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = ?`
	user, err := scanUser(db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		return nil, notFound(err, "user", telegramID)
	}
	return user, nil
}

func (db *DB) UpdateUserPhone(ctx context.Context, telegramID int64, phone string) error {
	query := `UPDATE users SET phone = ?, updated_at = ? WHERE telegram_id = ?`
	res, err := db.ExecContext(ctx, query, phone, time.Now(), telegramID)
	if err != nil {
		return fmt.Errorf("failed to update user phone: %w", err)
	}
	return expectAffected(res, "user", telegramID)
}

func (db *DB) SetUserActive(ctx context.Context, telegramID int64, active bool) error {
	query := `UPDATE users SET is_active = ?, updated_at = ? WHERE telegram_id = ?`
	res, err := db.ExecContext(ctx, query, active, time.Now(), telegramID)
	if err != nil {
		return fmt.Errorf("failed to set user active: %w", err)
	}
	return expectAffected(res, "user", telegramID)
}

func (db *DB) GetActiveUsers(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE is_active = 1 ORDER BY telegram_id`
	return db.queryUsers(ctx, query)
}

func (db *DB) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at`
	return db.queryUsers(ctx, query)
}

func (db *DB) GetUserStats(ctx context.Context) (*models.UserStats, error) {
	query := `SELECT COUNT(*),
                     COALESCE(SUM(CASE WHEN is_active = 1 THEN 1 ELSE 0 END), 0),
                     COALESCE(SUM(CASE WHEN phone IS NOT NULL AND phone <> '' THEN 1 ELSE 0 END), 0)
              FROM users`
	var stats models.UserStats
	if err := db.QueryRowContext(ctx, query).Scan(&stats.Total, &stats.Active, &stats.WithPhone); err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	return &stats, nil
}

func (db *DB) queryUsers(ctx context.Context, query string, args ...interface{}) ([]*models.User, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.TelegramID, &user.Username, &user.FirstName, &user.LastName, &user.Phone,
		&user.IsActive, &user.LastActivity, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

var _ rowScanner = (*sql.Row)(nil)
