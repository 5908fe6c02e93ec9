package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kabinet/internal/models"
)

const serviceColumns = `id, name, description, price, duration_minutes, is_active, created_at, updated_at`

func (db *DB) CreateService(ctx context.Context, service *models.Service) error {
	query := `INSERT INTO services (name, description, price, duration_minutes, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	res, err := db.ExecContext(ctx, query,
		service.Name, service.Description, service.Price, service.DurationMinutes, service.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	service.ID = id
	service.CreatedAt = now
	service.UpdatedAt = now
	db.services.Add(id, *service)
	return nil
}

// GetService сначала смотрит в LRU-кэш.
func (db *DB) GetService(ctx context.Context, id int64) (*models.Service, error) {
	if cached, ok := db.services.Get(id); ok {
		return &cached, nil
	}
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = ?`
	service, err := scanService(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "service", id)
	}
	db.services.Add(id, *service)
	return service, nil
}

func (db *DB) GetServiceByName(ctx context.Context, name string) (*models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE name = ?`
	service, err := scanService(db.QueryRowContext(ctx, query, name))
	if err != nil {
		return nil, notFound(err, "service", 0)
	}
	return service, nil
}

func (db *DB) GetActiveServices(ctx context.Context) ([]*models.Service, error) {
	return db.queryServices(ctx, `SELECT `+serviceColumns+` FROM services WHERE is_active = 1 ORDER BY id`)
}

func (db *DB) GetAllServices(ctx context.Context) ([]*models.Service, error) {
	return db.queryServices(ctx, `SELECT `+serviceColumns+` FROM services ORDER BY id`)
}

func (db *DB) SetServiceActive(ctx context.Context, id int64, active bool) error {
	res, err := db.ExecContext(ctx, `UPDATE services SET is_active = ?, updated_at = ? WHERE id = ?`, active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}
	db.services.Remove(id)
	return expectAffected(res, "service", id)
}

// DeleteService удаляет услугу вместе с заявками на неё.
func (db *DB) DeleteService(ctx context.Context, id int64) error {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE service_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete service bookings: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM services WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete service: %w", err)
		}
		return expectAffected(res, "service", id)
	})
	db.services.Remove(id)
	return err
}

// SyncServices приводит каталог к списку из файла: новые создаются, существующие
// (по имени) обновляются. Услуги, которых нет в файле, не трогаются.
func (db *DB) SyncServices(ctx context.Context, services []models.Service) error {
	query := `INSERT INTO services (name, description, price, duration_minutes, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(name) DO UPDATE SET
                description = excluded.description,
                price = excluded.price,
                duration_minutes = excluded.duration_minutes,
                is_active = excluded.is_active,
                updated_at = excluded.updated_at`
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		for _, s := range services {
			if _, err := tx.ExecContext(ctx, query, s.Name, s.Description, s.Price, s.DurationMinutes, s.IsActive, now, now); err != nil {
				return fmt.Errorf("failed to sync service %q: %w", s.Name, err)
			}
		}
		return nil
	})
	db.services.Purge()
	return err
}

func (db *DB) queryServices(ctx context.Context, query string, args ...interface{}) ([]*models.Service, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query services: %w", err)
	}
	defer rows.Close()

	var services []*models.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func scanService(row rowScanner) (*models.Service, error) {
	var s models.Service
	if err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Price, &s.DurationMinutes, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
