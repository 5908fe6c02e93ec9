package models

import "time"

// Service - услуга, на которую можно записаться.
type Service struct {
	ID              int64     `json:"id" yaml:"id"`
	Name            string    `json:"name" yaml:"name"`
	Description     string    `json:"description" yaml:"description"`
	Price           int       `json:"price" yaml:"price"`
	DurationMinutes int       `json:"duration_minutes" yaml:"duration_minutes"`
	IsActive        bool      `json:"is_active" yaml:"is_active"`
	CreatedAt       time.Time `json:"created_at" yaml:"-"`
	UpdatedAt       time.Time `json:"updated_at" yaml:"-"`
}
