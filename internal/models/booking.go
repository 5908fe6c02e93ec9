package models

import "time"

// Booking - заявка на услугу. Удаление заявки администратором - её конечное состояние.
type Booking struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	ServiceID     int64     `json:"service_id"`
	ServiceName   string    `json:"service_name"`
	ClientName    string    `json:"client_name"`
	Phone         string    `json:"phone"`
	PreferredDate string    `json:"preferred_date"`
	PreferredTime string    `json:"preferred_time"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
