package models

import (
	"strings"
	"time"
)

// ContentType - тип содержимого шага воронки.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentVideo ContentType = "video"
	ContentAudio ContentType = "audio"
)

// Valid reports whether c is one of the known content types.
func (c ContentType) Valid() bool {
	switch c {
	case ContentText, ContentVideo, ContentAudio:
		return true
	}
	return false
}

// StepAccess - бесплатный или платный шаг.
type StepAccess int

const (
	AccessFree StepAccess = iota + 1
	AccessPaid
)

// Токены, которые администратор вводит при создании шага.
const (
	AccessTokenFree = "бесплатный"
	AccessTokenPaid = "платный"
)

// ParseStepAccess matches admin input against the two accepted tokens.
func ParseStepAccess(raw string) (StepAccess, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case AccessTokenFree:
		return AccessFree, true
	case AccessTokenPaid:
		return AccessPaid, true
	}
	return 0, false
}

func (a StepAccess) IsFree() bool { return a == AccessFree }

func (a StepAccess) String() string {
	if a == AccessPaid {
		return "Платный"
	}
	return "Бесплатный"
}

// AccessOf converts the stored flag back to the enum.
func AccessOf(isFree bool) StepAccess {
	if isFree {
		return AccessFree
	}
	return AccessPaid
}

// Funnel - курс из последовательных шагов.
type Funnel struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	StepsCount  int       `json:"steps_count"`
}

// FunnelStep - шаг курса. Order начинается с 1 и не имеет пропусков.
type FunnelStep struct {
	ID          int64       `json:"id"`
	FunnelID    int64       `json:"funnel_id"`
	Order       int         `json:"order"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	ContentType ContentType `json:"content_type"`
	FileID      string      `json:"file_id,omitempty"`
	IsFree      bool        `json:"is_free"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Access returns the step gate as an enum.
func (s FunnelStep) Access() StepAccess { return AccessOf(s.IsFree) }

// FunnelProgress - положение пользователя в курсе. Одна запись на пару (пользователь, курс).
type FunnelProgress struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	FunnelID     int64      `json:"funnel_id"`
	CurrentStep  int        `json:"current_step"`
	IsCompleted  bool       `json:"is_completed"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	LastActivity time.Time  `json:"last_activity"`
}

// FunnelStats - статистика прохождения курса.
type FunnelStats struct {
	FunnelID         int64       `json:"funnel_id"`
	Started          int         `json:"started"`
	InProgress       int         `json:"in_progress"`
	CompletedAllFree int         `json:"completed_all_free"`
	StoppedAtPaid    int         `json:"stopped_at_paid"`
	StepReach        map[int]int `json:"step_reach"`
}
