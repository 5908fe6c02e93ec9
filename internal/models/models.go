package models

import "time"

// UserState - состояние диалога пользователя. CurrentStep хранит ожидаемое поле формы,
// TempData - уже собранные значения.
type UserState struct {
	UserID      int64
	CurrentStep string
	TempData    map[string]interface{}
}

// Has reports whether every key is present in TempData.
func (s *UserState) Has(keys ...string) bool {
	for _, key := range keys {
		if s.TempData == nil {
			return false
		}
		if _, ok := s.TempData[key]; !ok {
			return false
		}
	}
	return true
}

func (s *UserState) GetInt64(key string) int64 {
	if s.TempData == nil {
		return 0
	}
	val, ok := s.TempData[key]
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	default:
		return 0
	}
}

func (s *UserState) GetBool(key string) bool {
	if s.TempData == nil {
		return false
	}
	v, ok := s.TempData[key].(bool)
	return ok && v
}

func (s *UserState) GetTime(key string) time.Time {
	if s.TempData == nil {
		return time.Time{}
	}
	val, ok := s.TempData[key]
	if !ok {
		return time.Time{}
	}
	switch v := val.(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}
		}
		return t
	default:
		return time.Time{}
	}
}

func (s *UserState) GetString(key string) string {
	if s.TempData == nil {
		return ""
	}
	val, ok := s.TempData[key]
	if !ok {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}
