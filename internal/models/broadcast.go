package models

import "time"

// BroadcastSettings - единственная запись с текстом рассылки по умолчанию.
type BroadcastSettings struct {
	ID          int64     `json:"id"`
	DefaultText string    `json:"default_text"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BroadcastKind - вид рассылки.
type BroadcastKind string

const (
	BroadcastText      BroadcastKind = "text"
	BroadcastVideo     BroadcastKind = "video"
	BroadcastVideoNote BroadcastKind = "video_note"
)

// BroadcastContent - то, что рассылается всем активным пользователям.
type BroadcastContent struct {
	Kind    BroadcastKind
	Text    string
	FileID  string
	Caption string
}
