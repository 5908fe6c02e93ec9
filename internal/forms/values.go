package forms

import (
	"kabinet/internal/models"
)

// Ключи значений в TempData.
const (
	KeyServiceID   = "service_id"
	KeyServiceName = "service_name"
	KeyName        = "name"
	KeyPhone       = "phone"
	KeyDate        = "date"
	KeyTime        = "time"

	KeyFunnelID    = "funnel_id"
	KeyFunnelName  = "funnel_name"
	KeyDescription = "description"
	KeyTitle       = "title"
	KeyContent     = "content"
	KeyContentType = "content_type"
	KeyFileID      = "file_id"
	KeyEditCaption = "edit_caption"
	KeyIsFree      = "is_free"

	KeyKind    = "kind"
	KeyText    = "text"
	KeyCaption = "caption"
	KeyConfirm = "confirm"
)

// Values - значения, собранные формой. После Redis числа приходят как float64,
// поэтому читать их нужно через методы.
type Values map[string]interface{}

func (v Values) state() *models.UserState {
	return &models.UserState{TempData: v}
}

func (v Values) String(key string) string { return v.state().GetString(key) }
func (v Values) Int64(key string) int64   { return v.state().GetInt64(key) }
func (v Values) Bool(key string) bool     { return v.state().GetBool(key) }
func (v Values) Has(key string) bool      { return v.state().Has(key) }

func (v Values) missing(keys []string) []string {
	var out []string
	for _, k := range keys {
		if _, ok := v[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// BookingDraft - собранная заявка.
type BookingDraft struct {
	ServiceID   int64
	ServiceName string
	Name        string
	Phone       string
	Date        string
	Time        string
}

func bookingDraft(v Values) BookingDraft {
	return BookingDraft{
		ServiceID:   v.Int64(KeyServiceID),
		ServiceName: v.String(KeyServiceName),
		Name:        v.String(KeyName),
		Phone:       v.String(KeyPhone),
		Date:        v.String(KeyDate),
		Time:        v.String(KeyTime),
	}
}

func (d BookingDraft) Booking(userID int64) *models.Booking {
	return &models.Booking{
		UserID:        userID,
		ServiceID:     d.ServiceID,
		ServiceName:   d.ServiceName,
		ClientName:    d.Name,
		Phone:         d.Phone,
		PreferredDate: d.Date,
		PreferredTime: d.Time,
	}
}

// StepDraft - новый шаг курса.
type StepDraft struct {
	FunnelID    int64
	Title       string
	Content     string
	ContentType models.ContentType
	FileID      string
	Access      models.StepAccess
}

func stepDraft(v Values) StepDraft {
	d := StepDraft{
		FunnelID:    v.Int64(KeyFunnelID),
		Title:       v.String(KeyTitle),
		Content:     v.String(KeyContent),
		ContentType: models.ContentType(v.String(KeyContentType)),
		FileID:      v.String(KeyFileID),
		Access:      models.AccessOf(v.Bool(KeyIsFree)),
	}
	if !d.ContentType.Valid() {
		d.ContentType = models.ContentText
	}
	return d
}

func (d StepDraft) Step() *models.FunnelStep {
	return &models.FunnelStep{
		FunnelID:    d.FunnelID,
		Title:       d.Title,
		Content:     d.Content,
		ContentType: d.ContentType,
		FileID:      d.FileID,
		IsFree:      d.Access.IsFree(),
	}
}

// FunnelDraft - новый курс.
type FunnelDraft struct {
	Name        string
	Description string
}

func funnelDraft(v Values) FunnelDraft {
	return FunnelDraft{Name: v.String(KeyFunnelName), Description: v.String(KeyDescription)}
}

// BroadcastDraft - содержимое рассылки.
type BroadcastDraft struct {
	Kind    models.BroadcastKind
	Text    string
	FileID  string
	Caption string
}

func broadcastDraft(v Values) BroadcastDraft {
	return BroadcastDraft{
		Kind:    models.BroadcastKind(v.String(KeyKind)),
		Text:    v.String(KeyText),
		FileID:  v.String(KeyFileID),
		Caption: v.String(KeyCaption),
	}
}

func (d BroadcastDraft) Content() models.BroadcastContent {
	return models.BroadcastContent{Kind: d.Kind, Text: d.Text, FileID: d.FileID, Caption: d.Caption}
}
