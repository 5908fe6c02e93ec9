package worker

import (
	"time"

	"kabinet/internal/models"
)

// RetryPolicy решает, когда повторить выгрузку заявки и когда сдаться.
// Сдавшаяся задача помечается failed и уходит в dead-letter.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy: 2s, 4s, 8s, 16s, затем отказ.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		MaxDelay:    time.Minute,
		Multiplier:  2,
	}
}

// withDefaults заполняет нулевые поля значениями DefaultRetryPolicy.
func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	return p
}

// Exhausted сообщает, что упавшая сейчас попытка была последней.
func (p RetryPolicy) Exhausted(task *models.SyncTask) bool {
	return task.RetryCount+1 >= p.MaxAttempts
}

// Delay - пауза перед повтором задачи, уже упавшей retryCount раз до текущей попытки.
func (p RetryPolicy) Delay(retryCount int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < retryCount && d < p.MaxDelay; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// NextRunAt - момент, когда опрос очереди снова выдаст задачу.
func (p RetryPolicy) NextRunAt(task *models.SyncTask, now time.Time) time.Time {
	return now.Add(p.Delay(task.RetryCount))
}
