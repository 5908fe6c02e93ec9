package bot

import "time"

func (b *Bot) observeUpdate(kind string, start time.Time) {
	if b.metrics == nil {
		return
	}
	b.metrics.UpdatesProcessed.WithLabelValues(kind).Inc()
	b.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
}

func (b *Bot) countError(kind string) {
	if b.metrics == nil {
		return
	}
	b.metrics.ErrorsTotal.WithLabelValues(kind).Inc()
}

// countForm - исходы форм: started, completed, cancelled, failed.
func (b *Bot) countForm(form, outcome string) {
	if b.metrics == nil || form == "" {
		return
	}
	b.metrics.FormsTotal.WithLabelValues(form, outcome).Inc()
}
