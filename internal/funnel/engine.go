// Package funnel решает, какой шаг курса показать пользователю и когда курс считается пройденным.
//
// В базе прогресс хранится парой (current_step, is_completed). Причину завершения
// (все бесплатные шаги пройдены или остановка на платном) пакет выводит заново при
// каждом чтении, потому что администратор может менять шаги уже после завершения.
package funnel

import (
	"errors"
	"fmt"
	"time"

	"kabinet/internal/models"
)

var (
	// ErrNoSteps - в курсе нет ни одного шага.
	ErrNoSteps = errors.New("funnel has no steps")
	// ErrStepOutOfRange - current_step не указывает ни на один шаг.
	ErrStepOutOfRange = errors.New("funnel step out of range")
)

// Status - почему прогресс находится там, где находится.
type Status int

const (
	StatusInProgress Status = iota
	StatusCompletedAllFree
	StatusStoppedAtPaid
)

func (s Status) String() string {
	switch s {
	case StatusCompletedAllFree:
		return "completed_all_free"
	case StatusStoppedAtPaid:
		return "stopped_at_paid"
	default:
		return "in_progress"
	}
}

// Position - выведенное состояние прогресса. Step равен 0, если шаг определить нельзя.
type Position struct {
	Status Status
	Step   int
}

// Classify derives the tagged position from the stored pair without trusting the flag.
// The step type at the current position decides; the flag only separates "on the last
// free step" from "finished it".
func Classify(steps []models.FunnelStep, p *models.FunnelProgress) Position {
	total := len(steps)
	cur := p.CurrentStep
	switch {
	case total == 0, cur < 1:
		return Position{Status: StatusInProgress}
	case cur > total:
		return Position{Status: StatusCompletedAllFree, Step: total}
	}

	if !steps[cur-1].IsFree {
		return Position{Status: StatusStoppedAtPaid, Step: cur}
	}
	if p.IsCompleted && cur == total {
		return Position{Status: StatusCompletedAllFree, Step: cur}
	}
	return Position{Status: StatusInProgress, Step: cur}
}

// ViewKind - что показать пользователю.
type ViewKind int

const (
	ViewStep ViewKind = iota
	ViewPaidWall
	ViewFinished
)

// View - результат Render: шаг и то, как его подать.
type View struct {
	Kind  ViewKind
	Step  models.FunnelStep
	Index int
	Total int
}

// HasNext reports whether the "next" button should be offered.
func (v View) HasNext() bool { return v.Kind == ViewStep }

// Render picks the step to present and updates completion flags in place.
// changed reports whether p must be persisted.
func Render(steps []models.FunnelStep, p *models.FunnelProgress, now time.Time) (View, bool, error) {
	total := len(steps)
	if total == 0 {
		return View{}, false, ErrNoSteps
	}

	changed := false
	if p.IsCompleted && p.CurrentStep >= 1 && p.CurrentStep < total && hasFreeFrom(steps, p.CurrentStep) {
		p.IsCompleted = false
		p.CompletedAt = nil
		changed = true
	}

	cur := p.CurrentStep
	if cur > total && p.IsCompleted {
		// шаги удалили после завершения: показываем последний как финал
		return View{Kind: ViewFinished, Step: steps[total-1], Index: total, Total: total}, changed, nil
	}
	if cur < 1 || cur > total {
		return View{}, changed, fmt.Errorf("%w: step %d of %d", ErrStepOutOfRange, cur, total)
	}

	step := steps[cur-1]
	view := View{Kind: ViewStep, Step: step, Index: cur, Total: total}
	switch {
	case !step.IsFree:
		view.Kind = ViewPaidWall
		changed = complete(p, now) || changed
	case cur == total:
		view.Kind = ViewFinished
		changed = complete(p, now) || changed
	}
	return view, changed, nil
}

// Advance moves p one step forward. It never passes a paid step and never moves
// past the end, so current_step only grows.
func Advance(steps []models.FunnelStep, p *models.FunnelProgress, now time.Time) bool {
	total := len(steps)
	cur := p.CurrentStep
	if cur < 1 || cur > total {
		return false
	}
	if !steps[cur-1].IsFree {
		return false
	}

	p.CurrentStep = cur + 1
	p.LastActivity = now
	if p.CurrentStep > total {
		complete(p, now)
	} else if !steps[p.CurrentStep-1].IsFree {
		complete(p, now)
	}
	return true
}

// Reset returns p to the first step.
func Reset(p *models.FunnelProgress, now time.Time) {
	p.CurrentStep = 1
	p.IsCompleted = false
	p.CompletedAt = nil
	p.LastActivity = now
}

// NewProgress - прогресс для первого входа в курс.
func NewProgress(userID, funnelID int64, now time.Time) *models.FunnelProgress {
	return &models.FunnelProgress{
		UserID:       userID,
		FunnelID:     funnelID,
		CurrentStep:  1,
		StartedAt:    now,
		LastActivity: now,
	}
}

// Tally folds progress records into funnel statistics.
func Tally(funnelID int64, steps []models.FunnelStep, progress []*models.FunnelProgress) models.FunnelStats {
	stats := models.FunnelStats{FunnelID: funnelID, StepReach: make(map[int]int)}
	for _, p := range progress {
		stats.Started++
		pos := Classify(steps, p)
		switch pos.Status {
		case StatusCompletedAllFree:
			stats.CompletedAllFree++
		case StatusStoppedAtPaid:
			stats.StoppedAtPaid++
		default:
			stats.InProgress++
		}
		if pos.Step > 0 {
			stats.StepReach[pos.Step]++
		}
	}
	return stats
}

// complete stamps completed_at only on the transition.
func complete(p *models.FunnelProgress, now time.Time) bool {
	if p.IsCompleted {
		return false
	}
	p.IsCompleted = true
	t := now
	p.CompletedAt = &t
	return true
}

// hasFreeFrom scans from the 1-based position cur (inclusive) to the end.
func hasFreeFrom(steps []models.FunnelStep, cur int) bool {
	for i := cur - 1; i < len(steps); i++ {
		if i >= 0 && steps[i].IsFree {
			return true
		}
	}
	return false
}
