package srs

import (
	"fmt"
	"math"
	"time"

	"github.com/and161185/wordkeeper/internal/errs"
)

// Easiness bounds and default for new items.
const (
	MinEasiness     = 1.3
	MaxEasiness     = 2.5
	DefaultEasiness = 2.5
)

// ErrInvariant marks a scheduling state that validated inputs can never produce.
var ErrInvariant = fmt.Errorf("srs: %w", errs.ErrSchedulingInvariant)

// State is the scheduling state embedded on a vocabulary item.
type State struct {
	IntervalDays    int
	RepetitionCount int
	EasinessFactor  float64
}

// Review is the state after an assessment plus the calendar day it is due again.
type Review struct {
	State
	NextReviewDate time.Time
}

// Next computes the scheduling state that follows assessment a on the calendar day of today.
func Next(cur State, a Assessment, today time.Time) (Review, error) {
	if !a.IsValid() {
		return Review{}, fmt.Errorf("%w: %d", ErrInvalidAssessment, int(a))
	}
	if cur.IntervalDays < 0 || cur.RepetitionCount < 0 ||
		math.IsNaN(cur.EasinessFactor) || math.IsInf(cur.EasinessFactor, 0) {
		return Review{}, fmt.Errorf("%w: interval=%d repetitions=%d easiness=%v",
			ErrInvariant, cur.IntervalDays, cur.RepetitionCount, cur.EasinessFactor)
	}

	ef := cur.EasinessFactor
	if ef == 0 {
		ef = DefaultEasiness
	}
	ef = clampEasiness(ef)

	next := State{EasinessFactor: ef}
	switch a {
	case Again:
		next.EasinessFactor = clampEasiness(ef - 0.20)
		next.RepetitionCount = 0
		next.IntervalDays = 0
	case Hard:
		next.EasinessFactor = clampEasiness(ef - 0.15)
		next.RepetitionCount = cur.RepetitionCount + 1
		if cur.IntervalDays == 0 {
			next.IntervalDays = 1
		} else {
			next.IntervalDays = max(1, roundHalfUp(float64(cur.IntervalDays)*1.2))
		}
	case Good:
		next.RepetitionCount = cur.RepetitionCount + 1
		switch next.RepetitionCount {
		case 1:
			next.IntervalDays = 1
		case 2:
			next.IntervalDays = 6
		default:
			next.IntervalDays = roundHalfUp(float64(cur.IntervalDays) * next.EasinessFactor)
		}
	case Easy:
		next.EasinessFactor = clampEasiness(ef + 0.15)
		next.RepetitionCount = cur.RepetitionCount + 1
		switch next.RepetitionCount {
		case 1:
			next.IntervalDays = 4
		case 2:
			next.IntervalDays = 10
		default:
			next.IntervalDays = roundHalfUp(float64(cur.IntervalDays) * next.EasinessFactor * 1.3)
		}
	}

	if next.EasinessFactor < MinEasiness || next.EasinessFactor > MaxEasiness || next.IntervalDays < 0 {
		return Review{}, fmt.Errorf("%w: produced %+v", ErrInvariant, next)
	}
	return Review{State: next, NextReviewDate: DueOn(today, next.IntervalDays)}, nil
}

// clampEasiness bounds ef and stores it to two decimal places.
func clampEasiness(ef float64) float64 {
	ef = math.Floor(ef*100+0.5) / 100
	return math.Min(MaxEasiness, math.Max(MinEasiness, ef))
}

func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
