package syncer

import (
	"encoding/json"
	"math"
	"time"

	"github.com/and161185/wordkeeper/internal/model"
	"github.com/and161185/wordkeeper/internal/srs"
)

// normalizeCollections fills a missing updated_at from created_at, or from now.
func normalizeCollections(cols []model.Collection, now time.Time) {
	for i := range cols {
		c := &cols[i]
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = c.CreatedAt
		}
	}
}

// normalizeItems makes remote items satisfy the cache invariants: timestamps set,
// scheduling fields in range, a next review date present and only valid grammar payloads.
func normalizeItems(items []model.VocabularyItem, now time.Time) {
	for i := range items {
		it := &items[i]
		if it.CreatedAt.IsZero() {
			it.CreatedAt = now
		}
		if it.UpdatedAt.IsZero() {
			it.UpdatedAt = it.CreatedAt
		}
		if it.IntervalDays < 0 {
			it.IntervalDays = 0
		}
		if it.RepetitionCount < 0 {
			it.RepetitionCount = 0
		}
		switch {
		case it.EasinessFactor == 0 || math.IsNaN(it.EasinessFactor):
			it.EasinessFactor = srs.DefaultEasiness
		case it.EasinessFactor < srs.MinEasiness:
			it.EasinessFactor = srs.MinEasiness
		case it.EasinessFactor > srs.MaxEasiness:
			it.EasinessFactor = srs.MaxEasiness
		}
		if it.NextReviewDate.IsZero() {
			it.NextReviewDate = srs.Date(it.CreatedAt)
		} else {
			it.NextReviewDate = srs.Date(it.NextReviewDate)
		}
		for k, v := range it.Grammar {
			if len(v) == 0 || string(v) == "null" || !json.Valid(v) {
				delete(it.Grammar, k)
			}
		}
	}
}
