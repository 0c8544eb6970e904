// Package model defines domain entities shared by the cache, sync, session and server layers.
package model

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/wordkeeper/internal/srs"
)

// SyncStatus tracks whether a locally cached row has reached the remote store.
type SyncStatus string

const (
	StatusSynced   SyncStatus = "synced"
	StatusPending  SyncStatus = "pending"
	StatusError    SyncStatus = "error"
	StatusConflict SyncStatus = "conflict"
	StatusDeleted  SyncStatus = "deleted"
)

// Valid reports whether s is one of the known statuses.
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusSynced, StatusPending, StatusError, StatusConflict, StatusDeleted:
		return true
	}
	return false
}

// Grammar holds optional grammatical metadata (irregular, reflexive, separable, conjugation, ...).
// Values are opaque JSON; no key is guaranteed to be present.
type Grammar map[string]json.RawMessage

// Clone returns a copy that shares no map with g.
func (g Grammar) Clone() Grammar {
	if g == nil {
		return nil
	}
	out := make(Grammar, len(g))
	for k, v := range g {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// VocabularyItem is a single learning unit with its current scheduling state embedded.
type VocabularyItem struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	CollectionID uuid.NullUUID
	Lemma        string
	PartOfSpeech string
	Article      string
	Translation  string
	ImageURL     string
	Grammar      Grammar

	IntervalDays    int
	RepetitionCount int
	EasinessFactor  float64
	NextReviewDate  time.Time // calendar day, UTC midnight
	LastReviewedAt  *time.Time

	SyncStatus SyncStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time // sync watermark
}

// SRS returns the scheduling state embedded on the item.
func (v VocabularyItem) SRS() srs.State {
	return srs.State{
		IntervalDays:    v.IntervalDays,
		RepetitionCount: v.RepetitionCount,
		EasinessFactor:  v.EasinessFactor,
	}
}

// Clone returns a deep copy of the item.
func (v VocabularyItem) Clone() VocabularyItem {
	out := v
	out.Grammar = v.Grammar.Clone()
	if v.LastReviewedAt != nil {
		t := *v.LastReviewedAt
		out.LastReviewedAt = &t
	}
	return out
}

// ItemPatch lists the item fields to change. Nil fields are left untouched.
type ItemPatch struct {
	CollectionID *uuid.NullUUID
	Lemma        *string
	PartOfSpeech *string
	Article      *string
	Translation  *string
	ImageURL     *string
	Grammar      Grammar

	IntervalDays    *int
	RepetitionCount *int
	EasinessFactor  *float64
	NextReviewDate  *time.Time
	LastReviewedAt  *time.Time
}

// ReviewPatch builds the patch that stores a scheduling result on an item.
func ReviewPatch(r srs.Review, reviewedAt time.Time) ItemPatch {
	return ItemPatch{
		IntervalDays:    &r.IntervalDays,
		RepetitionCount: &r.RepetitionCount,
		EasinessFactor:  &r.EasinessFactor,
		NextReviewDate:  &r.NextReviewDate,
		LastReviewedAt:  &reviewedAt,
	}
}

// Collection is a named grouping of items owned by a user.
type Collection struct {
	ID         uuid.UUID
	OwnerID    uuid.UUID
	Name       string
	IsShared   bool
	SharedWith []uuid.UUID
	SyncStatus SyncStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CollectionPatch lists the collection fields to change. Nil fields are left untouched.
type CollectionPatch struct {
	Name       *string
	IsShared   *bool
	SharedWith []uuid.UUID
}

// ProgressRecord is one review event for an (owner, item) pair.
type ProgressRecord struct {
	ID              uuid.UUID
	OwnerID         uuid.UUID
	ItemID          uuid.UUID
	Assessment      srs.Assessment
	IntervalDays    int
	RepetitionCount int
	EasinessFactor  float64
	NextReviewDate  time.Time
	ReviewedAt      time.Time
	SyncStatus      SyncStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProgressPatch lists the progress fields to change. Nil fields are left untouched.
type ProgressPatch struct {
	Assessment     *srs.Assessment
	NextReviewDate *time.Time
}

// SyncOutcome classifies a sync run.
type SyncOutcome string

const (
	SyncOK       SyncOutcome = "ok"
	SyncConflict SyncOutcome = "conflict"
	SyncFailure  SyncOutcome = "failure"
)

// SyncResult is what one sync run reports to its caller and subscribers.
type SyncResult struct {
	Success           bool        `json:"success"`
	Outcome           SyncOutcome `json:"outcome"`
	WordsSynced       int         `json:"wordsSynced"`
	ProgressSynced    int         `json:"progressSynced"`
	CollectionsSynced int         `json:"collectionsSynced"`
	Error             string      `json:"error,omitempty"`
	Err               error       `json:"-"`
	Timestamp         time.Time   `json:"timestamp"`
}
