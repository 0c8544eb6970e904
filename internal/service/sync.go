package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/wordkeeper/internal/errs"
	"github.com/and161185/wordkeeper/internal/model"
	"github.com/and161185/wordkeeper/internal/repository"
	"github.com/and161185/wordkeeper/internal/srs"
)

// SyncService defines the remote store operations a client sync pass calls.
type SyncService interface {
	// PullCollections returns all live collections of the owner.
	PullCollections(ctx context.Context, ownerID uuid.UUID) ([]model.Collection, error)
	// PullItems returns items changed after since (zero: all).
	PullItems(ctx context.Context, ownerID uuid.UUID, since time.Time) ([]model.VocabularyItem, error)
	// PushProgress stores review events.
	PushProgress(ctx context.Context, ownerID uuid.UUID, recs []model.ProgressRecord) error
	// PushItems stores items.
	PushItems(ctx context.Context, ownerID uuid.UUID, items []model.VocabularyItem) error
	// PushCollections stores collections and tombstones.
	PushCollections(ctx context.Context, ownerID uuid.UUID, cols []model.Collection) error
}

type SyncServiceImpl struct {
	repo     repository.RemoteRepository
	maxBatch int
}

// NewSyncService constructs SyncService with batch limits.
func NewSyncService(repo repository.RemoteRepository, maxBatch int) *SyncServiceImpl {
	if maxBatch <= 0 {
		maxBatch = 1000
	}
	return &SyncServiceImpl{repo: repo, maxBatch: maxBatch}
}

var errEmptyOwner = fmt.Errorf("%w: empty owner id", errs.ErrValidation)

func (s *SyncServiceImpl) checkBatch(n int) error {
	if s.maxBatch > 0 && n > s.maxBatch {
		return errs.Validation("batch too large (%d > %d)", n, s.maxBatch)
	}
	return nil
}

// checkOwner accepts rows that carry no owner or the caller's owner.
func checkOwner(kind string, i int, rowOwner, owner uuid.UUID) error {
	if rowOwner != uuid.Nil && rowOwner != owner {
		return fmt.Errorf("%w: %s[%d] belongs to another owner", errs.ErrConflict, kind, i)
	}
	return nil
}

func (s *SyncServiceImpl) PullCollections(ctx context.Context, ownerID uuid.UUID) ([]model.Collection, error) {
	if ownerID == uuid.Nil {
		return nil, errEmptyOwner
	}
	return s.repo.ListCollections(ctx, ownerID)
}

func (s *SyncServiceImpl) PullItems(ctx context.Context, ownerID uuid.UUID, since time.Time) ([]model.VocabularyItem, error) {
	if ownerID == uuid.Nil {
		return nil, errEmptyOwner
	}
	return s.repo.ListItemsSince(ctx, ownerID, since)
}

// PushProgress validates input and delegates to the repository.
// Validation rules:
// - each ID and ItemID != uuid.Nil
// - assessment is one of Again..Easy
// - scheduling fields in range
func (s *SyncServiceImpl) PushProgress(ctx context.Context, ownerID uuid.UUID, recs []model.ProgressRecord) error {
	if ownerID == uuid.Nil {
		return errEmptyOwner
	}
	if len(recs) == 0 {
		return nil
	}
	if err := s.checkBatch(len(recs)); err != nil {
		return err
	}
	for i := range recs {
		r := &recs[i]
		if r.ID == uuid.Nil || r.ItemID == uuid.Nil {
			return errs.Validation("progress[%d] empty id", i)
		}
		if err := checkOwner("progress", i, r.OwnerID, ownerID); err != nil {
			return err
		}
		if !r.Assessment.IsValid() {
			return fmt.Errorf("progress[%d]: %w", i, srs.ErrInvalidAssessment)
		}
		if err := checkSchedule(r.IntervalDays, r.RepetitionCount, r.EasinessFactor, r.NextReviewDate); err != nil {
			return fmt.Errorf("progress[%d]: %w", i, err)
		}
		r.OwnerID = ownerID
	}
	return s.repo.UpsertProgress(ctx, ownerID, recs)
}

// PushItems validates input and delegates to the repository.
// Validation rules:
// - each ID != uuid.Nil
// - lemma not blank
// - scheduling fields in range, next review date present
func (s *SyncServiceImpl) PushItems(ctx context.Context, ownerID uuid.UUID, items []model.VocabularyItem) error {
	if ownerID == uuid.Nil {
		return errEmptyOwner
	}
	if len(items) == 0 {
		return nil
	}
	if err := s.checkBatch(len(items)); err != nil {
		return err
	}
	for i := range items {
		it := &items[i]
		if it.ID == uuid.Nil {
			return errs.Validation("item[%d] empty id", i)
		}
		if err := checkOwner("item", i, it.OwnerID, ownerID); err != nil {
			return err
		}
		if strings.TrimSpace(it.Lemma) == "" {
			return errs.Validation("item[%d] empty lemma", i)
		}
		if err := checkSchedule(it.IntervalDays, it.RepetitionCount, it.EasinessFactor, it.NextReviewDate); err != nil {
			return fmt.Errorf("item[%d]: %w", i, err)
		}
		it.OwnerID = ownerID
	}
	return s.repo.UpsertItems(ctx, ownerID, items)
}

// PushCollections validates input and delegates to the repository.
// Validation rules:
// - each ID != uuid.Nil
// - name not blank unless the collection is a tombstone
func (s *SyncServiceImpl) PushCollections(ctx context.Context, ownerID uuid.UUID, cols []model.Collection) error {
	if ownerID == uuid.Nil {
		return errEmptyOwner
	}
	if len(cols) == 0 {
		return nil
	}
	if err := s.checkBatch(len(cols)); err != nil {
		return err
	}
	for i := range cols {
		c := &cols[i]
		if c.ID == uuid.Nil {
			return errs.Validation("collection[%d] empty id", i)
		}
		if err := checkOwner("collection", i, c.OwnerID, ownerID); err != nil {
			return err
		}
		if c.SyncStatus != model.StatusDeleted && strings.TrimSpace(c.Name) == "" {
			return errs.Validation("collection[%d] empty name", i)
		}
		c.OwnerID = ownerID
	}
	return s.repo.UpsertCollections(ctx, ownerID, cols)
}

func checkSchedule(interval, reps int, ef float64, next time.Time) error {
	switch {
	case interval < 0 || reps < 0:
		return errs.Validation("negative interval or repetition count")
	case math.IsNaN(ef) || ef < srs.MinEasiness || ef > srs.MaxEasiness:
		return errs.Validation("easiness factor %.2f out of range", ef)
	case next.IsZero():
		return errs.Validation("missing next review date")
	}
	return nil
}
