// Package vocab implements the client-side word list operations on top of the local cache.
package vocab

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/wordkeeper/internal/errs"
	"github.com/and161185/wordkeeper/internal/model"
	"github.com/and161185/wordkeeper/internal/repository"
	"github.com/and161185/wordkeeper/internal/srs"
)

// Kicker starts a background sync for an owner.
type Kicker interface {
	Kick(ownerID uuid.UUID)
}

// NewItem is the user input for Add.
type NewItem struct {
	OwnerID      uuid.UUID
	CollectionID uuid.NullUUID
	Lemma        string
	PartOfSpeech string
	Article      string
	Translation  string
	ImageURL     string
	Grammar      model.Grammar
}

// Service adds, edits and removes words and collections locally. Every write is pending
// until the next sync; when a Kicker is set it is nudged after each write.
type Service struct {
	items repository.ItemCache
	cols  repository.CollectionCache
	sync  Kicker
	log   *zap.Logger

	Now func() time.Time
}

// New constructs the service. sync may be nil.
func New(items repository.ItemCache, cols repository.CollectionCache, sync Kicker, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{items: items, cols: cols, sync: sync, log: log, Now: time.Now}
}

func (s *Service) kick(owner uuid.UUID) {
	if s.sync != nil {
		s.sync.Kick(owner)
	}
}

// Add stores a new word with default scheduling state (due today).
// A blank lemma is a validation error; a word with the same lemma, part of speech and
// article (case-insensitive) is errs.ErrDuplicate.
func (s *Service) Add(ctx context.Context, in NewItem) (*model.VocabularyItem, error) {
	if in.OwnerID == uuid.Nil {
		return nil, errs.Validation("owner id is required")
	}
	lemma := strings.TrimSpace(in.Lemma)
	if lemma == "" {
		return nil, errs.Validation("lemma is required")
	}
	pos := strings.TrimSpace(in.PartOfSpeech)
	article := strings.TrimSpace(in.Article)

	existing, err := s.items.FindByKey(ctx, in.OwnerID, lemma, pos, article)
	switch {
	case err == nil:
		return existing, fmt.Errorf("%w: %q", errs.ErrDuplicate, lemma)
	case !errors.Is(err, errs.ErrNotFound):
		return nil, err
	}

	if in.CollectionID.Valid {
		if _, err := s.cols.GetByID(ctx, in.CollectionID.UUID, in.OwnerID); err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return nil, errs.Validation("unknown collection %s", in.CollectionID.UUID)
			}
			return nil, err
		}
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("vocab: new id: %w", err)
	}
	now := s.Now()
	it := &model.VocabularyItem{
		ID:             id,
		OwnerID:        in.OwnerID,
		CollectionID:   in.CollectionID,
		Lemma:          lemma,
		PartOfSpeech:   pos,
		Article:        article,
		Translation:    strings.TrimSpace(in.Translation),
		ImageURL:       strings.TrimSpace(in.ImageURL),
		Grammar:        in.Grammar.Clone(),
		EasinessFactor: srs.DefaultEasiness,
		NextReviewDate: srs.Date(now),
		CreatedAt:      now,
	}
	if err := s.items.InsertPending(ctx, it); err != nil {
		return nil, err
	}
	s.log.Debug("item added", zap.String("id", id.String()), zap.String("lemma", lemma))
	s.kick(in.OwnerID)
	return it, nil
}

// List returns the owner's words, optionally limited to one collection.
func (s *Service) List(ctx context.Context, owner uuid.UUID, collection uuid.NullUUID) ([]model.VocabularyItem, error) {
	if collection.Valid {
		return s.items.GetByCollection(ctx, collection.UUID, owner)
	}
	return s.items.GetByOwner(ctx, owner)
}

// Due returns the words to review on the calendar day of now.
func (s *Service) Due(ctx context.Context, owner uuid.UUID) ([]model.VocabularyItem, error) {
	return s.items.GetDue(ctx, owner, srs.Date(s.Now()))
}

// Remove deletes a word from the local cache.
func (s *Service) Remove(ctx context.Context, owner, id uuid.UUID) error {
	return s.items.Delete(ctx, id, owner)
}

// SetImage replaces the image reference of a word.
func (s *Service) SetImage(ctx context.Context, owner, id uuid.UUID, url string) error {
	url = strings.TrimSpace(url)
	if err := s.items.UpdateFields(ctx, id, owner, model.ItemPatch{ImageURL: &url}); err != nil {
		return err
	}
	s.kick(owner)
	return nil
}

// Move puts a word into a collection, or out of any collection when to is not valid.
func (s *Service) Move(ctx context.Context, owner, id uuid.UUID, to uuid.NullUUID) error {
	if to.Valid {
		if _, err := s.cols.GetByID(ctx, to.UUID, owner); err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return errs.Validation("unknown collection %s", to.UUID)
			}
			return err
		}
	}
	if err := s.items.UpdateFields(ctx, id, owner, model.ItemPatch{CollectionID: &to}); err != nil {
		return err
	}
	s.kick(owner)
	return nil
}

// Collections lists the owner's live collections.
func (s *Service) Collections(ctx context.Context, owner uuid.UUID) ([]model.Collection, error) {
	return s.cols.GetByOwner(ctx, owner)
}

// CreateCollection stores a new pending collection.
func (s *Service) CreateCollection(ctx context.Context, owner uuid.UUID, name string) (*model.Collection, error) {
	if owner == uuid.Nil {
		return nil, errs.Validation("owner id is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.Validation("collection name is required")
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("vocab: new id: %w", err)
	}
	c := &model.Collection{ID: id, OwnerID: owner, Name: name, CreatedAt: s.Now()}
	if err := s.cols.InsertPending(ctx, c); err != nil {
		return nil, err
	}
	s.kick(owner)
	return c, nil
}

// RemoveCollection soft-deletes a collection; the deletion reaches the server on the next sync.
func (s *Service) RemoveCollection(ctx context.Context, owner, id uuid.UUID) error {
	if err := s.cols.MarkDeleted(ctx, id, owner); err != nil {
		return err
	}
	s.kick(owner)
	return nil
}
