// Package convert maps domain models to wire messages and back.
package convert

import (
	"fmt"
	"time"

	u "github.com/gofrs/uuid/v5"

	"github.com/and161185/wordkeeper/internal/model"
	"github.com/and161185/wordkeeper/internal/srs"
	"github.com/and161185/wordkeeper/internal/wire"
)

// --- helpers ---

func ts(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

func fromTS(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func parseID(field, s string) (u.UUID, error) {
	var id u.UUID
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return u.Nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return id, nil
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := srs.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return d, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return srs.FormatDate(t)
}

// --- Items ---

// ToWireItem converts a domain item for the wire, timestamps included.
func ToWireItem(it model.VocabularyItem) wire.Item {
	w := ToWirePushItem(it)
	w.CreatedAt = ts(it.CreatedAt)
	w.UpdatedAt = ts(it.UpdatedAt)
	return w
}

// ToWirePushItem converts a domain item for a push. Server-managed timestamps are left out.
func ToWirePushItem(it model.VocabularyItem) wire.Item {
	w := wire.Item{
		ID:              it.ID.String(),
		OwnerID:         it.OwnerID.String(),
		Lemma:           it.Lemma,
		PartOfSpeech:    it.PartOfSpeech,
		Article:         it.Article,
		Translation:     it.Translation,
		ImageURL:        it.ImageURL,
		Grammar:         it.Grammar.Clone(),
		IntervalDays:    it.IntervalDays,
		RepetitionCount: it.RepetitionCount,
		EasinessFactor:  it.EasinessFactor,
		NextReviewDate:  formatDate(it.NextReviewDate),
	}
	if it.CollectionID.Valid {
		w.CollectionID = it.CollectionID.UUID.String()
	}
	if it.LastReviewedAt != nil {
		w.LastReviewedAt = ts(*it.LastReviewedAt)
	}
	return w
}

// FromWireItem converts a wire item to the domain model. The sync status is synced.
func FromWireItem(in wire.Item) (model.VocabularyItem, error) {
	var it model.VocabularyItem
	var err error
	if it.ID, err = parseID("id", in.ID); err != nil {
		return it, err
	}
	if it.OwnerID, err = parseID("owner_id", in.OwnerID); err != nil {
		return it, err
	}
	if in.CollectionID != "" {
		cid, err := parseID("collection_id", in.CollectionID)
		if err != nil {
			return it, err
		}
		it.CollectionID = u.NullUUID{UUID: cid, Valid: true}
	}
	if it.NextReviewDate, err = parseDate("next_review_date", in.NextReviewDate); err != nil {
		return it, err
	}
	it.Lemma = in.Lemma
	it.PartOfSpeech = in.PartOfSpeech
	it.Article = in.Article
	it.Translation = in.Translation
	it.ImageURL = in.ImageURL
	it.Grammar = model.Grammar(in.Grammar).Clone()
	it.IntervalDays = in.IntervalDays
	it.RepetitionCount = in.RepetitionCount
	it.EasinessFactor = in.EasinessFactor
	if in.LastReviewedAt != nil {
		t := in.LastReviewedAt.UTC()
		it.LastReviewedAt = &t
	}
	it.CreatedAt = fromTS(in.CreatedAt)
	it.UpdatedAt = fromTS(in.UpdatedAt)
	it.SyncStatus = model.StatusSynced
	return it, nil
}

// ToWireItems converts items including timestamps.
func ToWireItems(in []model.VocabularyItem) []wire.Item {
	out := make([]wire.Item, 0, len(in))
	for _, it := range in {
		out = append(out, ToWireItem(it))
	}
	return out
}

// ToWirePushItems converts items for a push.
func ToWirePushItems(in []model.VocabularyItem) []wire.Item {
	out := make([]wire.Item, 0, len(in))
	for _, it := range in {
		out = append(out, ToWirePushItem(it))
	}
	return out
}

// FromWireItems converts wire items, failing on the first bad one.
func FromWireItems(in []wire.Item) ([]model.VocabularyItem, error) {
	out := make([]model.VocabularyItem, 0, len(in))
	for i, w := range in {
		it, err := FromWireItem(w)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}
		out = append(out, it)
	}
	return out, nil
}

// --- Collections ---

// ToWireCollection converts a collection; a deleted one becomes a tombstone.
func ToWireCollection(c model.Collection) wire.Collection {
	w := wire.Collection{
		ID:        c.ID.String(),
		OwnerID:   c.OwnerID.String(),
		Name:      c.Name,
		IsShared:  c.IsShared,
		Deleted:   c.SyncStatus == model.StatusDeleted,
		CreatedAt: ts(c.CreatedAt),
		UpdatedAt: ts(c.UpdatedAt),
	}
	for _, id := range c.SharedWith {
		w.SharedWith = append(w.SharedWith, id.String())
	}
	return w
}

// FromWireCollection converts a wire collection. Tombstones get StatusDeleted.
func FromWireCollection(in wire.Collection) (model.Collection, error) {
	var c model.Collection
	var err error
	if c.ID, err = parseID("id", in.ID); err != nil {
		return c, err
	}
	if c.OwnerID, err = parseID("owner_id", in.OwnerID); err != nil {
		return c, err
	}
	for i, s := range in.SharedWith {
		id, err := parseID(fmt.Sprintf("shared_with[%d]", i), s)
		if err != nil {
			return c, err
		}
		c.SharedWith = append(c.SharedWith, id)
	}
	c.Name = in.Name
	c.IsShared = in.IsShared
	c.CreatedAt = fromTS(in.CreatedAt)
	c.UpdatedAt = fromTS(in.UpdatedAt)
	c.SyncStatus = model.StatusSynced
	if in.Deleted {
		c.SyncStatus = model.StatusDeleted
	}
	return c, nil
}

func ToWireCollections(in []model.Collection) []wire.Collection {
	out := make([]wire.Collection, 0, len(in))
	for _, c := range in {
		out = append(out, ToWireCollection(c))
	}
	return out
}

func FromWireCollections(in []wire.Collection) ([]model.Collection, error) {
	out := make([]model.Collection, 0, len(in))
	for i, w := range in {
		c, err := FromWireCollection(w)
		if err != nil {
			return nil, fmt.Errorf("collection[%d]: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// --- Progress ---

// ToWireProgress converts a progress record.
func ToWireProgress(p model.ProgressRecord) wire.Progress {
	return wire.Progress{
		ID:              p.ID.String(),
		OwnerID:         p.OwnerID.String(),
		ItemID:          p.ItemID.String(),
		Assessment:      p.Assessment.String(),
		IntervalDays:    p.IntervalDays,
		RepetitionCount: p.RepetitionCount,
		EasinessFactor:  p.EasinessFactor,
		NextReviewDate:  formatDate(p.NextReviewDate),
		ReviewedAt:      p.ReviewedAt.UTC(),
		UpdatedAt:       ts(p.UpdatedAt),
	}
}

// FromWireProgress converts a wire progress record; the assessment must be valid.
func FromWireProgress(in wire.Progress) (model.ProgressRecord, error) {
	var p model.ProgressRecord
	var err error
	if p.ID, err = parseID("id", in.ID); err != nil {
		return p, err
	}
	if p.OwnerID, err = parseID("owner_id", in.OwnerID); err != nil {
		return p, err
	}
	if p.ItemID, err = parseID("item_id", in.ItemID); err != nil {
		return p, err
	}
	if p.Assessment, err = srs.ParseAssessment(in.Assessment); err != nil {
		return p, err
	}
	if p.NextReviewDate, err = parseDate("next_review_date", in.NextReviewDate); err != nil {
		return p, err
	}
	p.IntervalDays = in.IntervalDays
	p.RepetitionCount = in.RepetitionCount
	p.EasinessFactor = in.EasinessFactor
	p.ReviewedAt = in.ReviewedAt.UTC()
	p.UpdatedAt = fromTS(in.UpdatedAt)
	p.SyncStatus = model.StatusSynced
	return p, nil
}

func ToWireProgressList(in []model.ProgressRecord) []wire.Progress {
	out := make([]wire.Progress, 0, len(in))
	for _, p := range in {
		out = append(out, ToWireProgress(p))
	}
	return out
}

func FromWireProgressList(in []wire.Progress) ([]model.ProgressRecord, error) {
	out := make([]model.ProgressRecord, 0, len(in))
	for i, w := range in {
		p, err := FromWireProgress(w)
		if err != nil {
			return nil, fmt.Errorf("progress[%d]: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}
