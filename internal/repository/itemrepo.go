package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/wordkeeper/internal/model"
)

// ItemCache is the local store of vocabulary items.
type ItemCache interface {
	// UpsertMany writes remote rows as synced, atomically per batch.
	UpsertMany(ctx context.Context, items []model.VocabularyItem) error
	// InsertPending stores a locally created item with sync_status=pending.
	InsertPending(ctx context.Context, item *model.VocabularyItem) error
	// UpdateFields changes the supplied fields, bumps updated_at and marks the row pending.
	UpdateFields(ctx context.Context, id, ownerID uuid.UUID, p model.ItemPatch) error
	// GetByOwner lists all items of the owner.
	GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.VocabularyItem, error)
	// GetByID loads one item of the owner.
	GetByID(ctx context.Context, id, ownerID uuid.UUID) (*model.VocabularyItem, error)
	// GetByCollection lists the owner's items in a collection.
	GetByCollection(ctx context.Context, collectionID, ownerID uuid.UUID) ([]model.VocabularyItem, error)
	// GetDue lists items whose next review date is on or before today.
	GetDue(ctx context.Context, ownerID uuid.UUID, today time.Time) ([]model.VocabularyItem, error)
	// FindByKey looks an item up by lemma, part of speech and article.
	FindByKey(ctx context.Context, ownerID uuid.UUID, lemma, partOfSpeech, article string) (*model.VocabularyItem, error)
	// GetPending lists rows waiting to be pushed.
	GetPending(ctx context.Context, ownerID uuid.UUID) ([]model.VocabularyItem, error)
	// GetUpdatedSince lists rows with updated_at strictly after since.
	GetUpdatedSince(ctx context.Context, since time.Time, ownerID uuid.UUID) ([]model.VocabularyItem, error)
	// MarkSynced flips pushed rows not modified after asOf to synced.
	MarkSynced(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID, asOf time.Time) error
	// Delete removes an item.
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
}

// ProgressCache is the local store of review progress records.
type ProgressCache interface {
	UpsertMany(ctx context.Context, recs []model.ProgressRecord) error
	InsertPending(ctx context.Context, rec *model.ProgressRecord) error
	UpdateFields(ctx context.Context, id, ownerID uuid.UUID, p model.ProgressPatch) error
	GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.ProgressRecord, error)
	GetByID(ctx context.Context, id, ownerID uuid.UUID) (*model.ProgressRecord, error)
	GetByItem(ctx context.Context, itemID, ownerID uuid.UUID) ([]model.ProgressRecord, error)
	GetPending(ctx context.Context, ownerID uuid.UUID) ([]model.ProgressRecord, error)
	GetUpdatedSince(ctx context.Context, since time.Time, ownerID uuid.UUID) ([]model.ProgressRecord, error)
	MarkSynced(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID, asOf time.Time) error
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
}

// CollectionCache is the local store of collections. Deletion is soft until synced.
type CollectionCache interface {
	UpsertMany(ctx context.Context, cols []model.Collection) error
	InsertPending(ctx context.Context, col *model.Collection) error
	UpdateFields(ctx context.Context, id, ownerID uuid.UUID, p model.CollectionPatch) error
	GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Collection, error)
	GetByID(ctx context.Context, id, ownerID uuid.UUID) (*model.Collection, error)
	// GetPending includes soft-deleted rows so their deletion can be pushed.
	GetPending(ctx context.Context, ownerID uuid.UUID) ([]model.Collection, error)
	GetUpdatedSince(ctx context.Context, since time.Time, ownerID uuid.UUID) ([]model.Collection, error)
	// MarkSynced flips pending rows to synced and purges pushed tombstones.
	MarkSynced(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID, asOf time.Time) error
	// MarkDeleted soft-deletes a collection (sync_status=deleted).
	MarkDeleted(ctx context.Context, id, ownerID uuid.UUID) error
}
