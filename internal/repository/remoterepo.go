// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/wordkeeper/internal/model"
)

// RemoteRepository is the authoritative server-side store. Every call is scoped to one owner.
type RemoteRepository interface {
	// ListCollections returns all live collections of the owner.
	ListCollections(ctx context.Context, ownerID uuid.UUID) ([]model.Collection, error)
	// ListItemsSince returns items updated strictly after since (zero time: all items).
	ListItemsSince(ctx context.Context, ownerID uuid.UUID, since time.Time) ([]model.VocabularyItem, error)
	// UpsertProgress stores progress records in one transaction.
	UpsertProgress(ctx context.Context, ownerID uuid.UUID, recs []model.ProgressRecord) error
	// UpsertItems stores items in one transaction; the server stamps timestamps.
	UpsertItems(ctx context.Context, ownerID uuid.UUID, items []model.VocabularyItem) error
	// UpsertCollections stores collections; rows with StatusDeleted become tombstones.
	UpsertCollections(ctx context.Context, ownerID uuid.UUID, cols []model.Collection) error
}
