package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jmoiron/sqlx"

	"github.com/and161185/wordkeeper/internal/errs"
	"github.com/and161185/wordkeeper/internal/model"
	"github.com/and161185/wordkeeper/internal/repository"
)

// CollectionRepo stores collections in the cache. Deletes are tombstones until pushed.
type CollectionRepo struct{ db *DB }

// NewCollectionRepo returns a collection repository on db.
func NewCollectionRepo(db *DB) *CollectionRepo { return &CollectionRepo{db: db} }

var _ repository.CollectionCache = (*CollectionRepo)(nil)

const collectionCols = `id, owner_id, name, is_shared, shared_with, sync_status, created_at, updated_at`

const insertCollectionSQL = `INSERT INTO collections (` + collectionCols + `) VALUES (
	:id, :owner_id, :name, :is_shared, :shared_with, :sync_status, :created_at, :updated_at)`

// A local tombstone or pending edit newer than the incoming row survives.
const upsertCollectionSQL = insertCollectionSQL + `
ON CONFLICT(id) DO UPDATE SET
	name        = excluded.name,
	is_shared   = excluded.is_shared,
	shared_with = excluded.shared_with,
	sync_status = excluded.sync_status,
	created_at  = excluded.created_at,
	updated_at  = excluded.updated_at
WHERE collections.owner_id = excluded.owner_id
	AND NOT (collections.sync_status IN ('pending', 'deleted') AND collections.updated_at > excluded.updated_at)`

type collectionRow struct {
	ID         string `db:"id"`
	OwnerID    string `db:"owner_id"`
	Name       string `db:"name"`
	IsShared   bool   `db:"is_shared"`
	SharedWith string `db:"shared_with"`
	SyncStatus string `db:"sync_status"`
	CreatedAt  int64  `db:"created_at"`
	UpdatedAt  int64  `db:"updated_at"`
}

func toCollectionRow(c model.Collection) (collectionRow, error) {
	shared, err := encodeShared(c.SharedWith)
	if err != nil {
		return collectionRow{}, err
	}
	return collectionRow{
		ID:         c.ID.String(),
		OwnerID:    c.OwnerID.String(),
		Name:       c.Name,
		IsShared:   c.IsShared,
		SharedWith: shared,
		SyncStatus: string(c.SyncStatus),
		CreatedAt:  millis(c.CreatedAt),
		UpdatedAt:  millis(c.UpdatedAt),
	}, nil
}

func encodeShared(ids []uuid.UUID) (string, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	return marshalJSON(idStrings(ids), "[]")
}

func (r collectionRow) model() (model.Collection, error) {
	var c model.Collection
	var err error
	if c.ID, err = uuid.FromString(r.ID); err != nil {
		return c, fmt.Errorf("collection id: %w", err)
	}
	if c.OwnerID, err = uuid.FromString(r.OwnerID); err != nil {
		return c, fmt.Errorf("collection owner: %w", err)
	}
	var shared []string
	if r.SharedWith != "" {
		if err := json.Unmarshal([]byte(r.SharedWith), &shared); err != nil {
			return c, fmt.Errorf("collection shared_with: %w", err)
		}
	}
	for _, s := range shared {
		id, err := uuid.FromString(s)
		if err != nil {
			return c, fmt.Errorf("collection shared_with: %w", err)
		}
		c.SharedWith = append(c.SharedWith, id)
	}
	c.Name = r.Name
	c.IsShared = r.IsShared
	c.SyncStatus = model.SyncStatus(r.SyncStatus)
	c.CreatedAt = fromMillis(r.CreatedAt)
	c.UpdatedAt = fromMillis(r.UpdatedAt)
	return c, nil
}

// UpsertMany writes remote collections as synced in one transaction.
func (r *CollectionRepo) UpsertMany(ctx context.Context, cols []model.Collection) error {
	if len(cols) == 0 {
		return nil
	}
	err := r.db.withTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, upsertCollectionSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range cols {
			row, err := toCollectionRow(cols[i])
			if err != nil {
				return fmt.Errorf("collection[%d]: %w", i, err)
			}
			row.SyncStatus = string(model.StatusSynced)
			if _, err := stmt.ExecContext(ctx, row); err != nil {
				return fmt.Errorf("collection[%d]: %w", i, err)
			}
		}
		return nil
	})
	return errs.Storage("collections.upsert", err)
}

func (r *CollectionRepo) InsertPending(ctx context.Context, col *model.Collection) error {
	now := r.db.now()
	if col.CreatedAt.IsZero() {
		col.CreatedAt = now
	}
	col.UpdatedAt = now
	col.SyncStatus = model.StatusPending

	row, err := toCollectionRow(*col)
	if err != nil {
		return errs.Storage("collections.insert", err)
	}
	_, err = r.db.X.NamedExecContext(ctx, insertCollectionSQL, row)
	return errs.Storage("collections.insert", err)
}

// UpdateFields applies p to a live collection, bumps updated_at and marks it pending.
func (r *CollectionRepo) UpdateFields(ctx context.Context, id, ownerID uuid.UUID, p model.CollectionPatch) error {
	var set setList
	if p.Name != nil {
		set.add("name", *p.Name)
	}
	if p.IsShared != nil {
		set.add("is_shared", *p.IsShared)
	}
	if p.SharedWith != nil {
		s, err := encodeShared(p.SharedWith)
		if err != nil {
			return errs.Storage("collections.update", err)
		}
		set.add("shared_with", s)
	}
	set.add("sync_status", string(model.StatusPending))
	set.add("updated_at", millis(r.db.now()))

	q := `UPDATE collections SET ` + set.String() + ` WHERE id = ? AND owner_id = ? AND sync_status <> 'deleted'`
	args := append(set.args, id.String(), ownerID.String())
	res, err := r.db.X.ExecContext(ctx, q, args...)
	if err != nil {
		return errs.Storage("collections.update", err)
	}
	return errs.Storage("collections.update", affectedOne(res))
}

func (r *CollectionRepo) selectCollections(ctx context.Context, op, where string, args ...any) ([]model.Collection, error) {
	var rows []collectionRow
	if err := r.db.X.SelectContext(ctx, &rows, `SELECT `+collectionCols+` FROM collections WHERE `+where, args...); err != nil {
		return nil, errs.Storage(op, err)
	}
	out := make([]model.Collection, 0, len(rows))
	for _, row := range rows {
		c, err := row.model()
		if err != nil {
			return nil, errs.Storage(op, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// GetByOwner lists live collections of the owner.
func (r *CollectionRepo) GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Collection, error) {
	return r.selectCollections(ctx, "collections.by_owner",
		`owner_id = ? AND sync_status <> 'deleted' ORDER BY name, id`, ownerID.String())
}

func (r *CollectionRepo) GetByID(ctx context.Context, id, ownerID uuid.UUID) (*model.Collection, error) {
	var row collectionRow
	err := r.db.X.GetContext(ctx, &row,
		`SELECT `+collectionCols+` FROM collections WHERE id = ? AND owner_id = ? AND sync_status <> 'deleted'`,
		id.String(), ownerID.String())
	if err != nil {
		return nil, errs.Storage("collections.by_id", notFound(err))
	}
	c, err := row.model()
	if err != nil {
		return nil, errs.Storage("collections.by_id", err)
	}
	return &c, nil
}

func (r *CollectionRepo) GetPending(ctx context.Context, ownerID uuid.UUID) ([]model.Collection, error) {
	return r.selectCollections(ctx, "collections.pending",
		`owner_id = ? AND sync_status IN ('pending', 'deleted') ORDER BY updated_at, id`, ownerID.String())
}

func (r *CollectionRepo) GetUpdatedSince(ctx context.Context, since time.Time, ownerID uuid.UUID) ([]model.Collection, error) {
	return r.selectCollections(ctx, "collections.updated_since",
		`owner_id = ? AND updated_at > ? ORDER BY updated_at, id`, ownerID.String(), millis(since))
}

// MarkSynced flips pushed collections to synced and purges pushed tombstones.
func (r *CollectionRepo) MarkSynced(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID, asOf time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	owner, cutoff, keys := ownerID.String(), millis(asOf), idStrings(ids)
	err := r.db.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := execIn(ctx, tx,
			`DELETE FROM collections WHERE owner_id = ? AND sync_status = 'deleted' AND updated_at <= ? AND id IN (?)`,
			owner, cutoff, keys); err != nil {
			return err
		}
		_, err := execIn(ctx, tx,
			`UPDATE collections SET sync_status = 'synced' WHERE owner_id = ? AND sync_status = 'pending' AND updated_at <= ? AND id IN (?)`,
			owner, cutoff, keys)
		return err
	})
	return errs.Storage("collections.mark_synced", err)
}

// MarkDeleted turns a live collection into a tombstone.
func (r *CollectionRepo) MarkDeleted(ctx context.Context, id, ownerID uuid.UUID) error {
	res, err := r.db.X.ExecContext(ctx,
		`UPDATE collections SET sync_status = 'deleted', updated_at = ? WHERE id = ? AND owner_id = ? AND sync_status <> 'deleted'`,
		millis(r.db.now()), id.String(), ownerID.String())
	if err != nil {
		return errs.Storage("collections.mark_deleted", err)
	}
	return errs.Storage("collections.mark_deleted", affectedOne(res))
}
