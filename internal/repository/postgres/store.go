package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/wordkeeper/internal/errs"
	"github.com/and161185/wordkeeper/internal/model"
	"github.com/and161185/wordkeeper/internal/repository"
	"github.com/and161185/wordkeeper/internal/srs"
)

// Store implements RemoteRepository using PostgreSQL.
type Store struct{ db *DB }

// NewStore constructs the remote store.
func NewStore(db *DB) *Store { return &Store{db: db} }

var _ repository.RemoteRepository = (*Store)(nil)

const (
	selCollections = `SELECT id, owner_id, name, is_shared, shared_with::text[], created_at, updated_at
FROM collections
WHERE owner_id=$1 AND NOT deleted
ORDER BY name, id`

	selItemsSince = `SELECT id, owner_id, collection_id, lemma, part_of_speech, article, translation, image_url,
grammar, interval_days, repetition_count, easiness_factor, next_review_date, last_reviewed_at, created_at, updated_at
FROM items
WHERE owner_id=$1 AND updated_at>$2
ORDER BY updated_at ASC, id`

	lockItem = `SELECT owner_id FROM items WHERE id=$1 FOR UPDATE`
	insItem  = `INSERT INTO items (id, owner_id, collection_id, lemma, part_of_speech, article, translation, image_url,
grammar, interval_days, repetition_count, easiness_factor, next_review_date, last_reviewed_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now(),now())`
	updItem = `UPDATE items SET collection_id=$3, lemma=$4, part_of_speech=$5, article=$6, translation=$7, image_url=$8,
grammar=$9, interval_days=$10, repetition_count=$11, easiness_factor=$12, next_review_date=$13, last_reviewed_at=$14,
updated_at=now()
WHERE id=$1 AND owner_id=$2`

	lockProgress = `SELECT owner_id FROM progress WHERE id=$1 FOR UPDATE`
	insProgress  = `INSERT INTO progress (id, owner_id, item_id, assessment, interval_days, repetition_count, easiness_factor,
next_review_date, reviewed_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())`
	updProgress = `UPDATE progress SET item_id=$3, assessment=$4, interval_days=$5, repetition_count=$6, easiness_factor=$7,
next_review_date=$8, reviewed_at=$9, updated_at=now()
WHERE id=$1 AND owner_id=$2`

	lockCollection = `SELECT owner_id FROM collections WHERE id=$1 FOR UPDATE`
	insCollection  = `INSERT INTO collections (id, owner_id, name, is_shared, shared_with, deleted, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5::uuid[],false,now(),now())`
	updCollection = `UPDATE collections SET name=$3, is_shared=$4, shared_with=$5::uuid[], deleted=false, updated_at=now()
WHERE id=$1 AND owner_id=$2`
	delCollection = `UPDATE collections SET deleted=true, updated_at=now() WHERE id=$1 AND owner_id=$2`
)

// ListCollections returns the owner's live collections.
func (s *Store) ListCollections(ctx context.Context, ownerID uuid.UUID) ([]model.Collection, error) {
	rows, err := s.db.Pool.Query(ctx, selCollections, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Collection
	for rows.Next() {
		var c model.Collection
		var shared []string
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.IsShared, &shared, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		for _, sid := range shared {
			id, err := uuid.FromString(sid)
			if err != nil {
				return nil, fmt.Errorf("collection %s shared_with: %w", c.ID, err)
			}
			c.SharedWith = append(c.SharedWith, id)
		}
		c.SyncStatus = model.StatusSynced
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListItemsSince returns items with updated_at strictly after since, oldest first.
func (s *Store) ListItemsSince(ctx context.Context, ownerID uuid.UUID, since time.Time) ([]model.VocabularyItem, error) {
	rows, err := s.db.Pool.Query(ctx, selItemsSince, ownerID, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.VocabularyItem
	for rows.Next() {
		var it model.VocabularyItem
		var grammar []byte
		if err := rows.Scan(
			&it.ID, &it.OwnerID, &it.CollectionID, &it.Lemma, &it.PartOfSpeech, &it.Article, &it.Translation,
			&it.ImageURL, &grammar, &it.IntervalDays, &it.RepetitionCount, &it.EasinessFactor,
			&it.NextReviewDate, &it.LastReviewedAt, &it.CreatedAt, &it.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if len(grammar) > 0 {
			if err := json.Unmarshal(grammar, &it.Grammar); err != nil {
				return nil, fmt.Errorf("item %s grammar: %w", it.ID, err)
			}
		}
		it.NextReviewDate = srs.Date(it.NextReviewDate)
		it.SyncStatus = model.StatusSynced
		out = append(out, it)
	}
	return out, rows.Err()
}

// lockOwner reports whether the row exists, failing with ErrConflict if another owner has it.
func lockOwner(ctx context.Context, tx pgx.Tx, q string, id, ownerID uuid.UUID) (bool, error) {
	var cur uuid.UUID
	err := tx.QueryRow(ctx, q, id).Scan(&cur)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	case err != nil:
		return false, err
	case cur != ownerID:
		return false, errs.ErrConflict
	}
	return true, nil
}

// inTx runs fn in a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()
	return fn(tx)
}

// exec runs a row write, reporting a concurrent insert of the same id as a conflict.
func exec(ctx context.Context, tx pgx.Tx, q string, args ...any) error {
	if _, err := tx.Exec(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return errs.ErrConflict
		}
		return err
	}
	return nil
}

// UpsertItems inserts or updates items in one transaction; the server stamps timestamps.
func (s *Store) UpsertItems(ctx context.Context, ownerID uuid.UUID, items []model.VocabularyItem) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for i := range items {
			it := &items[i]
			grammar, err := grammarJSON(it.Grammar)
			if err != nil {
				return fmt.Errorf("item[%d]: %w", i, err)
			}
			exists, err := lockOwner(ctx, tx, lockItem, it.ID, ownerID)
			if err != nil {
				return fmt.Errorf("item[%d]: %w", i, err)
			}
			q := insItem
			if exists {
				q = updItem
			}
			if err := exec(ctx, tx, q,
				it.ID, ownerID, it.CollectionID, it.Lemma, it.PartOfSpeech, it.Article, it.Translation, it.ImageURL,
				grammar, it.IntervalDays, it.RepetitionCount, it.EasinessFactor, srs.Date(it.NextReviewDate), it.LastReviewedAt,
			); err != nil {
				return fmt.Errorf("item[%d]: %w", i, err)
			}
		}
		return nil
	})
}

// UpsertProgress inserts or updates progress records in one transaction.
func (s *Store) UpsertProgress(ctx context.Context, ownerID uuid.UUID, recs []model.ProgressRecord) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for i := range recs {
			r := &recs[i]
			exists, err := lockOwner(ctx, tx, lockProgress, r.ID, ownerID)
			if err != nil {
				return fmt.Errorf("progress[%d]: %w", i, err)
			}
			q := insProgress
			if exists {
				q = updProgress
			}
			if err := exec(ctx, tx, q,
				r.ID, ownerID, r.ItemID, r.Assessment.String(), r.IntervalDays, r.RepetitionCount, r.EasinessFactor,
				srs.Date(r.NextReviewDate), r.ReviewedAt.UTC(),
			); err != nil {
				return fmt.Errorf("progress[%d]: %w", i, err)
			}
		}
		return nil
	})
}

// UpsertCollections stores live collections and turns deleted ones into tombstones.
// Deleting a collection the server never saw is a no-op.
func (s *Store) UpsertCollections(ctx context.Context, ownerID uuid.UUID, cols []model.Collection) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for i := range cols {
			c := &cols[i]
			exists, err := lockOwner(ctx, tx, lockCollection, c.ID, ownerID)
			if err != nil {
				return fmt.Errorf("collection[%d]: %w", i, err)
			}
			if c.SyncStatus == model.StatusDeleted {
				if exists {
					if err := exec(ctx, tx, delCollection, c.ID, ownerID); err != nil {
						return fmt.Errorf("collection[%d]: %w", i, err)
					}
				}
				continue
			}
			q := insCollection
			if exists {
				q = updCollection
			}
			if err := exec(ctx, tx, q, c.ID, ownerID, c.Name, c.IsShared, sharedStrings(c.SharedWith)); err != nil {
				return fmt.Errorf("collection[%d]: %w", i, err)
			}
		}
		return nil
	})
}

func grammarJSON(g model.Grammar) ([]byte, error) {
	if len(g) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode grammar: %w", err)
	}
	return b, nil
}

func sharedStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
