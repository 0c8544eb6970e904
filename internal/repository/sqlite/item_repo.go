package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jmoiron/sqlx"

	"github.com/and161185/wordkeeper/internal/errs"
	"github.com/and161185/wordkeeper/internal/model"
	"github.com/and161185/wordkeeper/internal/repository"
	"github.com/and161185/wordkeeper/internal/srs"
)

// ItemRepo stores vocabulary items in the cache.
type ItemRepo struct{ db *DB }

// NewItemRepo returns an item repository on db.
func NewItemRepo(db *DB) *ItemRepo { return &ItemRepo{db: db} }

var _ repository.ItemCache = (*ItemRepo)(nil)

const itemCols = `id, owner_id, collection_id, lemma, part_of_speech, article, translation, image_url,
	grammar, interval_days, repetition_count, easiness_factor, next_review_date, last_reviewed_at,
	sync_status, created_at, updated_at`

const insertItemSQL = `INSERT INTO items (` + itemCols + `) VALUES (
	:id, :owner_id, :collection_id, :lemma, :part_of_speech, :article, :translation, :image_url,
	:grammar, :interval_days, :repetition_count, :easiness_factor, :next_review_date, :last_reviewed_at,
	:sync_status, :created_at, :updated_at)`

// A local pending row newer than the incoming one wins; rows of another owner are never touched.
const upsertItemSQL = insertItemSQL + `
ON CONFLICT(id) DO UPDATE SET
	collection_id    = excluded.collection_id,
	lemma            = excluded.lemma,
	part_of_speech   = excluded.part_of_speech,
	article          = excluded.article,
	translation      = excluded.translation,
	image_url        = excluded.image_url,
	grammar          = excluded.grammar,
	interval_days    = excluded.interval_days,
	repetition_count = excluded.repetition_count,
	easiness_factor  = excluded.easiness_factor,
	next_review_date = excluded.next_review_date,
	last_reviewed_at = excluded.last_reviewed_at,
	sync_status      = excluded.sync_status,
	created_at       = excluded.created_at,
	updated_at       = excluded.updated_at
WHERE items.owner_id = excluded.owner_id
	AND NOT (items.sync_status = 'pending' AND items.updated_at > excluded.updated_at)`

type itemRow struct {
	ID              string         `db:"id"`
	OwnerID         string         `db:"owner_id"`
	CollectionID    sql.NullString `db:"collection_id"`
	Lemma           string         `db:"lemma"`
	PartOfSpeech    string         `db:"part_of_speech"`
	Article         string         `db:"article"`
	Translation     string         `db:"translation"`
	ImageURL        string         `db:"image_url"`
	Grammar         string         `db:"grammar"`
	IntervalDays    int            `db:"interval_days"`
	RepetitionCount int            `db:"repetition_count"`
	EasinessFactor  float64        `db:"easiness_factor"`
	NextReviewDate  string         `db:"next_review_date"`
	LastReviewedAt  sql.NullInt64  `db:"last_reviewed_at"`
	SyncStatus      string         `db:"sync_status"`
	CreatedAt       int64          `db:"created_at"`
	UpdatedAt       int64          `db:"updated_at"`
}

func toItemRow(it model.VocabularyItem) (itemRow, error) {
	grammar, err := marshalJSON(it.Grammar, "{}")
	if err != nil {
		return itemRow{}, err
	}
	if it.Grammar == nil {
		grammar = "{}"
	}
	return itemRow{
		ID:              it.ID.String(),
		OwnerID:         it.OwnerID.String(),
		CollectionID:    nullUUID(it.CollectionID),
		Lemma:           it.Lemma,
		PartOfSpeech:    it.PartOfSpeech,
		Article:         it.Article,
		Translation:     it.Translation,
		ImageURL:        it.ImageURL,
		Grammar:         grammar,
		IntervalDays:    it.IntervalDays,
		RepetitionCount: it.RepetitionCount,
		EasinessFactor:  it.EasinessFactor,
		NextReviewDate:  srs.FormatDate(it.NextReviewDate),
		LastReviewedAt:  nullMillis(it.LastReviewedAt),
		SyncStatus:      string(it.SyncStatus),
		CreatedAt:       millis(it.CreatedAt),
		UpdatedAt:       millis(it.UpdatedAt),
	}, nil
}

func (r itemRow) model() (model.VocabularyItem, error) {
	var it model.VocabularyItem
	var err error
	if it.ID, err = uuid.FromString(r.ID); err != nil {
		return it, fmt.Errorf("item id: %w", err)
	}
	if it.OwnerID, err = uuid.FromString(r.OwnerID); err != nil {
		return it, fmt.Errorf("item owner: %w", err)
	}
	if it.CollectionID, err = parseNullUUID(r.CollectionID); err != nil {
		return it, fmt.Errorf("item collection: %w", err)
	}
	if r.Grammar != "" && r.Grammar != "{}" {
		if err := json.Unmarshal([]byte(r.Grammar), &it.Grammar); err != nil {
			return it, fmt.Errorf("item grammar: %w", err)
		}
	}
	if it.NextReviewDate, err = srs.ParseDate(r.NextReviewDate); err != nil {
		return it, fmt.Errorf("item next review date: %w", err)
	}
	it.Lemma = r.Lemma
	it.PartOfSpeech = r.PartOfSpeech
	it.Article = r.Article
	it.Translation = r.Translation
	it.ImageURL = r.ImageURL
	it.IntervalDays = r.IntervalDays
	it.RepetitionCount = r.RepetitionCount
	it.EasinessFactor = r.EasinessFactor
	it.LastReviewedAt = timePtr(r.LastReviewedAt)
	it.SyncStatus = model.SyncStatus(r.SyncStatus)
	it.CreatedAt = fromMillis(r.CreatedAt)
	it.UpdatedAt = fromMillis(r.UpdatedAt)
	return it, nil
}

// UpsertMany writes remote items as synced in one transaction.
func (r *ItemRepo) UpsertMany(ctx context.Context, items []model.VocabularyItem) error {
	if len(items) == 0 {
		return nil
	}
	err := r.db.withTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, upsertItemSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range items {
			row, err := toItemRow(items[i])
			if err != nil {
				return fmt.Errorf("item[%d]: %w", i, err)
			}
			row.SyncStatus = string(model.StatusSynced)
			if _, err := stmt.ExecContext(ctx, row); err != nil {
				return fmt.Errorf("item[%d]: %w", i, err)
			}
		}
		return nil
	})
	return errs.Storage("items.upsert", err)
}

// InsertPending stores a locally created item. Zero timestamps are stamped with the current time.
func (r *ItemRepo) InsertPending(ctx context.Context, item *model.VocabularyItem) error {
	now := r.db.now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	if item.EasinessFactor == 0 {
		item.EasinessFactor = srs.DefaultEasiness
	}
	if item.NextReviewDate.IsZero() {
		item.NextReviewDate = srs.Date(now)
	}
	item.SyncStatus = model.StatusPending

	row, err := toItemRow(*item)
	if err != nil {
		return errs.Storage("items.insert", err)
	}
	_, err = r.db.X.NamedExecContext(ctx, insertItemSQL, row)
	return errs.Storage("items.insert", err)
}

// UpdateFields applies p, bumps updated_at and marks the item pending.
func (r *ItemRepo) UpdateFields(ctx context.Context, id, ownerID uuid.UUID, p model.ItemPatch) error {
	var set setList
	if p.CollectionID != nil {
		set.add("collection_id", nullUUID(*p.CollectionID))
	}
	if p.Lemma != nil {
		set.add("lemma", *p.Lemma)
	}
	if p.PartOfSpeech != nil {
		set.add("part_of_speech", *p.PartOfSpeech)
	}
	if p.Article != nil {
		set.add("article", *p.Article)
	}
	if p.Translation != nil {
		set.add("translation", *p.Translation)
	}
	if p.ImageURL != nil {
		set.add("image_url", *p.ImageURL)
	}
	if p.Grammar != nil {
		g, err := marshalJSON(p.Grammar, "{}")
		if err != nil {
			return errs.Storage("items.update", err)
		}
		set.add("grammar", g)
	}
	if p.IntervalDays != nil {
		set.add("interval_days", *p.IntervalDays)
	}
	if p.RepetitionCount != nil {
		set.add("repetition_count", *p.RepetitionCount)
	}
	if p.EasinessFactor != nil {
		set.add("easiness_factor", *p.EasinessFactor)
	}
	if p.NextReviewDate != nil {
		set.add("next_review_date", srs.FormatDate(*p.NextReviewDate))
	}
	if p.LastReviewedAt != nil {
		set.add("last_reviewed_at", p.LastReviewedAt.UnixMilli())
	}
	set.add("sync_status", string(model.StatusPending))
	set.add("updated_at", millis(r.db.now()))

	q := `UPDATE items SET ` + set.String() + ` WHERE id = ? AND owner_id = ?`
	args := append(set.args, id.String(), ownerID.String())
	res, err := r.db.X.ExecContext(ctx, q, args...)
	if err != nil {
		return errs.Storage("items.update", err)
	}
	return errs.Storage("items.update", affectedOne(res))
}

func (r *ItemRepo) selectItems(ctx context.Context, op, where string, args ...any) ([]model.VocabularyItem, error) {
	var rows []itemRow
	if err := r.db.X.SelectContext(ctx, &rows, `SELECT `+itemCols+` FROM items WHERE `+where, args...); err != nil {
		return nil, errs.Storage(op, err)
	}
	out := make([]model.VocabularyItem, 0, len(rows))
	for _, row := range rows {
		it, err := row.model()
		if err != nil {
			return nil, errs.Storage(op, err)
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *ItemRepo) getOne(ctx context.Context, op, where string, args ...any) (*model.VocabularyItem, error) {
	var row itemRow
	err := r.db.X.GetContext(ctx, &row, `SELECT `+itemCols+` FROM items WHERE `+where+` LIMIT 1`, args...)
	if err != nil {
		return nil, errs.Storage(op, notFound(err))
	}
	it, err := row.model()
	if err != nil {
		return nil, errs.Storage(op, err)
	}
	return &it, nil
}

// GetByOwner lists the owner's items, oldest first.
func (r *ItemRepo) GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.VocabularyItem, error) {
	return r.selectItems(ctx, "items.by_owner", `owner_id = ? ORDER BY created_at, id`, ownerID.String())
}

// GetByID loads one item; errs.ErrNotFound if the owner has no such item.
func (r *ItemRepo) GetByID(ctx context.Context, id, ownerID uuid.UUID) (*model.VocabularyItem, error) {
	return r.getOne(ctx, "items.by_id", `id = ? AND owner_id = ?`, id.String(), ownerID.String())
}

// GetByCollection lists the owner's items in a collection.
func (r *ItemRepo) GetByCollection(ctx context.Context, collectionID, ownerID uuid.UUID) ([]model.VocabularyItem, error) {
	return r.selectItems(ctx, "items.by_collection",
		`collection_id = ? AND owner_id = ? ORDER BY created_at, id`, collectionID.String(), ownerID.String())
}

// GetDue lists items due on or before today, earliest first.
func (r *ItemRepo) GetDue(ctx context.Context, ownerID uuid.UUID, today time.Time) ([]model.VocabularyItem, error) {
	return r.selectItems(ctx, "items.due",
		`owner_id = ? AND next_review_date <= ? ORDER BY next_review_date, created_at, id`,
		ownerID.String(), srs.FormatDate(srs.Date(today)))
}

// FindByKey matches lemma, part of speech and article ignoring case (any script) and outer spaces.
func (r *ItemRepo) FindByKey(ctx context.Context, ownerID uuid.UUID, lemma, partOfSpeech, article string) (*model.VocabularyItem, error) {
	return r.getOne(ctx, "items.by_key",
		`owner_id = ? AND `+keyFunc+`(lemma) = ? AND `+keyFunc+`(part_of_speech) = ? AND `+keyFunc+`(article) = ?`,
		ownerID.String(), foldKey(lemma), foldKey(partOfSpeech), foldKey(article))
}

// GetPending lists items waiting to be pushed.
func (r *ItemRepo) GetPending(ctx context.Context, ownerID uuid.UUID) ([]model.VocabularyItem, error) {
	return r.selectItems(ctx, "items.pending",
		`owner_id = ? AND sync_status = ? ORDER BY updated_at, id`, ownerID.String(), string(model.StatusPending))
}

// GetUpdatedSince lists items with updated_at strictly after since.
func (r *ItemRepo) GetUpdatedSince(ctx context.Context, since time.Time, ownerID uuid.UUID) ([]model.VocabularyItem, error) {
	return r.selectItems(ctx, "items.updated_since",
		`owner_id = ? AND updated_at > ? ORDER BY updated_at, id`, ownerID.String(), millis(since))
}

// MarkSynced flips the given pending items to synced unless they changed after asOf.
func (r *ItemRepo) MarkSynced(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID, asOf time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := execIn(ctx, r.db.X,
		`UPDATE items SET sync_status = ? WHERE owner_id = ? AND sync_status = ? AND updated_at <= ? AND id IN (?)`,
		string(model.StatusSynced), ownerID.String(), string(model.StatusPending), millis(asOf), idStrings(ids))
	return errs.Storage("items.mark_synced", err)
}

// Delete removes the item from the cache.
func (r *ItemRepo) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	res, err := r.db.X.ExecContext(ctx, `DELETE FROM items WHERE id = ? AND owner_id = ?`, id.String(), ownerID.String())
	if err != nil {
		return errs.Storage("items.delete", err)
	}
	return errs.Storage("items.delete", affectedOne(res))
}
