package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jmoiron/sqlx"

	"github.com/and161185/wordkeeper/internal/errs"
	"github.com/and161185/wordkeeper/internal/model"
	"github.com/and161185/wordkeeper/internal/repository"
	"github.com/and161185/wordkeeper/internal/srs"
)

// ProgressRepo stores review progress records in the cache.
type ProgressRepo struct{ db *DB }

// NewProgressRepo returns a progress repository on db.
func NewProgressRepo(db *DB) *ProgressRepo { return &ProgressRepo{db: db} }

var _ repository.ProgressCache = (*ProgressRepo)(nil)

const progressCols = `id, owner_id, item_id, assessment, interval_days, repetition_count, easiness_factor,
	next_review_date, reviewed_at, sync_status, created_at, updated_at`

const insertProgressSQL = `INSERT INTO progress (` + progressCols + `) VALUES (
	:id, :owner_id, :item_id, :assessment, :interval_days, :repetition_count, :easiness_factor,
	:next_review_date, :reviewed_at, :sync_status, :created_at, :updated_at)`

const upsertProgressSQL = insertProgressSQL + `
ON CONFLICT(id) DO UPDATE SET
	item_id          = excluded.item_id,
	assessment       = excluded.assessment,
	interval_days    = excluded.interval_days,
	repetition_count = excluded.repetition_count,
	easiness_factor  = excluded.easiness_factor,
	next_review_date = excluded.next_review_date,
	reviewed_at      = excluded.reviewed_at,
	sync_status      = excluded.sync_status,
	created_at       = excluded.created_at,
	updated_at       = excluded.updated_at
WHERE progress.owner_id = excluded.owner_id
	AND NOT (progress.sync_status = 'pending' AND progress.updated_at > excluded.updated_at)`

type progressRow struct {
	ID              string  `db:"id"`
	OwnerID         string  `db:"owner_id"`
	ItemID          string  `db:"item_id"`
	Assessment      string  `db:"assessment"`
	IntervalDays    int     `db:"interval_days"`
	RepetitionCount int     `db:"repetition_count"`
	EasinessFactor  float64 `db:"easiness_factor"`
	NextReviewDate  string  `db:"next_review_date"`
	ReviewedAt      int64   `db:"reviewed_at"`
	SyncStatus      string  `db:"sync_status"`
	CreatedAt       int64   `db:"created_at"`
	UpdatedAt       int64   `db:"updated_at"`
}

func toProgressRow(p model.ProgressRecord) progressRow {
	return progressRow{
		ID:              p.ID.String(),
		OwnerID:         p.OwnerID.String(),
		ItemID:          p.ItemID.String(),
		Assessment:      p.Assessment.String(),
		IntervalDays:    p.IntervalDays,
		RepetitionCount: p.RepetitionCount,
		EasinessFactor:  p.EasinessFactor,
		NextReviewDate:  srs.FormatDate(p.NextReviewDate),
		ReviewedAt:      millis(p.ReviewedAt),
		SyncStatus:      string(p.SyncStatus),
		CreatedAt:       millis(p.CreatedAt),
		UpdatedAt:       millis(p.UpdatedAt),
	}
}

func (r progressRow) model() (model.ProgressRecord, error) {
	var p model.ProgressRecord
	var err error
	if p.ID, err = uuid.FromString(r.ID); err != nil {
		return p, fmt.Errorf("progress id: %w", err)
	}
	if p.OwnerID, err = uuid.FromString(r.OwnerID); err != nil {
		return p, fmt.Errorf("progress owner: %w", err)
	}
	if p.ItemID, err = uuid.FromString(r.ItemID); err != nil {
		return p, fmt.Errorf("progress item: %w", err)
	}
	if p.Assessment, err = srs.ParseAssessment(r.Assessment); err != nil {
		return p, fmt.Errorf("progress assessment: %w", err)
	}
	if p.NextReviewDate, err = srs.ParseDate(r.NextReviewDate); err != nil {
		return p, fmt.Errorf("progress next review date: %w", err)
	}
	p.IntervalDays = r.IntervalDays
	p.RepetitionCount = r.RepetitionCount
	p.EasinessFactor = r.EasinessFactor
	p.ReviewedAt = fromMillis(r.ReviewedAt)
	p.SyncStatus = model.SyncStatus(r.SyncStatus)
	p.CreatedAt = fromMillis(r.CreatedAt)
	p.UpdatedAt = fromMillis(r.UpdatedAt)
	return p, nil
}

// UpsertMany writes remote progress records as synced in one transaction.
func (r *ProgressRepo) UpsertMany(ctx context.Context, recs []model.ProgressRecord) error {
	if len(recs) == 0 {
		return nil
	}
	err := r.db.withTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, upsertProgressSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range recs {
			row := toProgressRow(recs[i])
			row.SyncStatus = string(model.StatusSynced)
			if _, err := stmt.ExecContext(ctx, row); err != nil {
				return fmt.Errorf("progress[%d]: %w", i, err)
			}
		}
		return nil
	})
	return errs.Storage("progress.upsert", err)
}

// InsertPending stores a locally recorded review.
func (r *ProgressRepo) InsertPending(ctx context.Context, rec *model.ProgressRecord) error {
	if !rec.Assessment.IsValid() {
		return srs.ErrInvalidAssessment
	}
	now := r.db.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.ReviewedAt.IsZero() {
		rec.ReviewedAt = now
	}
	rec.UpdatedAt = now
	rec.SyncStatus = model.StatusPending

	_, err := r.db.X.NamedExecContext(ctx, insertProgressSQL, toProgressRow(*rec))
	return errs.Storage("progress.insert", err)
}

// UpdateFields applies p, bumps updated_at and marks the record pending.
func (r *ProgressRepo) UpdateFields(ctx context.Context, id, ownerID uuid.UUID, p model.ProgressPatch) error {
	var set setList
	if p.Assessment != nil {
		if !p.Assessment.IsValid() {
			return srs.ErrInvalidAssessment
		}
		set.add("assessment", p.Assessment.String())
	}
	if p.NextReviewDate != nil {
		set.add("next_review_date", srs.FormatDate(*p.NextReviewDate))
	}
	set.add("sync_status", string(model.StatusPending))
	set.add("updated_at", millis(r.db.now()))

	q := `UPDATE progress SET ` + set.String() + ` WHERE id = ? AND owner_id = ?`
	args := append(set.args, id.String(), ownerID.String())
	res, err := r.db.X.ExecContext(ctx, q, args...)
	if err != nil {
		return errs.Storage("progress.update", err)
	}
	return errs.Storage("progress.update", affectedOne(res))
}

func (r *ProgressRepo) selectProgress(ctx context.Context, op, where string, args ...any) ([]model.ProgressRecord, error) {
	var rows []progressRow
	if err := r.db.X.SelectContext(ctx, &rows, `SELECT `+progressCols+` FROM progress WHERE `+where, args...); err != nil {
		return nil, errs.Storage(op, err)
	}
	out := make([]model.ProgressRecord, 0, len(rows))
	for _, row := range rows {
		p, err := row.model()
		if err != nil {
			return nil, errs.Storage(op, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *ProgressRepo) GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.ProgressRecord, error) {
	return r.selectProgress(ctx, "progress.by_owner", `owner_id = ? ORDER BY reviewed_at, id`, ownerID.String())
}

func (r *ProgressRepo) GetByID(ctx context.Context, id, ownerID uuid.UUID) (*model.ProgressRecord, error) {
	var row progressRow
	err := r.db.X.GetContext(ctx, &row,
		`SELECT `+progressCols+` FROM progress WHERE id = ? AND owner_id = ?`, id.String(), ownerID.String())
	if err != nil {
		return nil, errs.Storage("progress.by_id", notFound(err))
	}
	p, err := row.model()
	if err != nil {
		return nil, errs.Storage("progress.by_id", err)
	}
	return &p, nil
}

// GetByItem lists the review history of one item, oldest first.
func (r *ProgressRepo) GetByItem(ctx context.Context, itemID, ownerID uuid.UUID) ([]model.ProgressRecord, error) {
	return r.selectProgress(ctx, "progress.by_item",
		`item_id = ? AND owner_id = ? ORDER BY reviewed_at, id`, itemID.String(), ownerID.String())
}

func (r *ProgressRepo) GetPending(ctx context.Context, ownerID uuid.UUID) ([]model.ProgressRecord, error) {
	return r.selectProgress(ctx, "progress.pending",
		`owner_id = ? AND sync_status = ? ORDER BY updated_at, id`, ownerID.String(), string(model.StatusPending))
}

func (r *ProgressRepo) GetUpdatedSince(ctx context.Context, since time.Time, ownerID uuid.UUID) ([]model.ProgressRecord, error) {
	return r.selectProgress(ctx, "progress.updated_since",
		`owner_id = ? AND updated_at > ? ORDER BY updated_at, id`, ownerID.String(), millis(since))
}

func (r *ProgressRepo) MarkSynced(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID, asOf time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := execIn(ctx, r.db.X,
		`UPDATE progress SET sync_status = ? WHERE owner_id = ? AND sync_status = ? AND updated_at <= ? AND id IN (?)`,
		string(model.StatusSynced), ownerID.String(), string(model.StatusPending), millis(asOf), idStrings(ids))
	return errs.Storage("progress.mark_synced", err)
}

func (r *ProgressRepo) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	res, err := r.db.X.ExecContext(ctx, `DELETE FROM progress WHERE id = ? AND owner_id = ?`, id.String(), ownerID.String())
	if err != nil {
		return errs.Storage("progress.delete", err)
	}
	return errs.Storage("progress.delete", affectedOne(res))
}
