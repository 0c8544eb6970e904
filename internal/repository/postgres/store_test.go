package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/wordkeeper/internal/errs"
	"github.com/and161185/wordkeeper/internal/model"
	"github.com/and161185/wordkeeper/internal/srs"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func item(owner uuid.UUID) model.VocabularyItem {
	return model.VocabularyItem{
		ID:             uuid.Must(uuid.NewV4()),
		OwnerID:        owner,
		Lemma:          "Haus",
		PartOfSpeech:   "noun",
		Article:        "das",
		Translation:    "house",
		EasinessFactor: 2.5,
		NextReviewDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestStore_UpsertItems_Insert_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewStore(db)
	ctx := context.Background()
	owner := uuid.Must(uuid.NewV4())
	it := item(owner)

	mock.ExpectBegin()
	mock.ExpectQuery(q(lockItem)).WithArgs(it.ID).WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(q(insItem)).
		WithArgs(it.ID, owner, it.CollectionID, "Haus", "noun", "das", "house", "",
			[]byte("{}"), 0, 0, 2.5, it.NextReviewDate, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.UpsertItems(ctx, owner, []model.VocabularyItem{it}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpsertItems_Update_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewStore(db)
	ctx := context.Background()
	owner := uuid.Must(uuid.NewV4())
	it := item(owner)

	mock.ExpectBegin()
	mock.ExpectQuery(q(lockItem)).WithArgs(it.ID).
		WillReturnRows(pgxmock.NewRows([]string{"owner_id"}).AddRow(owner))
	mock.ExpectExec(q(updItem)).
		WithArgs(it.ID, owner, pgxmock.AnyArg(), "Haus", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, s.UpsertItems(ctx, owner, []model.VocabularyItem{it}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpsertItems_ForeignOwnerConflict(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewStore(db)
	owner := uuid.Must(uuid.NewV4())
	it := item(owner)

	mock.ExpectBegin()
	mock.ExpectQuery(q(lockItem)).WithArgs(it.ID).
		WillReturnRows(pgxmock.NewRows([]string{"owner_id"}).AddRow(uuid.Must(uuid.NewV4())))
	mock.ExpectRollback()

	err := s.UpsertItems(context.Background(), owner, []model.VocabularyItem{it})
	require.ErrorIs(t, err, errs.ErrConflict)
	require.Contains(t, err.Error(), "item[0]")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpsertProgress_UniqueViolationIsConflict(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewStore(db)
	owner := uuid.Must(uuid.NewV4())
	rec := model.ProgressRecord{
		ID: uuid.Must(uuid.NewV4()), ItemID: uuid.Must(uuid.NewV4()), Assessment: srs.Good,
		IntervalDays: 1, RepetitionCount: 1, EasinessFactor: 2.5,
		NextReviewDate: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
		ReviewedAt:     time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectQuery(q(lockProgress)).WithArgs(rec.ID).WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(q(insProgress)).
		WithArgs(rec.ID, owner, rec.ItemID, "Good", 1, 1, 2.5, rec.NextReviewDate, rec.ReviewedAt).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := s.UpsertProgress(context.Background(), owner, []model.ProgressRecord{rec})
	require.ErrorIs(t, err, errs.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpsertCollections_Tombstones(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewStore(db)
	owner := uuid.Must(uuid.NewV4())
	friend := uuid.Must(uuid.NewV4())

	live := model.Collection{ID: uuid.Must(uuid.NewV4()), Name: "Tiere", IsShared: true, SharedWith: []uuid.UUID{friend}}
	gone := model.Collection{ID: uuid.Must(uuid.NewV4()), SyncStatus: model.StatusDeleted}
	never := model.Collection{ID: uuid.Must(uuid.NewV4()), SyncStatus: model.StatusDeleted}

	mock.ExpectBegin()
	mock.ExpectQuery(q(lockCollection)).WithArgs(live.ID).WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(q(insCollection)).
		WithArgs(live.ID, owner, "Tiere", true, []string{friend.String()}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(q(lockCollection)).WithArgs(gone.ID).
		WillReturnRows(pgxmock.NewRows([]string{"owner_id"}).AddRow(owner))
	mock.ExpectExec(q(delCollection)).WithArgs(gone.ID, owner).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(q(lockCollection)).WithArgs(never.ID).WillReturnError(pgx.ErrNoRows)
	mock.ExpectCommit()

	require.NoError(t, s.UpsertCollections(context.Background(), owner, []model.Collection{live, gone, never}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListItemsSince(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewStore(db)
	owner := uuid.Must(uuid.NewV4())
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	id := uuid.Must(uuid.NewV4())
	updated := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	next := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{
		"id", "owner_id", "collection_id", "lemma", "part_of_speech", "article", "translation", "image_url",
		"grammar", "interval_days", "repetition_count", "easiness_factor", "next_review_date", "last_reviewed_at",
		"created_at", "updated_at",
	}).AddRow(id, owner, uuid.NullUUID{}, "gehen", "verb", "", "to go", "",
		[]byte(`{"irregular":true}`), 6, 2, 2.36, next, (*time.Time)(nil), updated, updated)

	mock.ExpectQuery(q(selItemsSince)).WithArgs(owner, since).WillReturnRows(rows)

	got, err := s.ListItemsSince(context.Background(), owner, since)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, id, got[0].ID)
	require.Equal(t, model.StatusSynced, got[0].SyncStatus)
	require.JSONEq(t, `true`, string(got[0].Grammar["irregular"]))
	require.Equal(t, next, got[0].NextReviewDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListCollections(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewStore(db)
	owner := uuid.Must(uuid.NewV4())
	friend := uuid.Must(uuid.NewV4())
	now := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "owner_id", "name", "is_shared", "shared_with", "created_at", "updated_at"}).
		AddRow(uuid.Must(uuid.NewV4()), owner, "Tiere", true, []string{friend.String()}, now, now)
	mock.ExpectQuery(q(selCollections)).WithArgs(owner).WillReturnRows(rows)

	got, err := s.ListCollections(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, []uuid.UUID{friend}, got[0].SharedWith)

	mock.ExpectQuery(q(selCollections)).WithArgs(owner).WillReturnError(errors.New("db down"))
	_, err = s.ListCollections(context.Background(), owner)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
