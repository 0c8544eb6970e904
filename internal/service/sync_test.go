package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/wordkeeper/internal/errs"
	"github.com/and161185/wordkeeper/internal/model"
	"github.com/and161185/wordkeeper/internal/repository"
	"github.com/and161185/wordkeeper/internal/srs"
)

type fakeRemoteRepo struct {
	listColOwner uuid.UUID
	listColOut   []model.Collection

	sinceOwner uuid.UUID
	sinceIn    time.Time
	sinceOut   []model.VocabularyItem

	progressIn []model.ProgressRecord
	itemsIn    []model.VocabularyItem
	colsIn     []model.Collection
	calls      int
	err        error
}

var _ repository.RemoteRepository = (*fakeRemoteRepo)(nil)

func (f *fakeRemoteRepo) ListCollections(_ context.Context, ownerID uuid.UUID) ([]model.Collection, error) {
	f.calls++
	f.listColOwner = ownerID
	return f.listColOut, f.err
}
func (f *fakeRemoteRepo) ListItemsSince(_ context.Context, ownerID uuid.UUID, since time.Time) ([]model.VocabularyItem, error) {
	f.calls++
	f.sinceOwner, f.sinceIn = ownerID, since
	return f.sinceOut, f.err
}
func (f *fakeRemoteRepo) UpsertProgress(_ context.Context, _ uuid.UUID, recs []model.ProgressRecord) error {
	f.calls++
	f.progressIn = append([]model.ProgressRecord(nil), recs...)
	return f.err
}
func (f *fakeRemoteRepo) UpsertItems(_ context.Context, _ uuid.UUID, items []model.VocabularyItem) error {
	f.calls++
	f.itemsIn = append([]model.VocabularyItem(nil), items...)
	return f.err
}
func (f *fakeRemoteRepo) UpsertCollections(_ context.Context, _ uuid.UUID, cols []model.Collection) error {
	f.calls++
	f.colsIn = append([]model.Collection(nil), cols...)
	return f.err
}

func validItem(id uuid.UUID) model.VocabularyItem {
	return model.VocabularyItem{
		ID:             id,
		Lemma:          "Haus",
		EasinessFactor: 2.5,
		NextReviewDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestNewSyncService_DefaultMaxBatch(t *testing.T) {
	s := NewSyncService(&fakeRemoteRepo{}, 0)
	if s.maxBatch != 1000 {
		t.Fatalf("default maxBatch want 1000, got %d", s.maxBatch)
	}
}

func TestSyncService_PushItems_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := &fakeRemoteRepo{}
	s := NewSyncService(repo, 2)
	owner := uuid.Must(uuid.NewV4())
	id := uuid.Must(uuid.NewV4())

	if err := s.PushItems(ctx, uuid.Nil, nil); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error on empty owner, got %v", err)
	}
	if err := s.PushItems(ctx, owner, nil); err != nil {
		t.Fatalf("empty batch must be a no-op: %v", err)
	}
	if err := s.PushItems(ctx, owner, make([]model.VocabularyItem, 3)); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want batch too large, got %v", err)
	}

	bad := []func(*model.VocabularyItem){
		func(it *model.VocabularyItem) { it.ID = uuid.Nil },
		func(it *model.VocabularyItem) { it.Lemma = "  " },
		func(it *model.VocabularyItem) { it.IntervalDays = -1 },
		func(it *model.VocabularyItem) { it.EasinessFactor = 2.7 },
		func(it *model.VocabularyItem) { it.NextReviewDate = time.Time{} },
	}
	for i, mut := range bad {
		it := validItem(id)
		mut(&it)
		if err := s.PushItems(ctx, owner, []model.VocabularyItem{it}); !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("case %d: want validation error, got %v", i, err)
		}
	}

	foreign := validItem(id)
	foreign.OwnerID = uuid.Must(uuid.NewV4())
	if err := s.PushItems(ctx, owner, []model.VocabularyItem{foreign}); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("want conflict for foreign owner, got %v", err)
	}
	if repo.calls != 0 {
		t.Fatalf("repository must not be called on invalid input, calls=%d", repo.calls)
	}

	if err := s.PushItems(ctx, owner, []model.VocabularyItem{validItem(id)}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(repo.itemsIn) != 1 || repo.itemsIn[0].OwnerID != owner {
		t.Fatalf("owner must be stamped, got %+v", repo.itemsIn)
	}
}

func TestSyncService_PushProgress_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := &fakeRemoteRepo{}
	s := NewSyncService(repo, 10)
	owner := uuid.Must(uuid.NewV4())

	rec := model.ProgressRecord{
		ID: uuid.Must(uuid.NewV4()), ItemID: uuid.Must(uuid.NewV4()), Assessment: srs.Good,
		EasinessFactor: 2.5, NextReviewDate: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
	}

	noItem := rec
	noItem.ItemID = uuid.Nil
	if err := s.PushProgress(ctx, owner, []model.ProgressRecord{noItem}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	badA := rec
	badA.Assessment = 0
	if err := s.PushProgress(ctx, owner, []model.ProgressRecord{badA}); !errors.Is(err, srs.ErrInvalidAssessment) {
		t.Fatalf("want invalid assessment, got %v", err)
	}

	if err := s.PushProgress(ctx, owner, []model.ProgressRecord{rec}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(repo.progressIn) != 1 || repo.progressIn[0].OwnerID != owner {
		t.Fatalf("unexpected repo input: %+v", repo.progressIn)
	}
}

func TestSyncService_PushCollections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := &fakeRemoteRepo{}
	s := NewSyncService(repo, 10)
	owner := uuid.Must(uuid.NewV4())

	if err := s.PushCollections(ctx, owner, []model.Collection{{ID: uuid.Must(uuid.NewV4())}}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want empty name error, got %v", err)
	}
	tomb := model.Collection{ID: uuid.Must(uuid.NewV4()), SyncStatus: model.StatusDeleted}
	if err := s.PushCollections(ctx, owner, []model.Collection{tomb}); err != nil {
		t.Fatalf("tombstone without name must pass: %v", err)
	}
	if len(repo.colsIn) != 1 {
		t.Fatalf("want 1 collection, got %d", len(repo.colsIn))
	}
}

func TestSyncService_Pulls(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := &fakeRemoteRepo{listColOut: []model.Collection{{Name: "A"}}, sinceOut: []model.VocabularyItem{{Lemma: "x"}}}
	s := NewSyncService(repo, 10)
	owner := uuid.Must(uuid.NewV4())
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	if _, err := s.PullCollections(ctx, uuid.Nil); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	cols, err := s.PullCollections(ctx, owner)
	if err != nil || len(cols) != 1 || repo.listColOwner != owner {
		t.Fatalf("pull collections: %v %+v", err, cols)
	}
	items, err := s.PullItems(ctx, owner, since)
	if err != nil || len(items) != 1 || !repo.sinceIn.Equal(since) || repo.sinceOwner != owner {
		t.Fatalf("pull items: %v %+v", err, items)
	}

	repo.err = errors.New("db down")
	if _, err := s.PullItems(ctx, owner, since); err == nil {
		t.Fatalf("want repository error to propagate")
	}
}
