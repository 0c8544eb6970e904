package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/wordkeeper/internal/model"
	"github.com/and161185/wordkeeper/internal/repository"
)

// fakeRemote is an in-memory remote store that stamps updated_at like the server does.
type fakeRemote struct {
	mu    sync.Mutex
	clock func() time.Time

	items       map[uuid.UUID]model.VocabularyItem
	collections map[uuid.UUID]model.Collection
	progress    map[uuid.UUID]model.ProgressRecord

	listCollectionsCalls int
	block                chan struct{}
	entered              chan struct{}

	pullErr       error
	pushItemsErr  error
	pushProgErr   error
	lastItemsPull time.Time
}

var _ repository.RemoteRepository = (*fakeRemote)(nil)

func newFakeRemote(clock func() time.Time) *fakeRemote {
	return &fakeRemote{
		clock:       clock,
		items:       map[uuid.UUID]model.VocabularyItem{},
		collections: map[uuid.UUID]model.Collection{},
		progress:    map[uuid.UUID]model.ProgressRecord{},
	}
}

func (f *fakeRemote) ListCollections(_ context.Context, ownerID uuid.UUID) ([]model.Collection, error) {
	f.mu.Lock()
	f.listCollectionsCalls++
	block, entered := f.block, f.entered
	f.entered = nil
	f.mu.Unlock()
	if entered != nil {
		close(entered)
	}
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	var out []model.Collection
	for _, c := range f.collections {
		if c.OwnerID == ownerID && c.SyncStatus != model.StatusDeleted {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeRemote) ListItemsSince(_ context.Context, ownerID uuid.UUID, since time.Time) ([]model.VocabularyItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastItemsPull = since
	var out []model.VocabularyItem
	for _, it := range f.items {
		if it.OwnerID == ownerID && it.UpdatedAt.After(since) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeRemote) UpsertProgress(_ context.Context, ownerID uuid.UUID, recs []model.ProgressRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushProgErr != nil {
		return f.pushProgErr
	}
	for _, r := range recs {
		r.OwnerID = ownerID
		r.UpdatedAt = f.clock()
		f.progress[r.ID] = r
	}
	return nil
}

func (f *fakeRemote) UpsertItems(_ context.Context, ownerID uuid.UUID, items []model.VocabularyItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushItemsErr != nil {
		return f.pushItemsErr
	}
	for _, it := range items {
		it.OwnerID = ownerID
		it.SyncStatus = model.StatusSynced
		it.UpdatedAt = f.clock()
		f.items[it.ID] = it
	}
	return nil
}

func (f *fakeRemote) UpsertCollections(_ context.Context, ownerID uuid.UUID, cols []model.Collection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range cols {
		c.OwnerID = ownerID
		c.UpdatedAt = f.clock()
		f.collections[c.ID] = c
	}
	return nil
}

type fakeProbe struct{ up bool }

func (p fakeProbe) IsReachable(context.Context) bool { return p.up }

type memWatermarks struct {
	mu   sync.Mutex
	last map[uuid.UUID]time.Time
}

func (m *memWatermarks) Get(owner uuid.UUID) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last[owner], nil
}

func (m *memWatermarks) Set(owner uuid.UUID, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		m.last = map[uuid.UUID]time.Time{}
	}
	m.last[owner] = ts
	return nil
}

type fakeReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *fakeReporter) Report(err error, _ ...zap.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *fakeReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

// countingCache records every call so tests can assert storage was not touched.
type countingCache struct {
	mu    sync.Mutex
	calls int

	items    []model.VocabularyItem
	progress []model.ProgressRecord
	cols     []model.Collection
}

func (c *countingCache) hit() {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func (c *countingCache) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type countingItems struct{ *countingCache }

func (c countingItems) UpsertMany(context.Context, []model.VocabularyItem) error { c.hit(); return nil }
func (c countingItems) GetPending(context.Context, uuid.UUID) ([]model.VocabularyItem, error) {
	c.hit()
	return c.items, nil
}
func (c countingItems) MarkSynced(context.Context, uuid.UUID, []uuid.UUID, time.Time) error {
	c.hit()
	return nil
}

type countingProgress struct{ *countingCache }

func (c countingProgress) GetPending(context.Context, uuid.UUID) ([]model.ProgressRecord, error) {
	c.hit()
	return c.progress, nil
}
func (c countingProgress) MarkSynced(context.Context, uuid.UUID, []uuid.UUID, time.Time) error {
	c.hit()
	return nil
}

type countingCollections struct{ *countingCache }

func (c countingCollections) UpsertMany(context.Context, []model.Collection) error { c.hit(); return nil }
func (c countingCollections) GetPending(context.Context, uuid.UUID) ([]model.Collection, error) {
	c.hit()
	return c.cols, nil
}
func (c countingCollections) MarkSynced(context.Context, uuid.UUID, []uuid.UUID, time.Time) error {
	c.hit()
	return nil
}
