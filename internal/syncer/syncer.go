// Package syncer reconciles the local cache with the remote store.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/wordkeeper/internal/errs"
	"github.com/and161185/wordkeeper/internal/model"
	"github.com/and161185/wordkeeper/internal/repository"
)

// ItemStore is the part of the item cache used by sync.
type ItemStore interface {
	UpsertMany(ctx context.Context, items []model.VocabularyItem) error
	GetPending(ctx context.Context, ownerID uuid.UUID) ([]model.VocabularyItem, error)
	MarkSynced(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID, asOf time.Time) error
}

// ProgressStore is the part of the progress cache used by sync.
type ProgressStore interface {
	GetPending(ctx context.Context, ownerID uuid.UUID) ([]model.ProgressRecord, error)
	MarkSynced(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID, asOf time.Time) error
}

// CollectionStore is the part of the collection cache used by sync.
type CollectionStore interface {
	UpsertMany(ctx context.Context, cols []model.Collection) error
	GetPending(ctx context.Context, ownerID uuid.UUID) ([]model.Collection, error)
	MarkSynced(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID, asOf time.Time) error
}

// Probe tells whether the remote store can be reached right now.
type Probe interface {
	IsReachable(ctx context.Context) bool
}

// WatermarkStore keeps the last successful sync time per owner.
type WatermarkStore interface {
	Get(ownerID uuid.UUID) (time.Time, error)
	Set(ownerID uuid.UUID, ts time.Time) error
}

// Reporter receives failures worth escalating. Report must not block.
type Reporter interface {
	Report(err error, fields ...zap.Field)
}

// Deps are the collaborators of an Orchestrator. Reporter and Logger are optional.
type Deps struct {
	Items       ItemStore
	Progress    ProgressStore
	Collections CollectionStore
	Remote      repository.RemoteRepository
	Probe       Probe
	Watermarks  WatermarkStore
	Reporter    Reporter
	Logger      *zap.Logger
}

// DefaultKickTimeout bounds a background sync started by Kick.
const DefaultKickTimeout = 2 * time.Minute

// Orchestrator runs sync passes. At most one pass runs at a time; others are rejected.
type Orchestrator struct {
	d   Deps
	log *zap.Logger

	// Now is captured once per run as the next watermark.
	Now         func() time.Time
	KickTimeout time.Duration

	running atomic.Bool
	bg      sync.WaitGroup

	mu      sync.Mutex
	subs    map[uint64]func(model.SyncResult)
	nextSub uint64
}

// New builds an Orchestrator.
func New(d Deps) *Orchestrator {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		d:           d,
		log:         log,
		Now:         time.Now,
		KickTimeout: DefaultKickTimeout,
		subs:        make(map[uint64]func(model.SyncResult)),
	}
}

// Subscribe registers fn for published results. The returned func unregisters it.
func (o *Orchestrator) Subscribe(fn func(model.SyncResult)) (cancel func()) {
	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
		})
	}
}

// Kick starts PerformSync in the background. A run already in flight makes it a no-op.
func (o *Orchestrator) Kick(ownerID uuid.UUID) {
	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.KickTimeout)
		defer cancel()
		o.PerformSync(ctx, ownerID)
	}()
}

// Wait blocks until every run started by Kick has returned.
func (o *Orchestrator) Wait() { o.bg.Wait() }

// Running reports whether a sync pass is in progress.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// PerformSync runs one pull-then-push pass for the owner.
func (o *Orchestrator) PerformSync(ctx context.Context, ownerID uuid.UUID) model.SyncResult {
	if !o.running.CompareAndSwap(false, true) {
		o.log.Debug("sync skipped", zap.String("owner", ownerID.String()))
		return model.SyncResult{
			Outcome:   model.SyncConflict,
			Error:     errs.ErrSyncInProgress.Error(),
			Err:       errs.ErrSyncInProgress,
			Timestamp: o.Now(),
		}
	}
	defer o.running.Store(false)

	started := o.Now()
	if !o.d.Probe.IsReachable(ctx) {
		o.log.Info("sync skipped: remote unreachable", zap.String("owner", ownerID.String()))
		return failed(model.SyncResult{Timestamp: started}, errs.ErrNoNetwork)
	}

	res, err := o.run(ctx, ownerID, started)
	if err != nil {
		res = failed(res, err)
		fields := []zap.Field{zap.String("owner", ownerID.String()), zap.Error(err)}
		if errs.IsNetwork(err) {
			o.log.Warn("sync interrupted", fields...)
			return res
		}
		o.log.Error("sync failed", fields...)
		if o.d.Reporter != nil {
			o.d.Reporter.Report(err, zap.String("component", "sync"), zap.String("owner", ownerID.String()))
		}
		o.publish(res)
		return res
	}

	o.log.Info("sync complete",
		zap.String("owner", ownerID.String()),
		zap.Int("words", res.WordsSynced),
		zap.Int("progress", res.ProgressSynced),
		zap.Int("collections", res.CollectionsSynced),
	)
	o.publish(res)
	return res
}

func (o *Orchestrator) run(ctx context.Context, ownerID uuid.UUID, started time.Time) (model.SyncResult, error) {
	res := model.SyncResult{Timestamp: started}

	cols, err := o.d.Remote.ListCollections(ctx, ownerID)
	if err != nil {
		return res, fmt.Errorf("pull collections: %w", err)
	}
	normalizeCollections(cols, started)
	if err := o.d.Collections.UpsertMany(ctx, cols); err != nil {
		return res, fmt.Errorf("store pulled collections: %w", err)
	}
	res.CollectionsSynced = len(cols)

	since, err := o.d.Watermarks.Get(ownerID)
	if err != nil {
		return res, fmt.Errorf("read watermark: %w", err)
	}
	items, err := o.d.Remote.ListItemsSince(ctx, ownerID, since)
	if err != nil {
		return res, fmt.Errorf("pull items: %w", err)
	}
	normalizeItems(items, started)
	if err := o.d.Items.UpsertMany(ctx, items); err != nil {
		return res, fmt.Errorf("store pulled items: %w", err)
	}
	res.WordsSynced = len(items)

	recs, err := o.d.Progress.GetPending(ctx, ownerID)
	if err != nil {
		return res, fmt.Errorf("load pending progress: %w", err)
	}
	if len(recs) > 0 {
		if err := o.d.Remote.UpsertProgress(ctx, ownerID, recs); err != nil {
			return res, fmt.Errorf("push progress: %w", err)
		}
		if err := o.d.Progress.MarkSynced(ctx, ownerID, progressIDs(recs), started); err != nil {
			return res, fmt.Errorf("mark progress synced: %w", err)
		}
		res.ProgressSynced = len(recs)
	}

	pending, err := o.d.Items.GetPending(ctx, ownerID)
	if err != nil {
		return res, fmt.Errorf("load pending items: %w", err)
	}
	if len(pending) > 0 {
		if err := o.d.Remote.UpsertItems(ctx, ownerID, pending); err != nil {
			return res, fmt.Errorf("push items: %w", err)
		}
		if err := o.d.Items.MarkSynced(ctx, ownerID, itemIDs(pending), started); err != nil {
			return res, fmt.Errorf("mark items synced: %w", err)
		}
		res.WordsSynced += len(pending)
	}

	pcols, err := o.d.Collections.GetPending(ctx, ownerID)
	if err != nil {
		return res, fmt.Errorf("load pending collections: %w", err)
	}
	if len(pcols) > 0 {
		if err := o.d.Remote.UpsertCollections(ctx, ownerID, pcols); err != nil {
			return res, fmt.Errorf("push collections: %w", err)
		}
		if err := o.d.Collections.MarkSynced(ctx, ownerID, collectionIDs(pcols), started); err != nil {
			return res, fmt.Errorf("mark collections synced: %w", err)
		}
		res.CollectionsSynced += len(pcols)
	}

	if err := o.d.Watermarks.Set(ownerID, started); err != nil {
		return res, fmt.Errorf("advance watermark: %w", err)
	}
	res.Success = true
	res.Outcome = model.SyncOK
	return res, nil
}

func (o *Orchestrator) publish(res model.SyncResult) {
	o.mu.Lock()
	subs := make([]func(model.SyncResult), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.Unlock()

	for _, fn := range subs {
		o.notify(fn, res)
	}
}

func (o *Orchestrator) notify(fn func(model.SyncResult), res model.SyncResult) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("sync subscriber panicked", zap.Any("panic", r))
		}
	}()
	fn(res)
}

func failed(res model.SyncResult, err error) model.SyncResult {
	res.Success = false
	res.Outcome = model.SyncFailure
	res.Err = err
	res.Error = err.Error()
	return res
}

func itemIDs(items []model.VocabularyItem) []uuid.UUID {
	ids := make([]uuid.UUID, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	return ids
}

func progressIDs(recs []model.ProgressRecord) []uuid.UUID {
	ids := make([]uuid.UUID, len(recs))
	for i := range recs {
		ids[i] = recs[i].ID
	}
	return ids
}

func collectionIDs(cols []model.Collection) []uuid.UUID {
	ids := make([]uuid.UUID, len(cols))
	for i := range cols {
		ids[i] = cols[i].ID
	}
	return ids
}
