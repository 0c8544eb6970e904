package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/wordkeeper/internal/model"
	"github.com/and161185/wordkeeper/internal/remote"
	"github.com/and161185/wordkeeper/internal/report"
	"github.com/and161185/wordkeeper/internal/repository/sqlite"
	"github.com/and161185/wordkeeper/internal/session"
	"github.com/and161185/wordkeeper/internal/syncer"
	"github.com/and161185/wordkeeper/internal/vocab"
	"github.com/and161185/wordkeeper/internal/watermark"
)

// globals are the flags shared by every subcommand.
type globals struct {
	home      string
	addr      string
	caPath    string
	insecure  bool
	plaintext bool
	dev       bool
	noSync    bool
	wait      time.Duration
}

// app holds the wired client for one command invocation.
type app struct {
	owner    uuid.UUID
	log      *zap.Logger
	db       *sqlite.DB
	items    *sqlite.ItemRepo
	progress *sqlite.ProgressRepo
	cols     *sqlite.CollectionRepo
	vocab    *vocab.Service
	remote   *remote.Client
	sync     *syncer.Orchestrator
	reporter *report.Reporter
	wait     time.Duration
}

// openApp opens the cache and dials the server lazily; nothing here needs the network.
func openApp(ctx context.Context, g globals, log *zap.Logger) (*app, error) {
	tok, owner, err := loadToken(g.home)
	if err != nil {
		return nil, err
	}
	db, err := sqlite.Open(ctx, cachePath(g.home))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	rc, err := remote.Dial(ctx, remote.Options{
		Addr:       g.addr,
		CAFile:     g.caPath,
		SkipVerify: g.insecure,
		Plaintext:  g.plaintext,
		Token:      tok,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &app{
		owner:    owner,
		log:      log,
		db:       db,
		items:    sqlite.NewItemRepo(db),
		progress: sqlite.NewProgressRepo(db),
		cols:     sqlite.NewCollectionRepo(db),
		remote:   rc,
		reporter: report.New(log.Named("report"), 0),
		wait:     g.wait,
	}
	a.sync = syncer.New(syncer.Deps{
		Items:       a.items,
		Progress:    a.progress,
		Collections: a.cols,
		Remote:      rc,
		Probe:       rc,
		Watermarks:  watermark.NewFile(filepath.Join(g.home, watermark.FileName)),
		Reporter:    a.reporter,
		Logger:      log.Named("sync"),
	})
	var k vocab.Kicker = a.sync
	if g.noSync {
		k = nil
	}
	a.vocab = vocab.New(a.items, a.cols, k, log.Named("vocab"))
	return a, nil
}

// newSession builds a review machine wired to the cache and, unless disabled, to background sync.
func (a *app) newSession(noSync bool) *session.Machine {
	var k session.Kicker = a.sync
	if noSync {
		k = nil
	}
	return session.New(a.items, a.progress, k, a.log.Named("session"))
}

// close waits (bounded) for background syncs and releases resources.
func (a *app) close() {
	done := make(chan struct{})
	go func() {
		a.sync.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(a.wait):
		a.log.Warn("background sync still running; leaving it pending")
	}
	a.reporter.Close()
	_ = a.remote.Close()
	_ = a.db.Close()
}

func describe(res model.SyncResult) string {
	if res.Success {
		return fmt.Sprintf("synced: %d words, %d reviews, %d collections",
			res.WordsSynced, res.ProgressSynced, res.CollectionsSynced)
	}
	return fmt.Sprintf("sync %s: %s", res.Outcome, res.Error)
}
