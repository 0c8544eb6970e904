package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/wordkeeper/internal/importer"
	"github.com/and161185/wordkeeper/internal/model"
	"github.com/and161185/wordkeeper/internal/scheduler"
	"github.com/and161185/wordkeeper/internal/srs"
	"github.com/and161185/wordkeeper/internal/vocab"
)

type cli struct {
	g      globals
	log    *zap.Logger
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

func (c *cli) withApp(ctx context.Context, fn func(*app) error) error {
	a, err := openApp(ctx, c.g, c.log)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

func parseUUID(name, s string) (uuid.UUID, error) {
	id, err := uuid.FromString(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("-%s: %w", name, err)
	}
	return id, nil
}

func parseNullUUID(name, s string) (uuid.NullUUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.NullUUID{}, nil
	}
	id, err := parseUUID(name, s)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}

func (c *cli) login(args []string) error {
	fs := c.flags("login")
	tok := fs.String("token", "", "access token issued by wk-server -issue-token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tok == "" {
		return fmt.Errorf("need -token: %w", errUsage)
	}
	owner, err := saveToken(c.g.home, strings.TrimSpace(*tok))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, owner)
	return nil
}

func (c *cli) whoami() error {
	_, owner, err := loadToken(c.g.home)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, owner)
	return nil
}

func (c *cli) add(ctx context.Context, a *app, args []string) error {
	fs := c.flags("add")
	lemma := fs.String("lemma", "", "word")
	tr := fs.String("translation", "", "translation")
	pos := fs.String("pos", "", "part of speech")
	article := fs.String("article", "", "article")
	img := fs.String("image", "", "image url")
	col := fs.String("collection", "", "collection id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cid, err := parseNullUUID("collection", *col)
	if err != nil {
		return err
	}
	it, err := a.vocab.Add(ctx, vocab.NewItem{
		OwnerID: a.owner, CollectionID: cid,
		Lemma: *lemma, Translation: *tr, PartOfSpeech: *pos, Article: *article, ImageURL: *img,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, it.ID)
	return nil
}

func (c *cli) printItems(items []model.VocabularyItem, asJSON bool) {
	if asJSON {
		type row struct {
			ID          string `json:"id"`
			Lemma       string `json:"lemma"`
			Article     string `json:"article,omitempty"`
			POS         string `json:"part_of_speech,omitempty"`
			Translation string `json:"translation,omitempty"`
			Next        string `json:"next_review_date"`
			Interval    int    `json:"interval_days"`
			Status      string `json:"sync_status"`
		}
		rows := make([]row, 0, len(items))
		for _, it := range items {
			rows = append(rows, row{
				ID: it.ID.String(), Lemma: it.Lemma, Article: it.Article, POS: it.PartOfSpeech,
				Translation: it.Translation, Next: srs.FormatDate(it.NextReviewDate),
				Interval: it.IntervalDays, Status: string(it.SyncStatus),
			})
		}
		printJSON(c.out, rows)
		return
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWORD\tTRANSLATION\tNEXT\tSTATUS")
	for _, it := range items {
		word := strings.TrimSpace(it.Article + " " + it.Lemma)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.ID, word, it.Translation, srs.FormatDate(it.NextReviewDate), it.SyncStatus)
	}
	_ = tw.Flush()
}

func (c *cli) list(ctx context.Context, a *app, args []string) error {
	fs := c.flags("list")
	col := fs.String("collection", "", "collection id")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cid, err := parseNullUUID("collection", *col)
	if err != nil {
		return err
	}
	items, err := a.vocab.List(ctx, a.owner, cid)
	if err != nil {
		return err
	}
	c.printItems(items, *asJSON)
	return nil
}

func (c *cli) due(ctx context.Context, a *app) error {
	items, err := a.vocab.Due(ctx, a.owner)
	if err != nil {
		return err
	}
	c.printItems(items, false)
	return nil
}

func (c *cli) rm(ctx context.Context, a *app, args []string) error {
	fs := c.flags("rm")
	id := fs.String("id", "", "item id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	iid, err := parseUUID("id", *id)
	if err != nil {
		return err
	}
	return a.vocab.Remove(ctx, a.owner, iid)
}

func (c *cli) image(ctx context.Context, a *app, args []string) error {
	fs := c.flags("image")
	id := fs.String("id", "", "item id")
	url := fs.String("url", "", "image url (empty clears)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	iid, err := parseUUID("id", *id)
	if err != nil {
		return err
	}
	return a.vocab.SetImage(ctx, a.owner, iid, *url)
}

func (c *cli) move(ctx context.Context, a *app, args []string) error {
	fs := c.flags("move")
	id := fs.String("id", "", "item id")
	col := fs.String("collection", "", "target collection id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	iid, err := parseUUID("id", *id)
	if err != nil {
		return err
	}
	cid, err := parseNullUUID("collection", *col)
	if err != nil {
		return err
	}
	return a.vocab.Move(ctx, a.owner, iid, cid)
}

func (c *cli) importFile(ctx context.Context, a *app, args []string) error {
	fs := c.flags("import")
	file := fs.String("file", "", "word list (.csv or .xlsx)")
	col := fs.String("collection", "", "collection id for imported words")
	sheet := fs.String("sheet", "", "sheet name (.xlsx)")
	noHeader := fs.Bool("no-header", false, "first row is data")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("need -file: %w", errUsage)
	}
	cid, err := parseNullUUID("collection", *col)
	if err != nil {
		return err
	}
	res, err := importer.ImportFile(ctx, a.vocab, *file, importer.Options{
		OwnerID: a.owner, CollectionID: cid, Sheet: *sheet, NoHeader: *noHeader,
	})
	if res != nil {
		fmt.Fprintf(c.out, "added %d, skipped %d\n", res.Added, res.Skipped)
		for _, e := range res.Errors {
			fmt.Fprintln(c.errOut, e)
		}
	}
	return err
}

func (c *cli) export(ctx context.Context, a *app, args []string) error {
	fs := c.flags("export")
	file := fs.String("file", "", "output .xlsx file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("need -file: %w", errUsage)
	}
	items, err := a.items.GetByOwner(ctx, a.owner)
	if err != nil {
		return err
	}
	f, err := os.Create(*file)
	if err != nil {
		return err
	}
	if err := importer.Export(f, items); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "exported %d words\n", len(items))
	return nil
}

func (c *cli) collections(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 || args[0] == "list" {
		cols, err := a.vocab.Collections(ctx, a.owner)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tSTATUS")
		for _, col := range cols {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", col.ID, col.Name, col.SyncStatus)
		}
		return tw.Flush()
	}
	switch args[0] {
	case "add":
		fs := c.flags("collections add")
		name := fs.String("name", "", "collection name")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		col, err := a.vocab.CreateCollection(ctx, a.owner, *name)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, col.ID)
		return nil
	case "rm":
		fs := c.flags("collections rm")
		id := fs.String("id", "", "collection id")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		cid, err := parseUUID("id", *id)
		if err != nil {
			return err
		}
		return a.vocab.RemoveCollection(ctx, a.owner, cid)
	default:
		return errUsage
	}
}

func (c *cli) review(ctx context.Context, a *app) error {
	due, err := a.vocab.Due(ctx, a.owner)
	if err != nil {
		return err
	}
	_, err = review(ctx, a.newSession(c.g.noSync), a.vocab, a.owner, due, c.in, c.out)
	return err
}

func (c *cli) sync(ctx context.Context, a *app) error {
	res := a.sync.PerformSync(ctx, a.owner)
	printJSON(c.out, res)
	if !res.Success {
		return errors.New(describe(res))
	}
	return nil
}

func (c *cli) daemon(ctx context.Context, a *app, args []string) error {
	fs := c.flags("daemon")
	interval := fs.Duration("interval", scheduler.DefaultInterval, "sync interval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cancel := a.sync.Subscribe(func(res model.SyncResult) {
		fmt.Fprintf(c.out, "%s %s\n", res.Timestamp.Format(time.RFC3339), describe(res))
	})
	defer cancel()

	s := scheduler.New(a.sync, a.owner, *interval, 0, c.log.Named("scheduler"))
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}
