package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/wordkeeper/internal/errs"
	"github.com/and161185/wordkeeper/internal/model"
	"github.com/and161185/wordkeeper/internal/session"
	"github.com/and161185/wordkeeper/internal/srs"
)

const reviewHelp = `enter: show answer  1-4 or again/hard/good/easy: grade  n/p: next/previous  d: delete word  i <url>: set image  q: quit`

// wordEditor changes stored words while a session runs.
type wordEditor interface {
	Remove(ctx context.Context, owner, id uuid.UUID) error
	SetImage(ctx context.Context, owner, id uuid.UUID, url string) error
}

// review runs an interactive session over due and returns how many cards were graded.
func review(ctx context.Context, m *session.Machine, words wordEditor, owner uuid.UUID, due []model.VocabularyItem, in io.Reader, out io.Writer) (int, error) {
	snap := m.Start(owner, due)
	if snap.State != session.Active {
		fmt.Fprintln(out, "nothing due today")
		return 0, nil
	}
	fmt.Fprintln(out, reviewHelp)

	sc := bufio.NewScanner(in)
	shown := false
	for snap.State == session.Active {
		if !shown {
			printFront(out, snap)
		}
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			break
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(sc.Text()), " ")
		cmd, arg = strings.ToLower(cmd), strings.TrimSpace(arg)
		switch cmd {
		case "", "?":
			printBack(out, snap.Current)
			shown = true
			continue
		case "q", "quit":
			return snap.Completed, nil
		case "n":
			snap = m.Advance(1)
		case "p":
			snap = m.Advance(-1)
		case "d":
			id := snap.Current.ID
			if err := words.Remove(ctx, owner, id); err != nil {
				return snap.Completed, err
			}
			fmt.Fprintf(out, "deleted %s\n", snap.Current.Lemma)
			snap = m.RemoveItem(id)
		case "i":
			if arg == "" {
				fmt.Fprintln(out, "usage: i <url>")
				continue
			}
			if err := words.SetImage(ctx, owner, snap.Current.ID, arg); err != nil {
				return snap.Completed, err
			}
			snap = m.UpdateItemImage(snap.Current.ID, arg)
			printBack(out, snap.Current)
			shown = true
			continue
		default:
			a, err := srs.ParseAssessment(cmd)
			if err != nil {
				fmt.Fprintln(out, reviewHelp)
				continue
			}
			next, err := m.Submit(ctx, snap.Current.ID, a)
			if err != nil {
				if errors.Is(err, errs.ErrValidation) {
					fmt.Fprintln(out, "error:", err)
					continue
				}
				return snap.Completed, err
			}
			snap = next
		}
		shown = false
	}
	if err := sc.Err(); err != nil {
		return snap.Completed, err
	}
	fmt.Fprintf(out, "session %s: %d reviewed\n", snap.State, snap.Completed)
	return snap.Completed, nil
}

func printFront(out io.Writer, snap session.Snapshot) {
	it := snap.Current
	front := it.Lemma
	if it.Article != "" {
		front = it.Article + " " + front
	}
	if it.PartOfSpeech != "" {
		front += " (" + it.PartOfSpeech + ")"
	}
	fmt.Fprintf(out, "[%d/%d] %s\n", snap.Index+1, snap.Total, front)
}

func printBack(out io.Writer, it *model.VocabularyItem) {
	fmt.Fprintf(out, "  = %s\n", it.Translation)
	if it.ImageURL != "" {
		fmt.Fprintf(out, "  image: %s\n", it.ImageURL)
	}
}
