package convert

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	u "github.com/gofrs/uuid/v5"

	"github.com/and161185/wordkeeper/internal/model"
	"github.com/and161185/wordkeeper/internal/srs"
	"github.com/and161185/wordkeeper/internal/wire"
)

func mustUUID(t *testing.T) u.UUID {
	t.Helper()
	return u.Must(u.NewV4())
}

func TestToWirePushItem_OmitsServerTimestamps(t *testing.T) {
	reviewed := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	it := model.VocabularyItem{
		ID:             mustUUID(t),
		OwnerID:        mustUUID(t),
		CollectionID:   u.NullUUID{UUID: mustUUID(t), Valid: true},
		Lemma:          "gehen",
		Grammar:        model.Grammar{"irregular": json.RawMessage(`true`)},
		EasinessFactor: 2.36,
		NextReviewDate: time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC),
		LastReviewedAt: &reviewed,
		CreatedAt:      reviewed,
		UpdatedAt:      reviewed,
	}

	push := ToWirePushItem(it)
	if push.CreatedAt != nil || push.UpdatedAt != nil {
		t.Fatalf("push item must not carry server timestamps: %+v", push)
	}
	if push.NextReviewDate != "2024-03-16" {
		t.Fatalf("next review date: %q", push.NextReviewDate)
	}

	full := ToWireItem(it)
	if full.UpdatedAt == nil || !full.UpdatedAt.Equal(reviewed) {
		t.Fatalf("full item must carry updated_at: %+v", full.UpdatedAt)
	}

	back, err := FromWireItem(full)
	if err != nil {
		t.Fatalf("from wire: %v", err)
	}
	if back.CollectionID != it.CollectionID || back.Lemma != "gehen" || back.SyncStatus != model.StatusSynced {
		t.Fatalf("unexpected item: %+v", back)
	}
	if string(back.Grammar["irregular"]) != "true" {
		t.Fatalf("grammar lost: %v", back.Grammar)
	}
	if back.LastReviewedAt == nil || !back.LastReviewedAt.Equal(reviewed) {
		t.Fatalf("last reviewed at: %v", back.LastReviewedAt)
	}
}

func TestFromWireItem_Errors(t *testing.T) {
	cases := []struct {
		name string
		in   wire.Item
		want string
	}{
		{"bad id", wire.Item{ID: "nope"}, "invalid id"},
		{"bad owner", wire.Item{ID: mustUUID(t).String(), OwnerID: "x"}, "invalid owner_id"},
		{"bad collection", wire.Item{ID: mustUUID(t).String(), OwnerID: mustUUID(t).String(), CollectionID: "x"}, "invalid collection_id"},
		{"bad date", wire.Item{ID: mustUUID(t).String(), OwnerID: mustUUID(t).String(), NextReviewDate: "16.03.2024"}, "invalid next_review_date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromWireItem(tc.in)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("want %q, got %v", tc.want, err)
			}
		})
	}

	_, err := FromWireItems([]wire.Item{{ID: "bad"}})
	if err == nil || !strings.Contains(err.Error(), "item[0]") {
		t.Fatalf("want indexed error, got %v", err)
	}
}

func TestCollection_TombstoneMapping(t *testing.T) {
	friend := mustUUID(t)
	c := model.Collection{ID: mustUUID(t), OwnerID: mustUUID(t), Name: "Tiere",
		IsShared: true, SharedWith: []u.UUID{friend}, SyncStatus: model.StatusDeleted}

	w := ToWireCollection(c)
	if !w.Deleted || len(w.SharedWith) != 1 || w.SharedWith[0] != friend.String() {
		t.Fatalf("unexpected wire collection: %+v", w)
	}

	back, err := FromWireCollection(w)
	if err != nil {
		t.Fatalf("from wire: %v", err)
	}
	if back.SyncStatus != model.StatusDeleted || back.SharedWith[0] != friend {
		t.Fatalf("unexpected collection: %+v", back)
	}

	w.Deleted = false
	back, _ = FromWireCollection(w)
	if back.SyncStatus != model.StatusSynced {
		t.Fatalf("live collection must be synced, got %s", back.SyncStatus)
	}

	w.SharedWith = []string{"zzz"}
	if _, err := FromWireCollections([]wire.Collection{w}); err == nil {
		t.Fatalf("want error for bad shared_with")
	}
}

func TestProgress_Assessment(t *testing.T) {
	p := model.ProgressRecord{ID: mustUUID(t), OwnerID: mustUUID(t), ItemID: mustUUID(t),
		Assessment: srs.Hard, ReviewedAt: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)}

	w := ToWireProgress(p)
	if w.Assessment != "Hard" {
		t.Fatalf("assessment on wire: %q", w.Assessment)
	}
	back, err := FromWireProgress(w)
	if err != nil || back.Assessment != srs.Hard {
		t.Fatalf("from wire: %v %+v", err, back)
	}

	w.Assessment = "meh"
	if _, err := FromWireProgressList([]wire.Progress{w}); err == nil {
		t.Fatalf("want invalid assessment error")
	}
}
