package wire

import (
	"encoding/json"
	"time"
)

// Item is a vocabulary item on the wire. Timestamps are set by the server only.
type Item struct {
	ID              string                     `json:"id"`
	OwnerID         string                     `json:"owner_id"`
	CollectionID    string                     `json:"collection_id,omitempty"`
	Lemma           string                     `json:"lemma"`
	PartOfSpeech    string                     `json:"part_of_speech,omitempty"`
	Article         string                     `json:"article,omitempty"`
	Translation     string                     `json:"translation,omitempty"`
	ImageURL        string                     `json:"image_url,omitempty"`
	Grammar         map[string]json.RawMessage `json:"grammar,omitempty"`
	IntervalDays    int                        `json:"interval_days"`
	RepetitionCount int                        `json:"repetition_count"`
	EasinessFactor  float64                    `json:"easiness_factor"`
	NextReviewDate  string                     `json:"next_review_date"`
	LastReviewedAt  *time.Time                 `json:"last_reviewed_at,omitempty"`
	CreatedAt       *time.Time                 `json:"created_at,omitempty"`
	UpdatedAt       *time.Time                 `json:"updated_at,omitempty"`
}

// Collection is a collection on the wire. Deleted marks a tombstone.
type Collection struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"owner_id"`
	Name       string     `json:"name"`
	IsShared   bool       `json:"is_shared"`
	SharedWith []string   `json:"shared_with,omitempty"`
	Deleted    bool       `json:"deleted,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// Progress is one review event on the wire.
type Progress struct {
	ID              string     `json:"id"`
	OwnerID         string     `json:"owner_id"`
	ItemID          string     `json:"item_id"`
	Assessment      string     `json:"assessment"`
	IntervalDays    int        `json:"interval_days"`
	RepetitionCount int        `json:"repetition_count"`
	EasinessFactor  float64    `json:"easiness_factor"`
	NextReviewDate  string     `json:"next_review_date"`
	ReviewedAt      time.Time  `json:"reviewed_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

type PullCollectionsRequest struct {
	OwnerID string `json:"owner_id"`
}

type PullCollectionsResponse struct {
	Collections []Collection `json:"collections"`
}

// PullItemsRequest asks for items updated after Since; nil means everything.
type PullItemsRequest struct {
	OwnerID string     `json:"owner_id"`
	Since   *time.Time `json:"since,omitempty"`
}

type PullItemsResponse struct {
	Items []Item `json:"items"`
}

type PushProgressRequest struct {
	OwnerID  string     `json:"owner_id"`
	Progress []Progress `json:"progress"`
}

type PushItemsRequest struct {
	OwnerID string `json:"owner_id"`
	Items   []Item `json:"items"`
}

type PushCollectionsRequest struct {
	OwnerID     string       `json:"owner_id"`
	Collections []Collection `json:"collections"`
}

// PushResponse reports how many rows the server stored.
type PushResponse struct {
	Accepted int `json:"accepted"`
}
