package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/wordkeeper/internal/auth"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	OwnerID     string    `json:"owner_id"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

func tokenPath(home string) string { return filepath.Join(home, "token.json") }
func cachePath(home string) string { return filepath.Join(home, "cache.db") }

// saveToken stores tok after reading its owner and expiry.
func saveToken(home, tok string) (uuid.UUID, error) {
	owner, exp, err := auth.Inspect(tok)
	if err != nil {
		return uuid.Nil, err
	}
	if err := os.MkdirAll(home, 0o700); err != nil {
		return uuid.Nil, err
	}
	b, err := json.MarshalIndent(tokenFile{AccessToken: tok, OwnerID: owner.String(), ExpiresAt: exp}, "", "  ")
	if err != nil {
		return uuid.Nil, err
	}
	return owner, os.WriteFile(tokenPath(home), b, 0o600)
}

func loadToken(home string) (string, uuid.UUID, error) {
	b, err := os.ReadFile(tokenPath(home))
	if err != nil {
		return "", uuid.Nil, errors.New("no token (run: wk login -token <jwt>)")
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", uuid.Nil, err
	}
	owner, err := uuid.FromString(tf.OwnerID)
	if tf.AccessToken == "" || err != nil {
		return "", uuid.Nil, errors.New("token file is corrupt (run: wk login)")
	}
	if !tf.ExpiresAt.IsZero() && time.Now().After(tf.ExpiresAt) {
		return "", uuid.Nil, errors.New("token expired (run: wk login)")
	}
	return tf.AccessToken, owner, nil
}
