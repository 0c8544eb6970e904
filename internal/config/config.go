// Package config reads WK_* settings from the environment, optionally seeded from .env files.
// Binaries use these values as flag defaults, so an explicit flag always wins.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads the given files (default ".env") without overriding variables that
// are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// String returns the trimmed value of key or fallback when unset or blank.
func String(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// Int returns the value of key parsed as an int, or fallback.
func Int(key string, fallback int) int {
	if i, err := strconv.Atoi(String(key, "")); err == nil {
		return i
	}
	return fallback
}

// Bool returns the value of key parsed with strconv.ParseBool, or fallback.
func Bool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(String(key, "")); err == nil {
		return b
	}
	return fallback
}

// Duration returns the value of key parsed with time.ParseDuration, or fallback.
func Duration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(String(key, "")); err == nil {
		return d
	}
	return fallback
}

// Dir is the client state directory: $WK_HOME, else <user config dir>/wordkeeper.
func Dir() string {
	if d := String("WK_HOME", ""); d != "" {
		return d
	}
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		base = "."
	}
	return filepath.Join(base, "wordkeeper")
}
