package watermark

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
)

func TestFile_GetMissingIsZero(t *testing.T) {
	t.Parallel()
	f := NewFile(filepath.Join(t.TempDir(), FileName))

	ts, err := f.Get(uuid.Must(uuid.NewV4()))
	require.NoError(t, err)
	require.True(t, ts.IsZero())
}

func TestFile_SetGetPerOwner(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", FileName)
	f := NewFile(path)

	a, b := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	ta := time.Date(2026, 10, 15, 10, 0, 0, 123, time.UTC)
	tb := time.Date(2026, 10, 14, 8, 30, 0, 0, time.FixedZone("x", 3600))

	require.NoError(t, f.Set(a, ta))
	require.NoError(t, f.Set(b, tb))

	// fresh instance reads what the first one wrote
	g := NewFile(path)
	got, err := g.Get(a)
	require.NoError(t, err)
	require.True(t, got.Equal(ta))
	got, err = g.Get(b)
	require.NoError(t, err)
	require.True(t, got.Equal(tb))

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFile_Reset(t *testing.T) {
	t.Parallel()
	f := NewFile(filepath.Join(t.TempDir(), FileName))
	owner := uuid.Must(uuid.NewV4())

	require.NoError(t, f.Reset(owner))
	require.NoError(t, f.Set(owner, time.Now()))
	require.NoError(t, f.Reset(owner))

	ts, err := f.Get(owner)
	require.NoError(t, err)
	require.True(t, ts.IsZero())
}

func TestFile_CorruptFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFile(path).Get(uuid.Must(uuid.NewV4()))
	require.Error(t, err)
}

func TestFile_ConcurrentSet(t *testing.T) {
	t.Parallel()
	f := NewFile(filepath.Join(t.TempDir(), FileName))

	owners := make([]uuid.UUID, 8)
	var wg sync.WaitGroup
	for i := range owners {
		owners[i] = uuid.Must(uuid.NewV4())
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			require.NoError(t, f.Set(id, time.Now()))
		}(owners[i])
	}
	wg.Wait()

	for _, id := range owners {
		ts, err := f.Get(id)
		require.NoError(t, err)
		require.False(t, ts.IsZero())
	}
}
