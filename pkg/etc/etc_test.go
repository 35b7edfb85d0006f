package etc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
}

// ============================================================================
// Discover
// ============================================================================

func TestDiscover(t *testing.T) {
	t.Parallel()

	a := t.TempDir()
	b := t.TempDir()
	touch(t, filepath.Join(a, "z.json"))
	touch(t, filepath.Join(a, "a.json"))
	touch(t, filepath.Join(a, "notes.txt"))
	require.NoError(t, os.Mkdir(filepath.Join(a, "sub.json"), 0o755))
	touch(t, filepath.Join(b, "b.json"))

	tests := []struct {
		name   string
		dirs   []string
		filter string
		want   []string
	}{
		{
			name: "no filter",
			dirs: []string{a},
			want: []string{"a.json", "notes.txt", "z.json"},
		},
		{
			name:   "glob filter keeps directory order",
			dirs:   []string{b, a},
			filter: "*.json",
			want:   []string{"b.json", "a.json", "z.json"},
		},
		{
			name:   "duplicate directory",
			dirs:   []string{a, a},
			filter: "a.*",
			want:   []string{"a.json"},
		},
		{
			name: "missing directory is skipped",
			dirs: []string{filepath.Join(a, "missing"), b},
			want: []string{"b.json"},
		},
		{
			name:   "malformed filter",
			dirs:   []string{a},
			filter: "[",
		},
		{
			name: "no directories",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Discover(tt.dirs, tt.filter)
			names := make([]string, 0, len(got))
			for _, p := range got {
				assert.True(t, filepath.IsAbs(p), p)
				names = append(names, filepath.Base(p))
			}
			if len(tt.want) == 0 {
				assert.Empty(t, names)
				return
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestMatches(t *testing.T) {
	t.Parallel()

	assert.True(t, Matches("", "/etc/anything"))
	assert.True(t, Matches("*.yaml", "/etc/app.yaml"))
	assert.False(t, Matches("*.yaml", "/etc/app.json"))
	assert.False(t, Matches("[", "/etc/app.json"))
}

// ============================================================================
// Watcher
// ============================================================================

func TestWatcher_ReportsMatchingChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	events := make(chan Event, 16)

	w, err := NewWatcher([]string{dir}, "*.json", func(ev Event) { events <- ev })
	require.NoError(t, err)
	defer func() { assert.NoError(t, w.Close()) }()

	touch(t, filepath.Join(dir, "ignored.txt"))
	touch(t, filepath.Join(dir, "app.json"))

	select {
	case ev := <-events:
		assert.Equal(t, "app.json", filepath.Base(ev.Path))
		assert.Contains(t, []Op{OpCreate, OpWrite}, ev.Op)
	case <-time.After(5 * time.Second):
		t.Fatal("no event for app.json")
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	t.Parallel()

	_, err := NewWatcher([]string{filepath.Join(t.TempDir(), "missing")}, "", nil)
	assert.Error(t, err)
}

func TestWatcher_CloseIdempotent(t *testing.T) {
	t.Parallel()

	w, err := NewWatcher([]string{t.TempDir()}, "", nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
