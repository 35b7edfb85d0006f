package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct {
	name string
	snap Snapshot
}

func (f *fakeStats) Name() string    { return f.name }
func (f *fakeStats) Address() string { return "127.0.0.1" }
func (f *fakeStats) Port() int       { return f.snap.Port }
func (f *fakeStats) Reset()          { f.snap = Snapshot{Port: f.snap.Port} }

func (f *fakeStats) Snapshot() Snapshot {
	s := f.snap
	s.Name = f.name
	return s
}

// ============================================================================
// Registry
// ============================================================================

func TestRegistry_RegisterAndGet(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(&fakeStats{name: "WEBAPP"})
	r.Register(&fakeStats{name: "WEBSERVICE"})

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"WEBAPP", "WEBSERVICE"}, r.Names())

	s, ok := r.Get("WEBAPP")
	require.True(t, ok)
	assert.Equal(t, "WEBAPP", s.Name())

	_, ok = r.Get("MISSING")
	assert.False(t, ok)
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	first := &fakeStats{name: "WEBAPP", snap: Snapshot{Port: 1}}
	second := &fakeStats{name: "WEBAPP", snap: Snapshot{Port: 2}}

	r.Register(first)
	r.Register(second)

	s, ok := r.Get("WEBAPP")
	require.True(t, ok)
	assert.Equal(t, 2, s.Port())
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Unregister(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(&fakeStats{name: "WEBAPP"})

	assert.True(t, r.Unregister("WEBAPP"))
	assert.False(t, r.Unregister("WEBAPP"))
	assert.Zero(t, r.Len())
}

func TestRegistry_EntriesIsCopy(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(&fakeStats{name: "WEBAPP"})

	entries := r.Entries()
	delete(entries, "WEBAPP")
	entries["OTHER"] = &fakeStats{name: "OTHER"}

	assert.Equal(t, []string{"WEBAPP"}, r.Names())
}

func TestRegistry_SnapshotsOrdered(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(&fakeStats{name: "WEBSERVICE", snap: Snapshot{Requests: 3}})
	r.Register(&fakeStats{name: "WEBAPP", snap: Snapshot{Requests: 1}})

	snaps := r.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "WEBAPP", snaps[0].Name)
	assert.Equal(t, uint64(1), snaps[0].Requests)
	assert.Equal(t, "WEBSERVICE", snaps[1].Name)
}

// ============================================================================
// Snapshot
// ============================================================================

func TestSnapshot_MeanTime(t *testing.T) {
	t.Parallel()

	assert.Zero(t, Snapshot{}.MeanTime())
	assert.Equal(t, 25*time.Millisecond, Snapshot{Requests: 4, TotalTime: 100 * time.Millisecond}.MeanTime())
}

// ============================================================================
// Prometheus registry
// ============================================================================

func TestInitRegistry(t *testing.T) {
	ResetRegistry()
	t.Cleanup(ResetRegistry)

	assert.False(t, IsEnabled())
	assert.Nil(t, GetRegistry())

	reg := InitRegistry()
	require.NotNil(t, reg)
	assert.True(t, IsEnabled())
	assert.Same(t, reg, GetRegistry())
	assert.Same(t, reg, InitRegistry(), "second call returns the same registry")
}
