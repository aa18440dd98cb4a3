package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/godudb/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "godudb.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleEntries() []model.Entry {
	mtime := time.Date(2024, 5, 1, 12, 0, 0, 500, time.UTC)
	return []model.Entry{
		{Path: "/r/a/x", Name: "x", ParentPath: "/r/a", Size: 4, ModTime: mtime, Depth: 2},
		{Path: "/r/a", Name: "a", ParentPath: "/r", Size: 4, IsDir: true, ModTime: mtime, Depth: 1},
		{Path: "/r/b", Name: "b", ParentPath: "/r", Size: 10, Depth: 1},
		{Path: "/r", Name: "/r", Size: 14, IsDir: true, ModTime: mtime, Depth: 0},
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "godudb.db")
	ctx := context.Background()

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	id, err := s.CreateScan(ctx, "/r", "runner-1")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, nil)
	require.NoError(t, err, "second open must treat applied migrations as no change")
	defer s.Close()

	scan, err := s.GetScan(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "/r", scan.RootPath)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "  ", nil)
	require.Error(t, err)
}

func TestScanLifecycleTransitions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreateScan(ctx, "/r", "runner-1")
	require.NoError(t, err)

	scan, err := s.GetScan(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, scan.Status)
	assert.Nil(t, scan.CompletedAt)
	assert.Equal(t, "runner-1", scan.Runner)
	assert.True(t, scan.Orphaned())

	paused := model.Stats{TotalSize: 3, TotalFiles: 1}
	require.NoError(t, s.PauseScan(ctx, id, paused))
	require.ErrorIs(t, s.PauseScan(ctx, id, paused), ErrInvalidTransition)
	require.ErrorIs(t, s.CompleteScan(ctx, id, paused), ErrInvalidTransition)

	scan, err = s.GetScan(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaused, scan.Status)
	assert.Equal(t, paused, scan.Stats)

	require.NoError(t, s.ResumeScan(ctx, id, "runner-2"))
	require.ErrorIs(t, s.ResumeScan(ctx, id, "runner-3"), ErrInvalidTransition)

	final := model.Stats{TotalSize: 14, TotalFiles: 2, TotalDirs: 2}
	require.NoError(t, s.CompleteScan(ctx, id, final))

	scan, err = s.GetScan(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, scan.Status)
	assert.Equal(t, final, scan.Stats)
	assert.Equal(t, "runner-2", scan.Runner)
	require.NotNil(t, scan.CompletedAt)
	assert.False(t, scan.Orphaned())

	// Completed scans never regress.
	require.ErrorIs(t, s.PauseScan(ctx, id, paused), ErrInvalidTransition)
	require.ErrorIs(t, s.FailScan(ctx, id), ErrInvalidTransition)
}

func TestMissingScan(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.GetScan(ctx, 42)
	require.ErrorIs(t, err, ErrScanNotFound)
	require.ErrorIs(t, s.PauseScan(ctx, 42, model.Stats{}), ErrScanNotFound)
	require.ErrorIs(t, s.DeleteScan(ctx, 42), ErrScanNotFound)
}

func TestFailScan(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreateScan(ctx, "/gone", "")
	require.NoError(t, err)
	require.NoError(t, s.PauseScan(ctx, id, model.Stats{}))
	require.NoError(t, s.FailScan(ctx, id))

	scan, err := s.GetScan(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, scan.Status)
	assert.False(t, scan.Status.Resumable())
}

func TestListScans_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []int64
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * 1500 * time.Millisecond)
		s.now = func() time.Time { return at }
		id, err := s.CreateScan(ctx, "/r", "")
		require.NoError(t, err)
		ids = append(ids, id)
	}

	scans, err := s.ListScans(ctx)
	require.NoError(t, err)
	require.Len(t, scans, 3)
	assert.Equal(t, []int64{ids[2], ids[1], ids[0]}, []int64{scans[0].ID, scans[1].ID, scans[2].ID})
	assert.True(t, scans[0].StartedAt.Equal(base.Add(3*time.Second)))
}

func TestInsertEntriesAndQueries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreateScan(ctx, "/r", "")
	require.NoError(t, err)
	require.NoError(t, s.InsertEntries(ctx, id, sampleEntries()))
	require.NoError(t, s.InsertEntries(ctx, id, nil))

	stats, err := s.EntryStats(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{TotalSize: 14, TotalFiles: 2, TotalDirs: 2}, stats)

	paths, err := s.ScannedPaths(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"/r/a/x": 4, "/r/a": 4, "/r/b": 10, "/r": 14}, paths)

	all, err := s.Entries(ctx, id)
	require.NoError(t, err)
	require.Len(t, all, 4)
	root := all[0]
	assert.Equal(t, "/r", root.Path)
	assert.Empty(t, root.ParentPath)
	assert.True(t, root.IsDir)
	assert.True(t, root.ModTime.Equal(sampleEntries()[3].ModTime))
	for _, e := range all {
		if e.Path == "/r/b" {
			assert.True(t, e.ModTime.IsZero(), "unknown mtime must stay unknown")
		}
	}

	largest, err := s.LargestEntries(ctx, id, 2)
	require.NoError(t, err)
	require.Len(t, largest, 2)
	assert.Equal(t, "/r", largest[0].Path)
	assert.Equal(t, "/r/b", largest[1].Path)

	children, err := s.Children(ctx, id, "/r")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "/r/b", children[0].Path)
}

func TestInsertEntries_BatchIsAtomic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreateScan(ctx, "/r", "")
	require.NoError(t, err)

	dup := []model.Entry{
		{Path: "/r/a", Name: "a", ParentPath: "/r", Size: 1, Depth: 1},
		{Path: "/r/a", Name: "a", ParentPath: "/r", Size: 1, Depth: 1},
	}
	require.Error(t, s.InsertEntries(ctx, id, dup))

	stats, err := s.EntryStats(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{}, stats, "a failed batch must leave no rows behind")
}

func TestDeleteScan_CascadesEntries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	keep, err := s.CreateScan(ctx, "/r", "")
	require.NoError(t, err)
	drop, err := s.CreateScan(ctx, "/r", "")
	require.NoError(t, err)
	require.NoError(t, s.InsertEntries(ctx, keep, sampleEntries()))
	require.NoError(t, s.InsertEntries(ctx, drop, sampleEntries()))

	require.NoError(t, s.DeleteScan(ctx, drop))

	_, err = s.GetScan(ctx, drop)
	require.ErrorIs(t, err, ErrScanNotFound)
	paths, err := s.ScannedPaths(ctx, drop)
	require.NoError(t, err)
	assert.Empty(t, paths)

	paths, err = s.ScannedPaths(ctx, keep)
	require.NoError(t, err)
	assert.Len(t, paths, 4)
}

func TestRunnerLeases(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.RenewLease(ctx, "alive", time.Minute))
	require.NoError(t, s.RenewLease(ctx, "stale", time.Second))
	require.NoError(t, s.RenewLease(ctx, "gone", -time.Second))

	live, err := s.LiveRunners(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"alive": true, "stale": true}, live)

	now = now.Add(10 * time.Second)
	live, err = s.LiveRunners(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"alive": true}, live, "stale lease expired")

	// Renewing extends an existing lease in place.
	require.NoError(t, s.RenewLease(ctx, "stale", time.Minute))
	live, err = s.LiveRunners(ctx)
	require.NoError(t, err)
	assert.True(t, live["stale"])

	require.NoError(t, s.ReleaseLease(ctx, "alive"))
	require.NoError(t, s.ReleaseLease(ctx, "never-held"))
	live, err = s.LiveRunners(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"stale": true}, live)
}
