package openvdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/openvdb/blobstore"
	"github.com/hupe1980/openvdb/index"
	"github.com/hupe1980/openvdb/internal/fs"
	"github.com/hupe1980/openvdb/persistence"
	"github.com/hupe1980/openvdb/testutil"
	"github.com/hupe1980/openvdb/wal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var kinds = []index.Kind{index.KindFlat, index.KindHNSW}

func openDB(t *testing.T, dir string, optFns ...Option) *DB {
	t.Helper()
	db, err := Open(context.Background(), append([]Option{WithDataDir(dir)}, optFns...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func ids(matches []Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.ID
	}
	return out
}

func TestDB_SelfMatch(t *testing.T) {
	ctx := context.Background()

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			db := openDB(t, t.TempDir(), WithIndexKind(kind))

			rng := testutil.NewRNG(42)
			vecs := rng.UniformRangeVectors(100, 16)
			vids := testutil.IDs("v", len(vecs))

			_, err := db.CreateCollection(ctx, "acme", "docs", 16)
			require.NoError(t, err)

			batch := make([]VectorInput, len(vecs))
			for i := range vecs {
				batch[i] = VectorInput{ID: vids[i], Values: vecs[i]}
			}
			n, err := db.Upsert(ctx, "acme", "docs", batch)
			require.NoError(t, err)
			assert.Equal(t, len(vecs), n)

			for i := 0; i < len(vecs); i += 10 {
				matches, err := db.Query(ctx, "acme", "docs", vecs[i], 1)
				require.NoError(t, err)
				require.Len(t, matches, 1)
				assert.Equal(t, vids[i], matches[0].ID)
				assert.InDelta(t, 1.0, matches[0].Score, 1e-5)
			}
		})
	}
}

func TestDB_CollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, t.TempDir())

	info, err := db.CreateCollection(ctx, "acme", "docs", 3)
	require.NoError(t, err)
	assert.Equal(t, CollectionInfo{Name: "docs", Dimension: 3}, info)

	_, err = db.CreateCollection(ctx, "acme", "docs", 3)
	require.ErrorIs(t, err, ErrConflict)

	_, err = db.CreateCollection(ctx, "acme", "bad", 0)
	require.ErrorIs(t, err, ErrInvalidInput)
	var invalid *ErrInvalidDimension
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 0, invalid.Dimension)

	_, err = db.CreateCollection(ctx, "acme", "alpha", 2)
	require.NoError(t, err)
	_, err = db.CreateCollection(ctx, "globex", "docs", 5)
	require.NoError(t, err)

	_, err = db.Upsert(ctx, "acme", "docs", []VectorInput{{ID: "a", Values: []float32{1, 0, 0}}})
	require.NoError(t, err)

	list := db.ListCollections(ctx, "acme")
	assert.Equal(t, []CollectionInfo{
		{Name: "alpha", Dimension: 2},
		{Name: "docs", Dimension: 3, Vectors: 1},
	}, list)
	assert.Empty(t, db.ListCollections(ctx, "nobody"))

	got, err := db.GetCollection(ctx, "globex", "docs")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Dimension)

	_, err = db.GetCollection(ctx, "acme", "missing")
	require.ErrorIs(t, err, ErrNotFound)

	ok, err := db.DeleteCollection(ctx, "acme", "docs")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.DeleteCollection(ctx, "acme", "docs")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = db.Query(ctx, "acme", "docs", []float32{1, 0, 0}, 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDB_InvalidNames(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, t.TempDir())

	_, err := db.CreateCollection(ctx, "", "docs", 3)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = db.CreateCollection(ctx, "acme", "", 3)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = db.CreateCollection(ctx, "acme", "docs", 3)
	require.NoError(t, err)

	_, err = db.DeleteVector(ctx, "acme", "docs", "")
	require.ErrorIs(t, err, ErrInvalidInput)

	n, err := db.Upsert(ctx, "acme", "docs", []VectorInput{{ID: "", Values: []float32{1, 0, 0}}})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, n)
}

func TestDB_OverwriteAndDelete(t *testing.T) {
	ctx := context.Background()

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			db := openDB(t, t.TempDir(), WithIndexKind(kind))

			_, err := db.CreateCollection(ctx, "t", "c", 3)
			require.NoError(t, err)

			_, err = db.Upsert(ctx, "t", "c", []VectorInput{
				{ID: "a", Values: []float32{1, 0, 0}, Metadata: json.RawMessage(`{"v":1}`)},
				{ID: "b", Values: []float32{0, 1, 0}},
			})
			require.NoError(t, err)

			_, err = db.Upsert(ctx, "t", "c", []VectorInput{
				{ID: "a", Values: []float32{0, 0, 1}, Metadata: json.RawMessage(`{"v":2}`)},
			})
			require.NoError(t, err)

			info, err := db.GetCollection(ctx, "t", "c")
			require.NoError(t, err)
			assert.Equal(t, 2, info.Vectors)

			matches, err := db.Query(ctx, "t", "c", []float32{0, 0, 1}, 1)
			require.NoError(t, err)
			require.Len(t, matches, 1)
			assert.Equal(t, "a", matches[0].ID)
			assert.JSONEq(t, `{"v":2}`, string(matches[0].Metadata))

			deleted, err := db.DeleteVector(ctx, "t", "c", "a")
			require.NoError(t, err)
			assert.True(t, deleted)

			deleted, err = db.DeleteVector(ctx, "t", "c", "a")
			require.NoError(t, err)
			assert.False(t, deleted)

			_, err = db.Upsert(ctx, "t", "c", []VectorInput{{ID: "z", Values: []float32{0.1, 0.1, 1}}})
			require.NoError(t, err)

			matches, err = db.Query(ctx, "t", "c", []float32{0, 0, 1}, 10)
			require.NoError(t, err)
			assert.NotContains(t, ids(matches), "a")
			assert.ElementsMatch(t, []string{"b", "z"}, ids(matches))

			stats, err := db.CollectionStats(ctx, "t", "c")
			require.NoError(t, err)
			assert.Equal(t, kind, stats.IndexType)
			assert.Equal(t, 2, stats.Vectors)
			if kind == index.KindHNSW {
				assert.Equal(t, 4, stats.Nodes)
				assert.Equal(t, 2, stats.Tombstones)
			}
		})
	}
}

func TestDB_QueryEdgeCases(t *testing.T) {
	ctx := context.Background()

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			db := openDB(t, t.TempDir(), WithIndexKind(kind))

			_, err := db.CreateCollection(ctx, "t", "c", 3)
			require.NoError(t, err)

			// Empty collection.
			matches, err := db.Query(ctx, "t", "c", []float32{1, 0, 0}, 5)
			require.NoError(t, err)
			assert.NotNil(t, matches)
			assert.Empty(t, matches)

			_, err = db.Upsert(ctx, "t", "c", []VectorInput{{ID: "a", Values: []float32{1, 2, 3}}})
			require.NoError(t, err)

			matches, err = db.Query(ctx, "t", "c", []float32{1, 0, 0}, 0)
			require.NoError(t, err)
			assert.Empty(t, matches)

			matches, err = db.Query(ctx, "t", "c", []float32{1, 0, 0}, 50)
			require.NoError(t, err)
			assert.Len(t, matches, 1)

			_, err = db.Query(ctx, "t", "c", []float32{0, 0, 0}, 1)
			require.ErrorIs(t, err, ErrInvalidInput)

			_, err = db.Query(ctx, "t", "c", []float32{1, 0}, 1)
			require.ErrorIs(t, err, ErrInvalidInput)
			var dm *ErrDimensionMismatch
			require.ErrorAs(t, err, &dm)
			assert.Equal(t, 3, dm.Expected)
			assert.Equal(t, 2, dm.Actual)
		})
	}
}

func TestDB_InvalidUpsertLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db := openDB(t, dir)

	_, err := db.CreateCollection(ctx, "t", "c", 3)
	require.NoError(t, err)
	_, err = db.Upsert(ctx, "t", "c", []VectorInput{{ID: "a", Values: []float32{1, 0, 0}}})
	require.NoError(t, err)

	n, err := db.Upsert(ctx, "t", "c", []VectorInput{{ID: "a", Values: []float32{1, 0}}})
	require.ErrorIs(t, err, ErrInvalidInput)
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Zero(t, n)

	n, err = db.Upsert(ctx, "t", "c", []VectorInput{{ID: "zero", Values: []float32{0, 0, 0}}})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, n)

	info, err := db.GetCollection(ctx, "t", "c")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Vectors)

	matches, err := db.Query(ctx, "t", "c", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(matches))
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)

	// Nothing was logged for the rejected upserts.
	assert.Equal(t, 2, db.PendingEntries())
}

func TestDB_BatchUpsertPartialSuccess(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db := openDB(t, dir)
	_, err := db.CreateCollection(ctx, "t", "c", 2)
	require.NoError(t, err)

	n, err := db.Upsert(ctx, "t", "c", []VectorInput{
		{ID: "a", Values: []float32{1, 0}},
		{ID: "b", Values: []float32{0, 1}},
		{ID: "bad", Values: []float32{1, 2, 3}},
		{ID: "c", Values: []float32{1, 1}},
	})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 2, n)
	require.NoError(t, db.Close())

	db2 := openDB(t, dir)
	info, err := db2.GetCollection(ctx, "t", "c")
	require.NoError(t, err)
	assert.Equal(t, 2, info.Vectors)
}

func TestDB_DurabilityRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db := openDB(t, dir)
	_, err := db.CreateCollection(ctx, "t", "c", 3)
	require.NoError(t, err)
	_, err = db.Upsert(ctx, "t", "c", []VectorInput{{ID: "a", Values: []float32{1, 0, 0}}})
	require.NoError(t, err)
	_, err = db.Upsert(ctx, "t", "c", []VectorInput{{ID: "b", Values: []float32{0, 1, 0}, Metadata: json.RawMessage(`{"k":"v"}`)}})
	require.NoError(t, err)
	_, err = db.DeleteVector(ctx, "t", "c", "a")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	raw, err := os.ReadFile(filepath.Join(dir, wal.FileName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 4)
	assert.JSONEq(t, `{"type":"create_collection","tenant":"t","name":"c","dimension":3}`, lines[0])
	assert.JSONEq(t, `{"type":"delete_vector","tenant":"t","collection":"c","id":"a"}`, lines[3])

	db2 := openDB(t, dir)
	stats := db2.RecoveryStats()
	assert.False(t, stats.SnapshotLoaded)
	assert.Equal(t, 4, stats.Applied)

	info, err := db2.GetCollection(ctx, "t", "c")
	require.NoError(t, err)
	assert.Equal(t, CollectionInfo{Name: "c", Dimension: 3, Vectors: 1}, info)

	matches, err := db2.Query(ctx, "t", "c", []float32{0, 1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].ID)
	assert.JSONEq(t, `{"k":"v"}`, string(matches[0].Metadata))
}

func TestDB_SnapshotAndWALComposition(t *testing.T) {
	ctx := context.Background()

	run := func(t *testing.T, dir string, snapshotAfter int) *DB {
		db := openDB(t, dir)
		ops := []func() error{
			func() error { _, err := db.CreateCollection(ctx, "t", "c", 3); return err },
			func() error {
				_, err := db.Upsert(ctx, "t", "c", []VectorInput{{ID: "a", Values: []float32{1, 0, 0}}})
				return err
			},
			func() error {
				_, err := db.Upsert(ctx, "t", "c", []VectorInput{{ID: "b", Values: []float32{0, 1, 0}}})
				return err
			},
			func() error { _, err := db.DeleteVector(ctx, "t", "c", "a"); return err },
		}
		for i, op := range ops {
			require.NoError(t, op())
			if i+1 == snapshotAfter {
				require.NoError(t, db.SnapshotNow(ctx))
				assert.Zero(t, db.PendingEntries())
			}
		}
		require.NoError(t, db.Close())
		return openDB(t, dir)
	}

	full := run(t, t.TempDir(), 0)
	composed := run(t, t.TempDir(), 3)

	assert.True(t, composed.RecoveryStats().SnapshotLoaded)
	assert.Equal(t, 1, composed.RecoveryStats().Applied)

	assert.Equal(t, full.ListCollections(ctx, "t"), composed.ListCollections(ctx, "t"))

	for _, db := range []*DB{full, composed} {
		matches, err := db.Query(ctx, "t", "c", []float32{1, 1, 0}, 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, ids(matches))
	}
}

func TestDB_CorruptSnapshotFailsOpen(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, persistence.SnapshotFileName), []byte(`{"version":1,"tenants":`), 0o600))

	_, err := Open(context.Background(), WithDataDir(dir))
	require.ErrorIs(t, err, ErrCorruptSnapshot)
}

func TestDB_CorruptWALLineSkipped(t *testing.T) {
	dir := t.TempDir()
	data := strings.Join([]string{
		`{"type":"create_collection","tenant":"t","name":"c","dimension":2}`,
		`garbage`,
		`{"type":"upsert_vector","tenant":"t","collection":"c","id":"a","values":[1,0]}`,
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, wal.FileName), []byte(data), 0o600))

	var logs bytes.Buffer
	db := openDB(t, dir, WithLogger(NewJSONLogger(&logs, 0)))
	assert.Equal(t, 1, db.RecoveryStats().Corrupt)
	assert.Contains(t, logs.String(), "skipping corrupt WAL record")

	info, err := db.GetCollection(context.Background(), "t", "c")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Vectors)
}

func TestDB_WALAppendFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	faulty := fs.NewFaultyFS(fs.Default)
	faulty.AddRule(wal.FileName, fs.Fault{FailAfterBytes: 0})

	metrics := &BasicMetricsCollector{}
	db := openDB(t, t.TempDir(), WithFileSystem(faulty), WithMetricsCollector(metrics))

	_, err := db.CreateCollection(ctx, "t", "c", 2)
	require.NoError(t, err)
	n, err := db.Upsert(ctx, "t", "c", []VectorInput{{ID: "a", Values: []float32{1, 0}}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	matches, err := db.Query(ctx, "t", "c", []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(matches))

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats.WALAppendCount)
	assert.Equal(t, int64(2), stats.WALAppendErrors)
	assert.Equal(t, int64(1), stats.QueryCount)
}

func TestDB_StrictDurability(t *testing.T) {
	ctx := context.Background()
	faulty := fs.NewFaultyFS(fs.Default)
	faulty.AddRule(wal.FileName, fs.Fault{FailAfterBytes: 0})

	db := openDB(t, t.TempDir(), WithFileSystem(faulty), WithStrictDurability())

	info, err := db.CreateCollection(ctx, "t", "c", 2)
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, fs.ErrInjected)
	assert.Equal(t, "c", info.Name)

	// The in-memory change was applied before the append failed.
	_, err = db.GetCollection(ctx, "t", "c")
	require.NoError(t, err)

	n, err := db.Upsert(ctx, "t", "c", []VectorInput{{ID: "a", Values: []float32{1, 0}}})
	require.ErrorIs(t, err, ErrIO)
	assert.Equal(t, 1, n)

	deleted, err := db.DeleteVector(ctx, "t", "c", "a")
	require.ErrorIs(t, err, ErrIO)
	assert.True(t, deleted)
}

func TestDB_AutoSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	metrics := &BasicMetricsCollector{}

	db := openDB(t, dir, WithAutoSnapshot(3), WithMetricsCollector(metrics))
	_, err := db.CreateCollection(ctx, "t", "c", 2)
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c"} {
		_, err := db.Upsert(ctx, "t", "c", []VectorInput{{ID: id, Values: []float32{1, 1}}})
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		return metrics.GetStats().SnapshotCount > 0
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, db.Close())

	_, err = os.Stat(filepath.Join(dir, persistence.SnapshotFileName))
	require.NoError(t, err)

	db2 := openDB(t, dir)
	assert.True(t, db2.RecoveryStats().SnapshotLoaded)
	info, err := db2.GetCollection(ctx, "t", "c")
	require.NoError(t, err)
	assert.Equal(t, 3, info.Vectors)
}

func TestDB_ConcurrentSnapshotNow(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	db := openDB(t, t.TempDir(), WithMetricsCollector(metrics))

	_, err := db.CreateCollection(ctx, "t", "c", 2)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, db.SnapshotNow(ctx))
		}()
	}
	wg.Wait()

	stats := metrics.GetStats()
	assert.GreaterOrEqual(t, stats.SnapshotCount, int64(1))
	assert.LessOrEqual(t, stats.SnapshotCount, int64(8))
	assert.Zero(t, stats.SnapshotErrors)
	assert.Zero(t, db.PendingEntries())
}

func TestDB_SnapshotFailure(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	faulty := fs.NewFaultyFS(fs.Default)

	db := openDB(t, dir, WithFileSystem(faulty))
	_, err := db.CreateCollection(ctx, "t", "c", 2)
	require.NoError(t, err)

	faulty.FailRename(".tmp", nil)
	err = db.SnapshotNow(ctx)
	require.ErrorIs(t, err, ErrIO)
	assert.Equal(t, 1, db.PendingEntries())
}

func TestDB_CompressedMirror(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	db := openDB(t, t.TempDir(),
		WithSnapshotCompression(persistence.CompressionLZ4),
		WithSnapshotMirror(store, "backups/", 1),
	)
	_, err := db.CreateCollection(ctx, "t", "c", 2)
	require.NoError(t, err)
	require.NoError(t, db.SnapshotNow(ctx))
	require.NoError(t, db.SnapshotNow(ctx))

	names, err := store.List(ctx, "backups/")
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.True(t, strings.HasSuffix(names[0], ".json.lz4"))
}

func TestDB_InMemory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := Open(ctx, InMemory(), WithDataDir(dir))
	require.NoError(t, err)

	_, err = db.CreateCollection(ctx, "t", "c", 2)
	require.NoError(t, err)
	require.NoError(t, db.SnapshotNow(ctx))
	assert.Zero(t, db.PendingEntries())
	require.NoError(t, db.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDB_Closed(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, t.TempDir())
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err := db.CreateCollection(ctx, "t", "c", 2)
	require.ErrorIs(t, err, ErrClosed)
	_, err = db.Query(ctx, "t", "c", []float32{1, 0}, 1)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, db.SnapshotNow(ctx), ErrClosed)
}

func TestDB_CanceledContext(t *testing.T) {
	db := openDB(t, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := db.CreateCollection(ctx, "t", "c", 2)
	require.ErrorIs(t, err, context.Canceled)
}

func TestOpen_InvalidIndexKind(t *testing.T) {
	_, err := Open(context.Background(), InMemory(), WithIndexKind("bogus"))
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestDB_ConcurrentTenants(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, t.TempDir(), WithIndexKind(index.KindFlat))

	tenants := []string{"a", "b", "c", "d"}
	for _, tenant := range tenants {
		_, err := db.CreateCollection(ctx, tenant, "docs", 4)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i, tenant := range tenants {
		wg.Add(2)
		go func(seed int64, tenant string) {
			defer wg.Done()
			rng := testutil.NewRNG(seed)
			for j, v := range rng.UniformRangeVectors(50, 4) {
				_, err := db.Upsert(ctx, tenant, "docs", []VectorInput{{ID: testutil.IDs("v", 50)[j], Values: v}})
				assert.NoError(t, err)
			}
		}(int64(i), tenant)
		go func(tenant string) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				matches, err := db.Query(ctx, tenant, "docs", []float32{1, 1, 1, 1}, 3)
				assert.NoError(t, err)
				assert.LessOrEqual(t, len(matches), 3)
			}
		}(tenant)
	}
	wg.Wait()

	for _, tenant := range tenants {
		info, err := db.GetCollection(ctx, tenant, "docs")
		require.NoError(t, err)
		assert.Equal(t, 50, info.Vectors)
	}
	assert.Equal(t, 4+4*50, db.PendingEntries())
	assert.Equal(t, tenants, db.Tenants())
}

func TestTranslateError(t *testing.T) {
	assert.Nil(t, translateError(nil))

	other := errors.New("other")
	assert.Equal(t, other, translateError(other))

	err := translateError(&index.ErrDimensionMismatch{Expected: 3, Actual: 2})
	assert.ErrorIs(t, err, ErrInvalidInput)
	var idm *index.ErrDimensionMismatch
	assert.ErrorAs(t, err, &idm)

	assert.ErrorIs(t, translateError(index.ErrDegenerateVector), ErrInvalidInput)
	assert.ErrorIs(t, translateError(index.ErrDegenerateVector), index.ErrDegenerateVector)
	assert.ErrorIs(t, translateError(persistence.ErrManagerClosed), ErrClosed)
}
