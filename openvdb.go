package openvdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/openvdb/index"
	"github.com/hupe1980/openvdb/persistence"
	"github.com/hupe1980/openvdb/registry"
	"github.com/hupe1980/openvdb/wal"
)

// CollectionInfo summarizes a collection.
type CollectionInfo struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Vectors   int    `json:"vectors"`
}

// CollectionStats describes a collection and its index.
type CollectionStats struct {
	Name      string     `json:"name"`
	Dimension int        `json:"dimension"`
	Vectors   int        `json:"vectors"`
	IndexType index.Kind `json:"index_type"`

	// Nodes and Tombstones are zero for flat indexes.
	Nodes      int `json:"nodes,omitempty"`
	Tombstones int `json:"tombstones,omitempty"`
}

// VectorInput is a single record of an upsert batch.
type VectorInput struct {
	ID       string          `json:"id"`
	Values   []float32       `json:"values"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Match is a single query result.
type Match struct {
	ID       string          `json:"id"`
	Score    float32         `json:"score"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// DB is a multi-tenant vector database. It is safe for concurrent use.
//
// Every mutation is applied to memory under the registry lock and then
// appended to the WAL in commit order after the lock is released.
type DB struct {
	opts options
	reg  *registry.Registry
	mgr  *persistence.Manager // nil when in-memory

	recovery persistence.ReplayStats

	snapshots    singleflight.Group
	autoSnapshot atomic.Bool
	bgMu         sync.Mutex // orders bg.Add against Close
	bg           sync.WaitGroup
	closed       atomic.Bool
}

// Open creates a DB and recovers its state from the data directory.
//
// Example:
//
//	db, err := openvdb.Open(ctx,
//	    openvdb.WithDataDir("./data"),
//	    openvdb.WithIndexKind(index.KindHNSW),
//	)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
// A corrupt snapshot fails Open with ErrCorruptSnapshot. Corrupt WAL lines
// are logged and skipped.
func Open(ctx context.Context, optFns ...Option) (*DB, error) {
	opts := applyOptions(optFns)

	factory, err := registry.NewIndexFactory(opts.indexKind, opts.hnswOptions...)
	if err != nil {
		return nil, invalidInput("%v", err)
	}

	db := &DB{
		opts: opts,
		reg:  registry.New(factory),
	}

	if opts.inMemory {
		return db, nil
	}

	mgr, err := persistence.NewManager(func(o *persistence.Options) {
		o.Dir = opts.dataDir
		o.Durability = opts.durability
		o.Compression = opts.compression
		o.Codec = opts.codec
		o.FileSystem = opts.fileSystem
		o.Mirror = opts.mirror
		o.MirrorPrefix = opts.mirrorPrefix
		o.MirrorKeep = opts.mirrorKeep
		o.Logger = opts.logger.Logger
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	stats, err := mgr.Recover(ctx, db.reg)
	opts.logger.LogRecovery(ctx, stats, err)
	if err != nil {
		_ = mgr.Close()
		return nil, translateError(err)
	}

	db.mgr = mgr
	db.recovery = stats

	return db, nil
}

// RecoveryStats reports what Open restored.
func (db *DB) RecoveryStats() persistence.ReplayStats {
	return db.recovery
}

// CreateCollection creates an empty collection.
func (db *DB) CreateCollection(ctx context.Context, tenant, name string, dimension int) (CollectionInfo, error) {
	if err := db.check(ctx, tenant, name); err != nil {
		return CollectionInfo{}, err
	}

	lsn, err := db.reg.Create(tenant, name, dimension)
	if err == nil {
		err = db.commit(ctx, lsn, wal.CreateCollection(tenant, name, dimension))
	}
	err = translateError(err)

	db.opts.logger.LogCollection(ctx, "create collection", tenant, name, err)
	if err != nil && lsn == 0 {
		return CollectionInfo{}, err
	}

	return CollectionInfo{Name: name, Dimension: dimension}, err
}

// DeleteCollection removes a collection and all its vectors. It reports
// false if the collection did not exist.
func (db *DB) DeleteCollection(ctx context.Context, tenant, name string) (bool, error) {
	if err := db.check(ctx, tenant, name); err != nil {
		return false, err
	}

	lsn, ok := db.reg.Delete(tenant, name)
	if !ok {
		return false, nil
	}

	err := translateError(db.commit(ctx, lsn, wal.DeleteCollection(tenant, name)))
	db.opts.logger.LogCollection(ctx, "delete collection", tenant, name, err)

	return true, err
}

// ListCollections returns the tenant's collections ordered by name.
func (db *DB) ListCollections(_ context.Context, tenant string) []CollectionInfo {
	summaries := db.reg.List(tenant)

	out := make([]CollectionInfo, len(summaries))
	for i, s := range summaries {
		out[i] = CollectionInfo{Name: s.Name, Dimension: s.Dimension, Vectors: s.VectorCount}
	}
	return out
}

// Tenants returns the tenants that own at least one collection, sorted.
func (db *DB) Tenants() []string {
	return db.reg.Tenants()
}

// GetCollection returns a single collection's summary.
func (db *DB) GetCollection(ctx context.Context, tenant, name string) (CollectionInfo, error) {
	if err := db.check(ctx, tenant, name); err != nil {
		return CollectionInfo{}, err
	}

	s, err := db.reg.Get(tenant, name)
	if err != nil {
		return CollectionInfo{}, translateError(err)
	}
	return CollectionInfo{Name: s.Name, Dimension: s.Dimension, Vectors: s.VectorCount}, nil
}

// CollectionStats returns a collection's index statistics.
func (db *DB) CollectionStats(ctx context.Context, tenant, name string) (CollectionStats, error) {
	if err := db.check(ctx, tenant, name); err != nil {
		return CollectionStats{}, err
	}

	st, err := db.reg.Stat(tenant, name)
	if err != nil {
		return CollectionStats{}, translateError(err)
	}
	return CollectionStats{
		Name:       name,
		Dimension:  st.Dimension,
		Vectors:    st.Vectors,
		IndexType:  st.Kind,
		Nodes:      st.Nodes,
		Tombstones: st.Tombstones,
	}, nil
}

// Upsert inserts or replaces vectors. The batch is applied in order and
// stops at the first invalid record; records before it stay committed.
// It returns the number of records applied.
func (db *DB) Upsert(ctx context.Context, tenant, name string, vectors []VectorInput) (int, error) {
	start := time.Now()

	if err := db.check(ctx, tenant, name); err != nil {
		return 0, err
	}

	var (
		applied int
		entries = make([]wal.Entry, 0, len(vectors))
	)
	lsn, err := db.reg.Update(tenant, name, func(idx index.Index) (bool, error) {
		for i, v := range vectors {
			if v.ID == "" {
				return applied > 0, invalidInput("vector %d: empty id", i)
			}
			if err := idx.Upsert(v.ID, v.Values, v.Metadata); err != nil {
				return applied > 0, fmt.Errorf("vector %q: %w", v.ID, err)
			}
			entries = append(entries, wal.UpsertVector(tenant, name, v.ID, v.Values, index.NormalizeMetadata(v.Metadata)))
			applied++
		}
		return applied > 0, nil
	})
	err = translateError(err)

	if cerr := db.commit(ctx, lsn, entries...); cerr != nil && err == nil {
		err = cerr
	}

	db.opts.metricsCollector.RecordUpsert(len(vectors), applied, time.Since(start))
	db.opts.logger.LogUpsert(ctx, tenant, name, len(vectors), applied, err)

	return applied, err
}

// DeleteVector removes a vector. It reports false if the ID was absent.
func (db *DB) DeleteVector(ctx context.Context, tenant, name, id string) (bool, error) {
	start := time.Now()

	if err := db.check(ctx, tenant, name); err != nil {
		return false, err
	}
	if id == "" {
		return false, invalidInput("empty id")
	}

	var deleted bool
	lsn, err := db.reg.Update(tenant, name, func(idx index.Index) (bool, error) {
		deleted = idx.Delete(id)
		return deleted, nil
	})
	if err == nil {
		err = db.commit(ctx, lsn, wal.DeleteVector(tenant, name, id))
	}
	err = translateError(err)

	db.opts.metricsCollector.RecordDelete(time.Since(start), err)
	db.opts.logger.LogDelete(ctx, tenant, name, id, deleted, err)

	return deleted, err
}

// Query returns up to topK matches ordered by descending cosine similarity.
// A topK of zero or less returns no matches.
func (db *DB) Query(ctx context.Context, tenant, name string, vector []float32, topK int) ([]Match, error) {
	start := time.Now()

	if err := db.check(ctx, tenant, name); err != nil {
		return nil, err
	}

	var points []index.ScoredPoint
	err := db.reg.View(tenant, name, func(idx index.Index) error {
		var err error
		points, err = idx.Query(vector, topK)
		return err
	})
	err = translateError(err)

	db.opts.metricsCollector.RecordQuery(topK, time.Since(start), err)
	db.opts.logger.LogQuery(ctx, tenant, name, topK, len(points), err)

	if err != nil {
		return nil, err
	}

	matches := make([]Match, len(points))
	for i, p := range points {
		matches[i] = Match{ID: p.ID, Score: p.Score, Metadata: p.Metadata}
	}
	return matches, nil
}

// SnapshotNow writes a snapshot of the current state and truncates the
// WAL. Concurrent calls share a single snapshot.
func (db *DB) SnapshotNow(ctx context.Context) error {
	if db.closed.Load() {
		return ErrClosed
	}
	if db.mgr == nil {
		return nil
	}

	_, err, _ := db.snapshots.Do("snapshot", func() (any, error) {
		return nil, db.snapshot(ctx)
	})
	return err
}

func (db *DB) snapshot(ctx context.Context) error {
	start := time.Now()

	info, err := db.mgr.Snapshot(ctx, db.reg.Export)

	db.opts.metricsCollector.RecordSnapshot(time.Since(start), err)
	db.opts.logger.LogSnapshot(ctx, info, err)

	if err != nil {
		if e := translateError(err); e != err {
			return e
		}
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// PendingEntries returns the number of WAL records written since the last
// snapshot.
func (db *DB) PendingEntries() int {
	if db.mgr == nil {
		return 0
	}
	return db.mgr.PendingEntries()
}

// Close waits for background snapshots and closes the WAL. Further
// operations return ErrClosed.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}

	db.bgMu.Lock()
	db.bgMu.Unlock() //nolint:staticcheck // empty critical section fences bg.Add
	db.bg.Wait()

	if db.mgr != nil {
		return db.mgr.Close()
	}
	return nil
}

// check validates the common arguments of collection-scoped operations.
func (db *DB) check(ctx context.Context, tenant, name string) error {
	if db.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if tenant == "" {
		return invalidInput("empty tenant")
	}
	if name == "" {
		return invalidInput("empty collection name")
	}
	return nil
}

// commit appends the entries of the mutation stamped with lsn. A zero lsn
// means nothing changed. Append failures are logged and only returned in
// strict mode.
func (db *DB) commit(ctx context.Context, lsn uint64, entries ...wal.Entry) error {
	if db.mgr == nil || lsn == 0 {
		return nil
	}

	start := time.Now()
	err := db.mgr.Append(lsn, entries...)
	db.opts.metricsCollector.RecordWALAppend(time.Since(start), err)

	if err != nil {
		db.opts.logger.LogWALAppend(ctx, lsn, len(entries), err)
		if db.opts.strictDurability {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
		return nil
	}

	db.maybeAutoSnapshot()
	return nil
}

// maybeAutoSnapshot starts a background snapshot once the WAL has grown
// past the configured threshold. At most one runs at a time.
func (db *DB) maybeAutoSnapshot() {
	n := db.opts.autoSnapshot
	if n <= 0 || db.mgr.PendingEntries() < n {
		return
	}
	if !db.autoSnapshot.CompareAndSwap(false, true) {
		return
	}

	db.bgMu.Lock()
	defer db.bgMu.Unlock()
	if db.closed.Load() {
		db.autoSnapshot.Store(false)
		return
	}

	db.bg.Add(1)
	go func() {
		defer db.bg.Done()
		defer db.autoSnapshot.Store(false)

		// Errors are logged by snapshot.
		_ = db.snapshot(context.Background())
	}()
}
