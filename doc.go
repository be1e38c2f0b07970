// Package openvdb provides a minimal multi-tenant vector database.
//
// Clients create named collections (fixed-dimension vector spaces) per
// tenant, upsert vectors with opaque JSON metadata, and run top-K cosine
// similarity queries. Each collection is backed by an exact (flat) or
// approximate (HNSW) index.
//
// # Quick Start
//
//	ctx := context.Background()
//	db, err := openvdb.Open(ctx, openvdb.WithDataDir("./data"))
//	if err != nil {
//	    panic(err)
//	}
//	defer db.Close()
//
//	_, _ = db.CreateCollection(ctx, "acme", "docs", 3)
//	_, _ = db.Upsert(ctx, "acme", "docs", []openvdb.VectorInput{
//	    {ID: "a", Values: []float32{1, 0, 0}, Metadata: json.RawMessage(`{"title":"A"}`)},
//	})
//	matches, _ := db.Query(ctx, "acme", "docs", []float32{1, 0.1, 0}, 5)
//
// # Durability Model
//
// Mutations are applied in memory and then appended to a JSON-lines
// write-ahead log (wal.jsonl) in commit order. SnapshotNow writes the full
// state atomically to snapshot.json and truncates the log. Open loads the
// snapshot, if any, and replays the log on top of it.
//
// By default a failed WAL append is logged but does not fail the mutation.
// WithStrictDurability surfaces it as ErrIO instead. WithDurability selects
// whether each append is fsynced.
//
// # Errors
//
// Errors match one of ErrInvalidInput, ErrNotFound, ErrConflict, ErrIO,
// ErrClosed or ErrCorruptSnapshot with errors.Is. Dimension problems are
// additionally available as *ErrDimensionMismatch and *ErrInvalidDimension
// via errors.As.
package openvdb
