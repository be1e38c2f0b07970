package openvdb

import (
	"log/slog"

	"github.com/hupe1980/openvdb/blobstore"
	"github.com/hupe1980/openvdb/codec"
	"github.com/hupe1980/openvdb/index"
	"github.com/hupe1980/openvdb/index/hnsw"
	"github.com/hupe1980/openvdb/internal/fs"
	"github.com/hupe1980/openvdb/persistence"
	"github.com/hupe1980/openvdb/wal"
)

// DefaultDataDir is used when no data directory is configured.
const DefaultDataDir = "data"

type options struct {
	dataDir          string
	inMemory         bool
	indexKind        index.Kind
	hnswOptions      []func(*hnsw.Options)
	durability       wal.DurabilityMode
	strictDurability bool
	autoSnapshot     int
	compression      persistence.Compression
	mirror           blobstore.Store
	mirrorPrefix     string
	mirrorKeep       int
	codec            codec.Codec
	fileSystem       fs.FileSystem
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Open.
type Option func(*options)

// WithDataDir sets the directory holding wal.jsonl and snapshot.json. It is
// created on demand.
func WithDataDir(dir string) Option {
	return func(o *options) {
		o.dataDir = dir
	}
}

// InMemory disables persistence entirely. Nothing is read or written on
// disk and SnapshotNow is a no-op.
func InMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// WithIndexKind selects the index variant used for every collection.
// The default is index.KindHNSW.
func WithIndexKind(kind index.Kind) Option {
	return func(o *options) {
		o.indexKind = kind
	}
}

// WithHNSW tunes the approximate index.
//
// Example:
//
//	db, _ := openvdb.Open(ctx, openvdb.WithHNSW(func(o *hnsw.Options) {
//	    o.EfSearch = 128
//	}))
func WithHNSW(optFns ...func(*hnsw.Options)) Option {
	return func(o *options) {
		o.hnswOptions = append(o.hnswOptions, optFns...)
	}
}

// WithDurability sets the WAL fsync mode.
func WithDurability(mode wal.DurabilityMode) Option {
	return func(o *options) {
		o.durability = mode
	}
}

// WithStrictDurability makes mutations return an ErrIO-wrapped error when
// their WAL append fails. The in-memory change is applied either way.
func WithStrictDurability() Option {
	return func(o *options) {
		o.strictDurability = true
	}
}

// WithAutoSnapshot triggers a background snapshot once the WAL holds at
// least n records. Zero disables it.
func WithAutoSnapshot(n int) Option {
	return func(o *options) {
		o.autoSnapshot = n
	}
}

// WithSnapshotCompression compresses snapshot files.
func WithSnapshotCompression(c persistence.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithSnapshotMirror uploads every snapshot to store under prefix and keeps
// the newest keep copies (zero keeps all).
func WithSnapshotMirror(store blobstore.Store, prefix string, keep int) Option {
	return func(o *options) {
		o.mirror = store
		if prefix != "" {
			o.mirrorPrefix = prefix
		}
		o.mirrorKeep = keep
	}
}

// WithCodec configures the codec used for WAL records and snapshots.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithFileSystem replaces the filesystem used for the data directory.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fileSystem = fsys
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &openvdb.BasicMetricsCollector{}
//	db, _ := openvdb.Open(ctx, openvdb.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(nil, level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(nil, level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		dataDir:          DefaultDataDir,
		indexKind:        index.KindHNSW,
		durability:       wal.DurabilityAsync,
		compression:      persistence.CompressionNone,
		mirrorPrefix:     persistence.DefaultOptions.MirrorPrefix,
		mirrorKeep:       persistence.DefaultOptions.MirrorKeep,
		codec:            codec.Default,
		fileSystem:       fs.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
