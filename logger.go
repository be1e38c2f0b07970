package openvdb

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/hupe1980/openvdb/persistence"
)

// Logger wraps slog.Logger with openvdb-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that writes JSON-formatted logs to w.
// If w is nil, stderr is used.
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that writes human-readable text logs to w.
// If w is nil, stderr is used.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithTenant adds a tenant field to the logger.
func (l *Logger) WithTenant(tenant string) *Logger {
	return &Logger{
		Logger: l.Logger.With("tenant", tenant),
	}
}

// WithCollection adds tenant and collection fields to the logger.
func (l *Logger) WithCollection(tenant, name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("tenant", tenant, "collection", name),
	}
}

// LogCollection logs a collection create or delete.
func (l *Logger) LogCollection(ctx context.Context, op, tenant, name string, err error) {
	if err != nil {
		l.WarnContext(ctx, op+" failed",
			"tenant", tenant,
			"collection", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, op+" completed",
			"tenant", tenant,
			"collection", name,
		)
	}
}

// LogUpsert logs a batch upsert.
func (l *Logger) LogUpsert(ctx context.Context, tenant, name string, count, applied int, err error) {
	if err != nil {
		l.WarnContext(ctx, "upsert completed with failures",
			"tenant", tenant,
			"collection", name,
			"total", count,
			"applied", applied,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "upsert completed",
			"tenant", tenant,
			"collection", name,
			"count", count,
		)
	}
}

// LogQuery logs a query.
func (l *Logger) LogQuery(ctx context.Context, tenant, name string, topK, resultsFound int, err error) {
	if err != nil {
		l.DebugContext(ctx, "query failed",
			"tenant", tenant,
			"collection", name,
			"top_k", topK,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"tenant", tenant,
			"collection", name,
			"top_k", topK,
			"results", resultsFound,
		)
	}
}

// LogDelete logs a vector delete.
func (l *Logger) LogDelete(ctx context.Context, tenant, name, id string, deleted bool, err error) {
	if err != nil {
		l.DebugContext(ctx, "delete failed",
			"tenant", tenant,
			"collection", name,
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"tenant", tenant,
			"collection", name,
			"id", id,
			"deleted", deleted,
		)
	}
}

// LogWALAppend logs a failed WAL append. The in-memory mutation has
// already been applied.
func (l *Logger) LogWALAppend(ctx context.Context, lsn uint64, entries int, err error) {
	l.ErrorContext(ctx, "WAL append failed",
		"lsn", lsn,
		"entries", entries,
		"error", err,
	)
}

// LogSnapshot logs a snapshot operation.
func (l *Logger) LogSnapshot(ctx context.Context, info persistence.SnapshotInfo, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"lsn", info.LSN,
			"bytes", info.Bytes,
			"collections", info.Collections,
			"vectors", info.Vectors,
			"duration", info.Duration,
			"mirror", info.MirrorName,
		)
	}
}

// LogRecovery logs the outcome of startup recovery.
func (l *Logger) LogRecovery(ctx context.Context, stats persistence.ReplayStats, err error) {
	if err != nil {
		l.ErrorContext(ctx, "recovery failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "recovery completed",
			"snapshot", stats.SnapshotLoaded,
			"entries_applied", stats.Applied,
			"entries_skipped", stats.Skipped,
			"entries_corrupt", stats.Corrupt,
		)
	}
}
