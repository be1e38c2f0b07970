package wal

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/hupe1980/openvdb/codec"
	"github.com/hupe1980/openvdb/internal/fs"
)

// FileName is the default log file name inside the data directory.
const FileName = "wal.jsonl"

// ErrClosed is returned by operations on a closed log.
var ErrClosed = errors.New("wal is closed")

// Options contains configuration for the WAL.
type Options struct {
	// Dir is the directory holding the log file.
	Dir string

	// FileName is the log file name inside Dir.
	FileName string

	// DurabilityMode controls fsync behavior (Async or Sync).
	DurabilityMode DurabilityMode

	// Codec encodes and decodes entries.
	Codec codec.Codec

	// FileSystem is used for all file access.
	FileSystem fs.FileSystem

	// Logger receives warnings about repaired log tails.
	Logger *slog.Logger
}

// DefaultOptions returns default WAL options.
var DefaultOptions = Options{
	Dir:            ".",
	FileName:       FileName,
	DurabilityMode: DurabilityAsync,
}

// Log is an append-only JSON Lines file.
type Log struct {
	mu     sync.Mutex
	opts   Options
	path   string
	file   fs.File
	buf    *bufio.Writer
	torn   bool // the file may end without a newline
	count  int
	closed bool
}

// Open opens (creating if needed) the log file.
func Open(optFns ...func(o *Options)) (*Log, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.FileSystem == nil {
		opts.FileSystem = fs.Default
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	if err := opts.FileSystem.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	path := filepath.Join(opts.Dir, opts.FileName)
	file, err := opts.FileSystem.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAL file: %w", err)
	}

	l := &Log{
		opts: opts,
		path: path,
		file: file,
		buf:  bufio.NewWriter(file),
	}

	torn, err := l.endsTorn()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to inspect WAL tail: %w", err)
	}
	l.torn = torn

	return l, nil
}

// Path returns the log file path.
func (l *Log) Path() string { return l.path }

// endsTorn reports whether the file is non-empty and lacks a trailing newline.
func (l *Log) endsTorn() (bool, error) {
	st, err := l.opts.FileSystem.Stat(l.path)
	if err != nil {
		return false, err
	}
	if st.Size() == 0 {
		return false, nil
	}

	r, err := l.opts.FileSystem.OpenFile(l.path, os.O_RDONLY, 0)
	if err != nil {
		return false, err
	}
	defer r.Close()

	last := make([]byte, 1)
	if _, err := r.ReadAt(last, st.Size()-1); err != nil {
		return false, err
	}

	return last[0] != '\n', nil
}

// Append writes entries, one per line, and flushes them to the OS. In
// DurabilitySync mode the file is also fdatasynced.
func (l *Log) Append(entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	var payload bytes.Buffer
	for _, e := range entries {
		b, err := l.opts.Codec.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode %s entry: %w", e.Type, err)
		}
		payload.Write(b)
		payload.WriteByte('\n')
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	if l.torn {
		l.opts.Logger.Warn("sealing torn WAL tail", "path", l.path)
		if err := l.write([]byte{'\n'}); err != nil {
			return err
		}
		l.torn = false
	}

	if err := l.write(payload.Bytes()); err != nil {
		l.torn = true
		return err
	}

	if l.opts.DurabilityMode == DurabilitySync {
		if err := syncData(l.file); err != nil {
			return fmt.Errorf("failed to sync WAL: %w", err)
		}
	}

	l.count += len(entries)
	return nil
}

// write buffers p and flushes. Caller must hold l.mu.
func (l *Log) write(p []byte) error {
	if _, err := l.buf.Write(p); err != nil {
		l.buf.Reset(l.file)
		return fmt.Errorf("failed to write WAL: %w", err)
	}
	if err := l.buf.Flush(); err != nil {
		l.buf.Reset(l.file)
		return fmt.Errorf("failed to flush WAL: %w", err)
	}
	return nil
}

// ReplayStats summarizes a Replay pass.
type ReplayStats struct {
	Entries int // well-formed entries passed to the callback
	Corrupt int // lines that failed to decode or validate
}

// Replay reads the log from the beginning and calls fn for every valid
// entry in file order. Lines that cannot be decoded or fail validation are
// passed to onCorrupt (1-based line number) and skipped. An error from fn
// stops the replay.
func (l *Log) Replay(ctx context.Context, fn func(Entry) error, onCorrupt func(line int, err error)) (ReplayStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var stats ReplayStats
	if l.closed {
		return stats, ErrClosed
	}

	f, err := l.opts.FileSystem.OpenFile(l.path, os.O_RDONLY, 0)
	if err != nil {
		return stats, fmt.Errorf("failed to open WAL for replay: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		line, readErr := r.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return stats, fmt.Errorf("failed to read WAL line %d: %w", lineNo, readErr)
		}

		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			var e Entry
			if err := l.opts.Codec.Unmarshal(trimmed, &e); err != nil {
				stats.Corrupt++
				if onCorrupt != nil {
					onCorrupt(lineNo, fmt.Errorf("%w: %w", ErrCorruptRecord, err))
				}
			} else if err := e.Validate(); err != nil {
				stats.Corrupt++
				if onCorrupt != nil {
					onCorrupt(lineNo, fmt.Errorf("%w: %w", ErrCorruptRecord, err))
				}
			} else {
				stats.Entries++
				if err := fn(e); err != nil {
					return stats, err
				}
			}
		}

		if readErr != nil {
			break
		}
	}

	l.count = stats.Entries + stats.Corrupt
	return stats, nil
}

// Truncate empties the log.
func (l *Log) Truncate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if err := l.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush WAL: %w", err)
	}
	if err := l.opts.FileSystem.Truncate(l.path, 0); err != nil {
		return fmt.Errorf("failed to truncate WAL: %w", err)
	}

	l.torn = false
	l.count = 0
	return nil
}

// Count returns the number of records in the file as of the last Replay or
// Truncate plus those appended since.
func (l *Log) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Close flushes and closes the log file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	flushErr := l.buf.Flush()
	closeErr := l.file.Close()
	return errors.Join(flushErr, closeErr)
}
