package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/openvdb/blobstore"
	"github.com/hupe1980/openvdb/codec"
	"github.com/hupe1980/openvdb/internal/fs"
	"github.com/hupe1980/openvdb/wal"
)

// SnapshotFileName is the canonical snapshot file inside the data directory.
const SnapshotFileName = "snapshot.json"

var (
	// ErrManagerClosed is returned when operations are attempted on a closed manager.
	ErrManagerClosed = errors.New("persistence manager is closed")

	// ErrWrongPhase is returned when an operation is not allowed in the
	// manager's current lifecycle phase.
	ErrWrongPhase = errors.New("operation not allowed in current phase")

	// ErrNoMirror is returned by mirror operations when no mirror is configured.
	ErrNoMirror = errors.New("snapshot mirror not configured")
)

// Phase is the manager lifecycle state.
type Phase int

const (
	// PhaseCold is the state before recovery.
	PhaseCold Phase = iota
	// PhaseReplaying is the state while the snapshot and WAL are being applied.
	PhaseReplaying
	// PhaseLive accepts appends and snapshots.
	PhaseLive
)

func (p Phase) String() string {
	switch p {
	case PhaseCold:
		return "cold"
	case PhaseReplaying:
		return "replaying"
	case PhaseLive:
		return "live"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Target is the state that recovery rebuilds. Replay goes through the same
// operations as live traffic, so invalid records are rejected by the same
// validation.
type Target interface {
	// Restore replaces all state with a snapshot.
	Restore(state *State) error

	HasCollection(tenant, name string) bool
	CreateCollection(tenant, name string, dimension int) error
	DeleteCollection(tenant, name string) bool
	UpsertVector(tenant, name, id string, values []float32, metadata json.RawMessage) error
	DeleteVector(tenant, name, id string) (bool, error)

	// LSN returns the sequence number of the most recent mutation.
	LSN() uint64
}

// Options configures the persistence manager.
type Options struct {
	// Dir is the data directory holding wal.jsonl and snapshot.json.
	Dir string

	// Durability controls WAL fsync behavior.
	Durability wal.DurabilityMode

	// Compression is applied to new snapshots. Existing snapshots are
	// decoded whatever their compression.
	Compression Compression

	// Codec encodes WAL records and snapshots.
	Codec codec.Codec

	// FileSystem is used for all local file access.
	FileSystem fs.FileSystem

	// Mirror, if set, receives a copy of every snapshot.
	Mirror blobstore.Store

	// MirrorPrefix is prepended to mirrored snapshot names.
	MirrorPrefix string

	// MirrorKeep is the number of mirrored snapshots to retain. Zero keeps all.
	MirrorKeep int

	// Logger receives recovery and snapshot diagnostics.
	Logger *slog.Logger
}

// DefaultOptions contains the default manager configuration.
var DefaultOptions = Options{
	Dir:          "data",
	Durability:   wal.DurabilityAsync,
	Compression:  CompressionNone,
	MirrorPrefix: "snapshots/",
	MirrorKeep:   5,
}

// ReplayStats summarizes a recovery.
type ReplayStats struct {
	SnapshotLoaded bool `json:"snapshot_loaded"`
	Collections    int  `json:"collections"` // collections restored from the snapshot
	Vectors        int  `json:"vectors"`     // vectors restored from the snapshot
	Applied        int  `json:"applied"`     // WAL records that changed state
	Skipped        int  `json:"skipped"`     // WAL records that were no-ops or failed to apply
	Corrupt        int  `json:"corrupt"`     // WAL lines that could not be decoded
}

// SnapshotInfo describes a completed snapshot.
type SnapshotInfo struct {
	LSN         uint64
	Bytes       int
	Collections int
	Vectors     int
	Duration    time.Duration
	MirrorName  string // empty if not mirrored
}

// Manager coordinates all persistence operations (snapshots, WAL, recovery).
//
// Appends are ordered by LSN: Append(lsn) blocks until every lower LSN has
// been appended. Snapshot raises a barrier so appends above the captured LSN
// wait until the WAL has been truncated.
type Manager struct {
	opts Options
	log  *wal.Log

	snapMu sync.Mutex // serializes Snapshot and mirror restore

	mu           sync.Mutex
	cond         *sync.Cond
	phase        Phase
	applied      uint64 // highest LSN written to the WAL
	snapshotting bool
	barrier      uint64 // appends above this wait while snapshotting
	closed       bool
}

// NewManager opens the WAL in the data directory. The manager starts Cold.
func NewManager(optFns ...func(o *Options)) (*Manager, error) {
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
	if _, err := ParseCompression(string(opts.Compression)); err != nil {
		return nil, err
	}

	log, err := wal.Open(func(o *wal.Options) {
		o.Dir = opts.Dir
		o.DurabilityMode = opts.Durability
		o.Codec = opts.Codec
		o.FileSystem = opts.FileSystem
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	m := &Manager{opts: opts, log: log}
	m.cond = sync.NewCond(&m.mu)
	return m, nil
}

// Phase returns the current lifecycle phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// SnapshotPath returns the canonical snapshot path.
func (m *Manager) SnapshotPath() string {
	return filepath.Join(m.opts.Dir, SnapshotFileName)
}

// WALPath returns the WAL file path.
func (m *Manager) WALPath() string {
	return m.log.Path()
}

// PendingEntries returns the number of WAL records since the last snapshot.
func (m *Manager) PendingEntries() int {
	return m.log.Count()
}

// LoadSnapshot reads the canonical snapshot. It returns (nil, nil) when no
// snapshot exists and an error wrapping ErrCorruptSnapshot when one exists
// but is invalid.
func (m *Manager) LoadSnapshot() (*State, error) {
	data, err := fs.ReadFile(m.opts.FileSystem, m.SnapshotPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	return DecodeSnapshot(m.opts.Codec, data)
}

// Recover rebuilds target from the snapshot and the WAL and moves the
// manager to Live. It is only allowed while Cold. A corrupt snapshot is
// fatal; corrupt WAL lines are logged and skipped.
func (m *Manager) Recover(ctx context.Context, target Target) (ReplayStats, error) {
	var stats ReplayStats

	if err := m.transition(PhaseCold, PhaseReplaying); err != nil {
		return stats, err
	}

	ok := false
	defer func() {
		if !ok {
			m.mu.Lock()
			m.phase = PhaseCold
			m.mu.Unlock()
		}
	}()

	// A crash mid-snapshot can leave a temp file behind.
	_ = m.opts.FileSystem.Remove(m.SnapshotPath() + tempSuffix)

	state, err := m.LoadSnapshot()
	if err != nil {
		return stats, err
	}
	if state != nil {
		if err := target.Restore(state); err != nil {
			return stats, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
		}
		stats.SnapshotLoaded = true
		stats.Collections = state.Collections()
		stats.Vectors = state.Vectors()
	}

	walStats, err := m.log.Replay(ctx, func(e wal.Entry) error {
		if m.apply(target, e) {
			stats.Applied++
		} else {
			stats.Skipped++
		}
		return nil
	}, func(line int, err error) {
		m.opts.Logger.Warn("skipping corrupt WAL record", "line", line, "error", err)
	})
	if err != nil {
		return stats, fmt.Errorf("failed to replay WAL: %w", err)
	}
	stats.Corrupt = walStats.Corrupt

	m.mu.Lock()
	m.applied = target.LSN()
	m.phase = PhaseLive
	m.mu.Unlock()
	ok = true

	m.opts.Logger.Info("recovery complete",
		"snapshot", stats.SnapshotLoaded,
		"collections", stats.Collections,
		"vectors", stats.Vectors,
		"applied", stats.Applied,
		"skipped", stats.Skipped,
		"corrupt", stats.Corrupt,
	)

	return stats, nil
}

// apply replays one record and reports whether it changed state.
func (m *Manager) apply(t Target, e wal.Entry) bool {
	name := e.CollectionName()

	switch e.Type {
	case wal.OpCreateCollection:
		if t.HasCollection(e.Tenant, name) {
			return false
		}
		if err := t.CreateCollection(e.Tenant, name, e.Dimension); err != nil {
			m.opts.Logger.Warn("skipping WAL record", "type", e.Type, "tenant", e.Tenant, "collection", name, "error", err)
			return false
		}
		return true

	case wal.OpDeleteCollection:
		return t.DeleteCollection(e.Tenant, name)

	case wal.OpUpsertVector:
		if !t.HasCollection(e.Tenant, name) {
			if err := t.CreateCollection(e.Tenant, name, len(e.Values)); err != nil {
				m.opts.Logger.Warn("skipping WAL record", "type", e.Type, "tenant", e.Tenant, "collection", name, "id", e.ID, "error", err)
				return false
			}
		}
		if err := t.UpsertVector(e.Tenant, name, e.ID, e.Values, e.Metadata); err != nil {
			m.opts.Logger.Warn("skipping WAL record", "type", e.Type, "tenant", e.Tenant, "collection", name, "id", e.ID, "error", err)
			return false
		}
		return true

	case wal.OpDeleteVector:
		deleted, err := t.DeleteVector(e.Tenant, name, e.ID)
		return err == nil && deleted

	default:
		return false
	}
}

func (m *Manager) transition(from, to Phase) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	if m.phase != from {
		return fmt.Errorf("%w: %s (want %s)", ErrWrongPhase, m.phase, from)
	}
	m.phase = to
	return nil
}

// Append writes entries for the mutation stamped with lsn. It blocks until
// every lower LSN has been appended and no snapshot barrier covers lsn.
// The watermark advances even if the write fails so later appends are not
// blocked; the error is returned for the caller to report.
func (m *Manager) Append(lsn uint64, entries ...wal.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseLive {
		return fmt.Errorf("%w: %s", ErrWrongPhase, m.phase)
	}
	if lsn <= m.applied {
		return fmt.Errorf("lsn %d already appended (watermark %d)", lsn, m.applied)
	}

	for !m.closed && (m.applied+1 != lsn || (m.snapshotting && lsn > m.barrier)) {
		m.cond.Wait()
	}

	var err error
	if m.closed {
		err = ErrManagerClosed
	} else {
		err = m.log.Append(entries...)
	}

	if lsn > m.applied {
		m.applied = lsn
	}
	m.cond.Broadcast()

	return err
}

// Snapshot captures the target's state, writes it atomically over
// snapshot.json and truncates the WAL. capture must return the state
// together with the LSN of the last mutation it reflects.
func (m *Manager) Snapshot(ctx context.Context, capture func() (*State, uint64)) (SnapshotInfo, error) {
	var info SnapshotInfo
	start := time.Now()

	m.snapMu.Lock()
	defer m.snapMu.Unlock()

	if err := ctx.Err(); err != nil {
		return info, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return info, ErrManagerClosed
	}
	if m.phase != PhaseLive {
		phase := m.phase
		m.mu.Unlock()
		return info, fmt.Errorf("%w: %s", ErrWrongPhase, phase)
	}

	state, lsn := capture()
	m.snapshotting = true
	m.barrier = lsn
	for !m.closed && m.applied < lsn {
		m.cond.Wait()
	}
	closed := m.closed
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.snapshotting = false
		m.cond.Broadcast()
		m.mu.Unlock()
	}()

	if closed {
		return info, ErrManagerClosed
	}

	data, err := EncodeSnapshot(m.opts.Codec, state, m.opts.Compression)
	if err != nil {
		return info, err
	}

	if err := atomicWriteFile(m.opts.FileSystem, m.opts.Dir, SnapshotFileName, data); err != nil {
		return info, err
	}

	if err := m.log.Truncate(); err != nil {
		return info, err
	}

	info = SnapshotInfo{
		LSN:         lsn,
		Bytes:       len(data),
		Collections: state.Collections(),
		Vectors:     state.Vectors(),
	}

	if m.opts.Mirror != nil {
		name, err := m.mirror(ctx, state.CreatedAt, lsn, data)
		if err != nil {
			m.opts.Logger.Error("snapshot mirror upload failed", "error", err)
		} else {
			info.MirrorName = name
		}
	}

	info.Duration = time.Since(start)
	return info, nil
}

// mirror uploads snapshot bytes and prunes old mirrored copies.
func (m *Manager) mirror(ctx context.Context, createdAt time.Time, lsn uint64, data []byte) (string, error) {
	name := path.Join(m.opts.MirrorPrefix, fmt.Sprintf("%s-%020d.json%s",
		createdAt.UTC().Format("20060102T150405.000000000Z"), lsn, m.opts.Compression.Extension()))

	if err := m.opts.Mirror.Put(ctx, name, data); err != nil {
		return "", err
	}

	if m.opts.MirrorKeep > 0 {
		names, err := m.listMirrored(ctx)
		if err != nil {
			m.opts.Logger.Warn("failed to list mirrored snapshots", "error", err)
			return name, nil
		}
		for len(names) > m.opts.MirrorKeep {
			if err := m.opts.Mirror.Delete(ctx, names[0]); err != nil {
				m.opts.Logger.Warn("failed to prune mirrored snapshot", "name", names[0], "error", err)
			}
			names = names[1:]
		}
	}

	return name, nil
}

func (m *Manager) listMirrored(ctx context.Context) ([]string, error) {
	prefix := m.opts.MirrorPrefix
	names, err := m.opts.Mirror.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := names[:0]
	for _, n := range names {
		if strings.Contains(path.Base(n), ".json") {
			out = append(out, n)
		}
	}
	return out, nil
}

// MirroredSnapshots lists mirrored snapshot names, oldest first.
func (m *Manager) MirroredSnapshots(ctx context.Context) ([]string, error) {
	if m.opts.Mirror == nil {
		return nil, ErrNoMirror
	}
	return m.listMirrored(ctx)
}

// RestoreFromMirror downloads a mirrored snapshot (the newest if name is
// empty), validates it and installs it as the local snapshot. It is only
// allowed while Cold; the existing WAL is kept and will be replayed on top.
func (m *Manager) RestoreFromMirror(ctx context.Context, name string) (string, error) {
	if m.opts.Mirror == nil {
		return "", ErrNoMirror
	}

	m.snapMu.Lock()
	defer m.snapMu.Unlock()

	if err := m.transition(PhaseCold, PhaseCold); err != nil {
		return "", err
	}

	if name == "" {
		names, err := m.listMirrored(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to list mirrored snapshots: %w", err)
		}
		if len(names) == 0 {
			return "", fmt.Errorf("no mirrored snapshots: %w", blobstore.ErrNotFound)
		}
		name = names[len(names)-1]
	}

	data, err := m.opts.Mirror.Get(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", name, err)
	}

	if _, err := DecodeSnapshot(m.opts.Codec, data); err != nil {
		return "", err
	}

	if err := atomicWriteFile(m.opts.FileSystem, m.opts.Dir, SnapshotFileName, data); err != nil {
		return "", err
	}

	m.opts.Logger.Info("restored snapshot from mirror", "name", name, "bytes", len(data))
	return name, nil
}

// Close closes the WAL. Pending appenders return ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()

	return m.log.Close()
}
