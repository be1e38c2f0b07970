package main

import (
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/openvdb"
	"github.com/hupe1980/openvdb/blobstore"
	"github.com/hupe1980/openvdb/blobstore/minio"
	"github.com/hupe1980/openvdb/blobstore/s3"
	"github.com/hupe1980/openvdb/codec"
	"github.com/hupe1980/openvdb/config"
	"github.com/hupe1980/openvdb/index"
	"github.com/hupe1980/openvdb/index/hnsw"
	"github.com/hupe1980/openvdb/persistence"
	"github.com/hupe1980/openvdb/wal"
)

// newLogger builds the logger selected by cfg.Log.
func newLogger(cfg *config.Config, w io.Writer) (*openvdb.Logger, error) {
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Log.Format == "json" {
		return openvdb.NewJSONLogger(w, level), nil
	}
	return openvdb.NewTextLogger(w, level), nil
}

// newMirror connects the snapshot mirror named by cfg. It returns nil when
// mirroring is disabled.
func newMirror(ctx context.Context, cfg config.MirrorConfig) (blobstore.Store, error) {
	switch cfg.Kind {
	case "":
		return nil, nil
	case "local":
		return blobstore.NewLocalStore(cfg.Path), nil
	case "s3":
		store, err := s3.New(ctx, cfg.Bucket, func(o *s3.Options) {
			o.Region = cfg.Region
			o.Endpoint = cfg.Endpoint
			o.UsePathStyle = cfg.UsePathStyle
		})
		if err != nil {
			return nil, fmt.Errorf("connect s3 mirror: %w", err)
		}
		return store, nil
	case "minio":
		store, err := minio.Dial(ctx, minio.Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Region:    cfg.Region,
			Secure:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("connect minio mirror: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown snapshot mirror kind %q", cfg.Kind)
	}
}

// dbOptions maps cfg onto openvdb options. Config.Validate has already
// checked every enumerated value.
func dbOptions(ctx context.Context, cfg *config.Config, logger *openvdb.Logger) ([]openvdb.Option, error) {
	kind, err := index.ParseKind(cfg.Index)
	if err != nil {
		return nil, err
	}
	durability, err := wal.ParseDurabilityMode(cfg.Durability)
	if err != nil {
		return nil, err
	}
	compression, err := persistence.ParseCompression(cfg.Snapshot.Compression)
	if err != nil {
		return nil, err
	}
	c, err := codec.Parse(cfg.Codec)
	if err != nil {
		return nil, err
	}

	opts := []openvdb.Option{
		openvdb.WithDataDir(cfg.DataDir),
		openvdb.WithIndexKind(kind),
		openvdb.WithHNSW(hnswOverrides(cfg.HNSW)),
		openvdb.WithDurability(durability),
		openvdb.WithAutoSnapshot(cfg.Snapshot.AutoEntries),
		openvdb.WithSnapshotCompression(compression),
		openvdb.WithCodec(c),
		openvdb.WithLogger(logger),
	}
	if cfg.StrictDurability {
		opts = append(opts, openvdb.WithStrictDurability())
	}

	mirror, err := newMirror(ctx, cfg.Snapshot.Mirror)
	if err != nil {
		return nil, err
	}
	if mirror != nil {
		opts = append(opts, openvdb.WithSnapshotMirror(mirror, cfg.Snapshot.Mirror.Prefix, cfg.Snapshot.Mirror.Keep))
	}

	return opts, nil
}

// hnswOverrides applies the non-zero HNSW settings over the defaults.
func hnswOverrides(c config.HNSWConfig) func(o *hnsw.Options) {
	return func(o *hnsw.Options) {
		if c.M > 0 {
			o.M = c.M
		}
		if c.EfConstruction > 0 {
			o.EfConstruction = c.EfConstruction
		}
		if c.EfSearch > 0 {
			o.EfSearch = c.EfSearch
		}
		if c.Overfetch > 0 {
			o.Overfetch = c.Overfetch
		}
		if c.Seed != 0 {
			o.Seed = c.Seed
		}
	}
}
