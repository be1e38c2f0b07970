package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/openvdb"
	"github.com/hupe1980/openvdb/persistence"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write a snapshot of the data directory and truncate the WAL",
	Long: `Recover the data directory offline, write a fresh snapshot (uploading it to
the configured mirror) and truncate the WAL. The server must not be running
against the same directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg, os.Stderr)
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		opts, err := dbOptions(ctx, cfg, logger)
		if err != nil {
			return err
		}

		db, err := openvdb.Open(ctx, opts...)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}

		pending := db.PendingEntries()
		if err := db.SnapshotNow(ctx); err != nil {
			_ = db.Close()
			return fmt.Errorf("snapshot: %w", err)
		}
		if err := db.Close(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Snapshot written to %s (%d WAL records compacted)\n", cfg.DataDir, pending)
		return nil
	},
}

var restoreList bool

var restoreCmd = &cobra.Command{
	Use:   "restore [name]",
	Short: "Install a mirrored snapshot into the data directory",
	Long: `Download a snapshot from the configured mirror, validate it and install it as
the local snapshot. Without a name the newest mirrored snapshot is used.
The local WAL is kept and replayed on top at the next start.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg, os.Stderr)
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		mirror, err := newMirror(ctx, cfg.Snapshot.Mirror)
		if err != nil {
			return err
		}
		if mirror == nil {
			return persistence.ErrNoMirror
		}

		mgr, err := persistence.NewManager(func(o *persistence.Options) {
			o.Dir = cfg.DataDir
			o.Mirror = mirror
			if cfg.Snapshot.Mirror.Prefix != "" {
				o.MirrorPrefix = cfg.Snapshot.Mirror.Prefix
			}
			o.Logger = logger.Logger
		})
		if err != nil {
			return err
		}
		defer func() { _ = mgr.Close() }()

		if restoreList {
			names, err := mgr.MirroredSnapshots(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tNAME")
			for i, name := range names {
				fmt.Fprintf(w, "%d\t%s\n", i+1, name)
			}
			return w.Flush()
		}

		var name string
		if len(args) == 1 {
			name = args[0]
		}

		restored, err := mgr.RestoreFromMirror(ctx, name)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Restored %s into %s\n", restored, mgr.SnapshotPath())
		return nil
	},
}

func init() {
	restoreCmd.Flags().BoolVar(&restoreList, "list", false, "list mirrored snapshots instead of restoring")
}
