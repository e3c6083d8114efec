package sqlitekv

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
)

// Backup writes a point-in-time copy of the store file to destPath. The
// serial lane is held for the duration of the copy, so no operation runs
// concurrently with it and the copy is never taken mid-write. The WAL is
// checkpointed first so the copied main file contains every committed
// write.
func (s *Store) Backup(ctx context.Context, destPath string) error {
	return s.lane.submit(func() error {
		if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			return fmt.Errorf("backup: checkpoint: %w", err)
		}
		return copyFile(s.path, destPath)
	})
}

// Backup is the cache-variant counterpart of Store.Backup.
func (c *Cache) Backup(ctx context.Context, destPath string) error {
	return c.lane.submit(func() error {
		if _, err := c.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			return fmt.Errorf("backup: checkpoint: %w", err)
		}
		return copyFile(c.path, destPath)
	})
}

// copyFile copies src to dest through a uniquely-suffixed temp file
// renamed into place, so a failed copy never leaves a truncated backup
// at dest.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("backup: open source: %w", err)
	}
	defer in.Close()

	tmp := dest + "." + uuid.NewString() + ".tmp"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("backup: create temp file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("backup: copy: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("backup: sync: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("backup: close temp file: %w", err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("backup: rename into place: %w", err)
	}
	return nil
}
