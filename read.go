package sqlitekv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Entry is one stored row: an opaque byte payload under a key, stamped
// with the unix-seconds time of its last write.
type Entry struct {
	Key       string
	Value     []byte
	UpdatedAt int64
}

// Get returns the value for key, with found=false for an absent key.
// Absence is not an error.
func (a *Access) Get(ctx context.Context, ns, key string) (value []byte, found bool, err error) {
	set, err := a.stmts(ctx, ns)
	if err != nil {
		return nil, false, err
	}

	err = set.selectKey.QueryRowContext(ctx, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, opErr("get", err)
	}
	return value, true, nil
}

// Get acquires the lane and reads one key. See Access.Get.
func (s *Store) Get(ctx context.Context, ns, key string) (value []byte, found bool, err error) {
	err = s.WithAccess(func(a *Access) error {
		var aerr error
		value, found, aerr = a.Get(ctx, ns, key)
		return aerr
	})
	return value, found, err
}

// GetMany returns the values for the given keys. Keys with no value are
// omitted from the result, never represented as nil entries.
func (a *Access) GetMany(ctx context.Context, ns string, keys ...string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		value, found, err := a.Get(ctx, ns, key)
		if err != nil {
			return nil, err
		}
		if found {
			result[key] = value
		}
	}
	return result, nil
}

// GetMany acquires the lane and reads a set of keys as one unit. See
// Access.GetMany.
func (s *Store) GetMany(ctx context.Context, ns string, keys ...string) (map[string][]byte, error) {
	var result map[string][]byte
	err := s.WithAccess(func(a *Access) error {
		var aerr error
		result, aerr = a.GetMany(ctx, ns, keys...)
		return aerr
	})
	return result, err
}

// GetByPrefix returns every entry whose key starts with prefix,
// byte-wise and case-sensitive. Rows whose columns cannot be decoded are
// logged and skipped, not surfaced as errors.
func (a *Access) GetByPrefix(ctx context.Context, ns, prefix string) (map[string][]byte, error) {
	set, err := a.stmts(ctx, ns)
	if err != nil {
		return nil, err
	}

	rows, err := set.selectPrefix.QueryContext(ctx, likePrefix(prefix))
	if err != nil {
		return nil, opErr("get by prefix", err)
	}
	defer rows.Close()

	result := map[string][]byte{}
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			a.s.logger.Warn("skipping undecodable row",
				"namespace", ns,
				"error", err)
			continue
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get by prefix: %w", err)
	}
	return result, nil
}

// GetByPrefix acquires the lane and reads a prefix range. See
// Access.GetByPrefix.
func (s *Store) GetByPrefix(ctx context.Context, ns, prefix string) (map[string][]byte, error) {
	var result map[string][]byte
	err := s.WithAccess(func(a *Access) error {
		var aerr error
		result, aerr = a.GetByPrefix(ctx, ns, prefix)
		return aerr
	})
	return result, err
}

// ListPage returns one page of entries in physical insertion order
// (rowid, not key order), the stable basis for exhaustive pagination.
func (a *Access) ListPage(ctx context.Context, ns string, offset, limit int) ([]Entry, error) {
	set, err := a.stmts(ctx, ns)
	if err != nil {
		return nil, err
	}
	return a.scanEntries(ctx, ns, "list page", set.page, limit, offset)
}

// ListPage acquires the lane and reads one page. See Access.ListPage.
func (s *Store) ListPage(ctx context.Context, ns string, offset, limit int) ([]Entry, error) {
	var entries []Entry
	err := s.WithAccess(func(a *Access) error {
		var aerr error
		entries, aerr = a.ListPage(ctx, ns, offset, limit)
		return aerr
	})
	return entries, err
}

// ListAll materializes every entry in the namespace by paging through
// ListPage with an advancing offset window until a page comes back short.
// The result is a finite snapshot, not an incremental iterator; the
// offset is internal and not exposed for resumption.
func (a *Access) ListAll(ctx context.Context, ns string, batchSize int) ([]Entry, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("list all: batch size must be positive, got %d", batchSize)
	}

	all := []Entry{}
	for offset := 0; ; offset += batchSize {
		page, err := a.ListPage(ctx, ns, offset, batchSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < batchSize {
			return all, nil
		}
	}
}

// ListAll acquires the lane once for the whole scan, so the snapshot is
// not interleaved with writes from other callers. See Access.ListAll.
func (s *Store) ListAll(ctx context.Context, ns string, batchSize int) ([]Entry, error) {
	var entries []Entry
	err := s.WithAccess(func(a *Access) error {
		var aerr error
		entries, aerr = a.ListAll(ctx, ns, batchSize)
		return aerr
	})
	return entries, err
}

// ListUpdatedAfter returns entries with updated_at >= since (unix
// seconds), ordered by updated_at ascending, for incremental-sync use.
func (a *Access) ListUpdatedAfter(ctx context.Context, ns string, since int64, offset, limit int) ([]Entry, error) {
	set, err := a.stmts(ctx, ns)
	if err != nil {
		return nil, err
	}
	return a.scanEntries(ctx, ns, "list updated after", set.updatedAfter, since, limit, offset)
}

// ListUpdatedAfter acquires the lane and reads an incremental-sync page.
// See Access.ListUpdatedAfter.
func (s *Store) ListUpdatedAfter(ctx context.Context, ns string, since int64, offset, limit int) ([]Entry, error) {
	var entries []Entry
	err := s.WithAccess(func(a *Access) error {
		var aerr error
		entries, aerr = a.ListUpdatedAfter(ctx, ns, since, offset, limit)
		return aerr
	})
	return entries, err
}

// Count returns the number of entries in the namespace.
func (a *Access) Count(ctx context.Context, ns string) (int64, error) {
	set, err := a.stmts(ctx, ns)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := set.count.QueryRowContext(ctx).Scan(&n); err != nil {
		return 0, opErr("count", err)
	}
	return n, nil
}

// Count acquires the lane and counts one namespace. See Access.Count.
func (s *Store) Count(ctx context.Context, ns string) (int64, error) {
	var n int64
	err := s.WithAccess(func(a *Access) error {
		var aerr error
		n, aerr = a.Count(ctx, ns)
		return aerr
	})
	return n, err
}

// CountPerNamespace returns the row count of every namespace known to
// the catalog.
func (a *Access) CountPerNamespace(ctx context.Context) (map[string]int64, error) {
	namespaces, err := a.ListNamespaces(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(namespaces))
	for _, ns := range namespaces {
		n, err := a.Count(ctx, ns)
		if err != nil {
			return nil, err
		}
		counts[ns] = n
	}
	return counts, nil
}

// CountPerNamespace acquires the lane once and counts every namespace as
// one consistent snapshot. See Access.CountPerNamespace.
func (s *Store) CountPerNamespace(ctx context.Context) (map[string]int64, error) {
	var counts map[string]int64
	err := s.WithAccess(func(a *Access) error {
		var aerr error
		counts, aerr = a.CountPerNamespace(ctx)
		return aerr
	})
	return counts, err
}

// scanEntries runs a (key, value, updated_at) statement and collects the
// rows. Undecodable rows are logged and skipped per the read-path policy.
func (a *Access) scanEntries(ctx context.Context, ns, op string, stmt *sql.Stmt, args ...any) ([]Entry, error) {
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, opErr(op, err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value, &e.UpdatedAt); err != nil {
			a.s.logger.Warn("skipping undecodable row",
				"namespace", ns,
				"error", err)
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entries, nil
}
