package sqlitekv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// cacheTable is the single table backing the expiring variant.
const cacheTable = tablePrefix + "cache"

// cacheStmts holds the compiled statements for the cache table. Unlike
// the namespaced store, the table is known up front, so the set compiles
// eagerly at construction.
type cacheStmts struct {
	upsert       *sql.Stmt
	selectKey    *sql.Stmt
	selectPrefix *sql.Stmt
	deleteKey    *sql.Stmt
	deletePrefix *sql.Stmt
	prune        *sql.Stmt
	count        *sql.Stmt
}

func (cs *cacheStmts) finalize() error {
	var errs []error
	for _, stmt := range []*sql.Stmt{
		cs.upsert, cs.selectKey, cs.selectPrefix,
		cs.deleteKey, cs.deletePrefix, cs.prune, cs.count,
	} {
		if stmt == nil {
			continue
		}
		if err := stmt.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Cache is the expiring variant: a single unnamespaced store where every
// entry carries an absolute expiry timestamp computed at write time.
// Entries at or past their expiry instant are invisible to reads; Prune
// physically removes them. Pruning runs once at construction and on
// demand, never automatically on reads.
type Cache struct {
	db         *sql.DB
	lane       *lane
	logger     *slog.Logger
	clock      Clock
	defaultTTL time.Duration
	path       string
	st         *cacheStmts
}

// OpenCache creates or opens a cache file named <name>.sqlite under dir.
// Writes without an explicit TTL expire after defaultTTL, which must be
// positive. Expired rows are pruned before OpenCache returns.
func OpenCache(dir, name string, defaultTTL time.Duration, opts ...Option) (*Cache, error) {
	if defaultTTL <= 0 {
		return nil, fmt.Errorf("open cache: default TTL must be positive, got %v", defaultTTL)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	path := filepath.Join(dir, name+".sqlite")

	db, err := openDB(path, cfg)
	if err != nil {
		return nil, err
	}

	for _, ddl := range createCacheTableSQL(cacheTable) {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("create cache table: %w", err)
		}
	}

	st, err := prepareCacheStmts(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("compile cache statements: %w", err)
	}

	c := &Cache{
		db:         db,
		lane:       newLane(),
		logger:     cfg.logger,
		clock:      cfg.clock,
		defaultTTL: defaultTTL,
		path:       path,
		st:         st,
	}

	if _, err := c.Prune(context.Background()); err != nil {
		c.Close()
		return nil, fmt.Errorf("prune at open: %w", err)
	}
	return c, nil
}

func prepareCacheStmts(db *sql.DB) (*cacheStmts, error) {
	st := &cacheStmts{}
	for _, p := range []struct {
		dst **sql.Stmt
		sql string
	}{
		{&st.upsert, cacheUpsertSQL(cacheTable)},
		{&st.selectKey, cacheSelectKeySQL(cacheTable)},
		{&st.selectPrefix, cacheSelectPrefixSQL(cacheTable)},
		{&st.deleteKey, deleteKeySQL(cacheTable)},
		{&st.deletePrefix, deletePrefixSQL(cacheTable)},
		{&st.prune, cachePruneSQL(cacheTable)},
		{&st.count, cacheCountSQL(cacheTable)},
	} {
		stmt, err := db.Prepare(p.sql)
		if err != nil {
			st.finalize()
			return nil, err
		}
		*p.dst = stmt
	}
	return st, nil
}

// Close finalizes the cache's statements and releases the connection.
func (c *Cache) Close() error {
	err := c.lane.submit(func() error {
		ferr := c.st.finalize()
		cerr := c.db.Close()
		if ferr != nil {
			return ferr
		}
		return cerr
	})
	c.lane.close()
	if err != nil {
		return fmt.Errorf("close cache: %w", err)
	}
	return nil
}

// now reads the clock. Evaluated per invocation, never cached.
func (c *Cache) now() time.Time {
	return c.clock()
}

// Set writes an entry expiring after the cache's default TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	return c.SetTTL(ctx, key, value, c.defaultTTL)
}

// SetTTL writes an entry expiring after the given TTL. The expiry is
// computed now and stored as an absolute timestamp.
func (c *Cache) SetTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.lane.submit(func() error {
		expiresAt := c.now().Add(ttl).Unix()
		_, err := c.st.upsert.ExecContext(ctx, key, value, expiresAt)
		return opErr("cache set", err)
	})
}

// Get returns the value for key if it has not expired. An entry at
// exactly its expiry instant is already invisible.
func (c *Cache) Get(ctx context.Context, key string) (value []byte, found bool, err error) {
	err = c.lane.submit(func() error {
		serr := c.st.selectKey.QueryRowContext(ctx, key, c.now().Unix()).Scan(&value)
		if errors.Is(serr, sql.ErrNoRows) {
			return nil
		}
		if serr != nil {
			return opErr("cache get", serr)
		}
		found = true
		return nil
	})
	return value, found, err
}

// Exists reports whether key holds a live entry. An entry at exactly its
// expiry instant does not exist.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	_, found, err := c.Get(ctx, key)
	return found, err
}

// GetByPrefix returns every live entry whose key starts with prefix.
func (c *Cache) GetByPrefix(ctx context.Context, prefix string) (map[string][]byte, error) {
	result := map[string][]byte{}
	err := c.lane.submit(func() error {
		rows, err := c.st.selectPrefix.QueryContext(ctx, likePrefix(prefix), c.now().Unix())
		if err != nil {
			return opErr("cache get by prefix", err)
		}
		defer rows.Close()

		for rows.Next() {
			var key string
			var value []byte
			if err := rows.Scan(&key, &value); err != nil {
				c.logger.Warn("skipping undecodable row", "error", err)
				continue
			}
			result[key] = value
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("cache get by prefix: %w", err)
		}
		return nil
	})
	return result, err
}

// Delete removes the given keys. Deleting an absent key is a no-op.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.lane.submit(func() error {
		for _, key := range keys {
			if _, err := c.st.deleteKey.ExecContext(ctx, key); err != nil {
				return opErr("cache delete", err)
			}
		}
		return nil
	})
}

// DeleteByPrefix removes every key starting with prefix, expired or not.
func (c *Cache) DeleteByPrefix(ctx context.Context, prefix string) error {
	return c.lane.submit(func() error {
		_, err := c.st.deletePrefix.ExecContext(ctx, likePrefix(prefix))
		return opErr("cache delete by prefix", err)
	})
}

// Prune physically deletes every row whose expiry instant has been
// reached, returning how many were removed. A row becomes ineligible for
// reads at the same instant it becomes eligible for deletion.
func (c *Cache) Prune(ctx context.Context) (removed int64, err error) {
	err = c.lane.submit(func() error {
		res, perr := c.st.prune.ExecContext(ctx, c.now().Unix())
		if perr != nil {
			return opErr("cache prune", perr)
		}
		removed, perr = res.RowsAffected()
		if perr != nil {
			return fmt.Errorf("cache prune: rows affected: %w", perr)
		}
		return nil
	})
	return removed, err
}

// Len returns the number of live (unexpired) entries. Expired rows not
// yet pruned are excluded.
func (c *Cache) Len(ctx context.Context) (int64, error) {
	var n int64
	err := c.lane.submit(func() error {
		if serr := c.st.count.QueryRowContext(ctx, c.now().Unix()).Scan(&n); serr != nil {
			return opErr("cache len", serr)
		}
		return nil
	})
	return n, err
}
