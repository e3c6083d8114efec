package sqlitekv

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a namespaced key-value store backed by a single SQLite file.
// All public operations pass through one serial lane; see Access for
// composing several operations atomically.
//
// A Store owns its connection and compiled statement cache exclusively.
// Neither may be shared across Store instances. Stores over different
// files are independent and do not share the lane.
type Store struct {
	db     *sql.DB
	lane   *lane
	logger *slog.Logger
	path   string

	// stmts is touched only by the lane's worker.
	stmts map[string]*stmtSet
}

// Open creates or opens a store file named <name>.sqlite under dir,
// creating dir if needed.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - synchronous mode and busy timeout from the options
//   - a single pooled connection, so prepared statements compile once
//
// Opening is idempotent - safe to call on an existing store file.
func Open(dir, name string, opts ...Option) (*Store, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	path := filepath.Join(dir, name+".sqlite")

	db, err := openDB(path, cfg)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:     db,
		lane:   newLane(),
		logger: cfg.logger,
		path:   path,
		stmts:  make(map[string]*stmtSet),
	}, nil
}

// openDB opens and configures the underlying connection. Shared by the
// namespaced store and the expiring cache variant.
func openDB(path string, cfg config) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time; a single pooled connection
	// avoids SQLITE_BUSY between our own statements and keeps prepared
	// statements bound to one handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.synchronous),
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout.Milliseconds()),
		// Prefix matching is byte-wise and case-sensitive; default LIKE
		// folds ASCII case.
		"PRAGMA case_sensitive_like = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return db, nil
}

// Close finalizes every cached statement across every namespace and
// releases the connection. Operations submitted afterwards return
// ErrClosed. Leaving statements unfinalized would keep the connection
// resource alive, so finalization runs before the connection is closed.
func (s *Store) Close() error {
	err := s.lane.submit(func() error {
		ferr := s.finalizeAll()
		cerr := s.db.Close()
		if ferr != nil {
			return ferr
		}
		return cerr
	})
	s.lane.close()
	if err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
