package sqlitekv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// stmtSet holds the compiled statement handles for one namespace. The
// set is owned exclusively by the store's registry and must be finalized
// before the connection is released: on namespace drop, and at Close.
type stmtSet struct {
	upsert       *sql.Stmt
	selectKey    *sql.Stmt
	selectPrefix *sql.Stmt
	deleteKey    *sql.Stmt
	deletePrefix *sql.Stmt
	deleteAll    *sql.Stmt
	page         *sql.Stmt
	updatedAfter *sql.Stmt
	count        *sql.Stmt
}

// handles returns the set's statements for iteration.
func (set *stmtSet) handles() []*sql.Stmt {
	return []*sql.Stmt{
		set.upsert, set.selectKey, set.selectPrefix,
		set.deleteKey, set.deletePrefix, set.deleteAll,
		set.page, set.updatedAfter, set.count,
	}
}

// finalize closes every compiled handle in the set.
func (set *stmtSet) finalize() error {
	var errs []error
	for _, stmt := range set.handles() {
		if stmt == nil {
			continue
		}
		if err := stmt.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// stmts returns the namespace's statement set, creating the table and
// compiling the set on first touch. Cache hits perform no I/O; a miss
// pays a one-time DDL plus compile cost.
func (a *Access) stmts(ctx context.Context, ns string) (*stmtSet, error) {
	if set, ok := a.s.stmts[ns]; ok {
		return set, nil
	}

	table := tableName(ns)
	for _, ddl := range createTableSQL(table) {
		if _, err := a.s.db.ExecContext(ctx, ddl); err != nil {
			return nil, fmt.Errorf("create namespace %q: %w", ns, err)
		}
	}

	set, err := prepareSet(ctx, a.s.db, table)
	if err != nil {
		return nil, fmt.Errorf("compile statements for namespace %q: %w", ns, err)
	}

	a.s.stmts[ns] = set
	return set, nil
}

// prepareSet compiles every statement for one table. On any compile
// failure the already-compiled handles are released before returning.
func prepareSet(ctx context.Context, db *sql.DB, table string) (*stmtSet, error) {
	set := &stmtSet{}
	for _, p := range []struct {
		dst **sql.Stmt
		sql string
	}{
		{&set.upsert, upsertSQL(table)},
		{&set.selectKey, selectKeySQL(table)},
		{&set.selectPrefix, selectPrefixSQL(table)},
		{&set.deleteKey, deleteKeySQL(table)},
		{&set.deletePrefix, deletePrefixSQL(table)},
		{&set.deleteAll, deleteAllSQL(table)},
		{&set.page, selectPageSQL(table)},
		{&set.updatedAfter, selectUpdatedAfterSQL(table)},
		{&set.count, countSQL(table)},
	} {
		stmt, err := db.PrepareContext(ctx, p.sql)
		if err != nil {
			set.finalize()
			return nil, err
		}
		*p.dst = stmt
	}
	return set, nil
}

// DropNamespace drops the namespace's table and finalizes its cached
// statement set. Finalization happens even if the same namespace is about
// to be re-created: stale compiled handles reference a table that no
// longer exists. Dropping an absent namespace is a no-op.
func (a *Access) DropNamespace(ctx context.Context, ns string) error {
	if _, err := a.s.db.ExecContext(ctx, dropTableSQL(tableName(ns))); err != nil {
		return opErr("drop namespace", err)
	}

	if set, ok := a.s.stmts[ns]; ok {
		delete(a.s.stmts, ns)
		if err := set.finalize(); err != nil {
			return fmt.Errorf("drop namespace: finalize statements: %w", err)
		}
	}
	return nil
}

// DropNamespace acquires the lane and drops the namespace. See
// Access.DropNamespace.
func (s *Store) DropNamespace(ctx context.Context, ns string) error {
	return s.WithAccess(func(a *Access) error {
		return a.DropNamespace(ctx, ns)
	})
}

// ListNamespaces returns every namespace known to the engine's catalog,
// derived from the table naming convention, in name order.
func (a *Access) ListNamespaces(ctx context.Context) ([]string, error) {
	rows, err := a.s.db.QueryContext(ctx, listTablesSQL, likePrefix(tablePrefix))
	if err != nil {
		return nil, opErr("list namespaces", err)
	}
	defer rows.Close()

	namespaces := []string{}
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, fmt.Errorf("list namespaces: %w", err)
		}
		namespaces = append(namespaces, namespaceFromTable(table))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	return namespaces, nil
}

// ListNamespaces acquires the lane and lists namespaces. See
// Access.ListNamespaces.
func (s *Store) ListNamespaces(ctx context.Context) ([]string, error) {
	var namespaces []string
	err := s.WithAccess(func(a *Access) error {
		var err error
		namespaces, err = a.ListNamespaces(ctx)
		return err
	})
	return namespaces, err
}

// finalizeAll releases every cached statement across every namespace.
// Runs on the lane at Close, before the connection is released.
func (s *Store) finalizeAll() error {
	var errs []error
	for ns, set := range s.stmts {
		if err := set.finalize(); err != nil {
			errs = append(errs, fmt.Errorf("namespace %q: %w", ns, err))
		}
		delete(s.stmts, ns)
	}
	return errors.Join(errs...)
}
