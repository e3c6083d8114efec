package sqlitekv

import (
	"context"
	"fmt"
)

// Set upserts a single entry. An existing value for the same key is
// unconditionally overwritten and updated_at refreshed; overwriting never
// grows the row count.
func (a *Access) Set(ctx context.Context, ns, key string, value []byte) error {
	set, err := a.stmts(ctx, ns)
	if err != nil {
		return err
	}
	_, err = set.upsert.ExecContext(ctx, key, value)
	return opErr("set", err)
}

// Set acquires the lane and upserts one entry. See Access.Set.
func (s *Store) Set(ctx context.Context, ns, key string, value []byte) error {
	return s.WithAccess(func(a *Access) error {
		return a.Set(ctx, ns, key, value)
	})
}

// SetMany upserts a batch of entries in a single transaction, so the
// batch lands all-or-nothing at the statement level.
func (a *Access) SetMany(ctx context.Context, ns string, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	set, err := a.stmts(ctx, ns)
	if err != nil {
		return err
	}

	tx, err := a.s.db.BeginTx(ctx, nil)
	if err != nil {
		return opErr("set many: begin tx", err)
	}
	defer tx.Rollback() // No-op if committed

	upsert := tx.StmtContext(ctx, set.upsert)
	for key, value := range entries {
		if _, err := upsert.ExecContext(ctx, key, value); err != nil {
			return opErr(fmt.Sprintf("set many: key %q", key), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return opErr("set many: commit", err)
	}
	return nil
}

// SetMany acquires the lane and upserts a batch. See Access.SetMany.
func (s *Store) SetMany(ctx context.Context, ns string, entries map[string][]byte) error {
	return s.WithAccess(func(a *Access) error {
		return a.SetMany(ctx, ns, entries)
	})
}

// Delete removes the given keys. Deleting an absent key is a no-op.
func (a *Access) Delete(ctx context.Context, ns string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	set, err := a.stmts(ctx, ns)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := set.deleteKey.ExecContext(ctx, key); err != nil {
			return opErr("delete", err)
		}
	}
	return nil
}

// Delete acquires the lane and removes keys. See Access.Delete.
func (s *Store) Delete(ctx context.Context, ns string, keys ...string) error {
	return s.WithAccess(func(a *Access) error {
		return a.Delete(ctx, ns, keys...)
	})
}

// DeleteByPrefix removes every key starting with prefix, byte-wise and
// case-sensitive.
func (a *Access) DeleteByPrefix(ctx context.Context, ns, prefix string) error {
	set, err := a.stmts(ctx, ns)
	if err != nil {
		return err
	}
	_, err = set.deletePrefix.ExecContext(ctx, likePrefix(prefix))
	return opErr("delete by prefix", err)
}

// DeleteByPrefix acquires the lane and removes a prefix range. See
// Access.DeleteByPrefix.
func (s *Store) DeleteByPrefix(ctx context.Context, ns, prefix string) error {
	return s.WithAccess(func(a *Access) error {
		return a.DeleteByPrefix(ctx, ns, prefix)
	})
}

// DeleteAll deletes every row in the namespace but keeps the table: the
// namespace continues to exist afterwards. Use DropNamespace to remove
// the namespace itself.
func (a *Access) DeleteAll(ctx context.Context, ns string) error {
	set, err := a.stmts(ctx, ns)
	if err != nil {
		return err
	}
	_, err = set.deleteAll.ExecContext(ctx)
	return opErr("delete all", err)
}

// DeleteAll acquires the lane and wipes the namespace's rows. See
// Access.DeleteAll.
func (s *Store) DeleteAll(ctx context.Context, ns string) error {
	return s.WithAccess(func(a *Access) error {
		return a.DeleteAll(ctx, ns)
	})
}

// Update performs a read-modify-write of a single key without leaving
// the lane between the read and the write. mutate receives the current
// value (found=false for an absent key) and returns the new value; a
// keep=false return deletes the key instead of writing.
//
// mutate must not perform store operations through the Store methods, or
// it will deadlock against the lane; use the Access it already runs
// under.
func (a *Access) Update(ctx context.Context, ns, key string, mutate func(value []byte, found bool) (next []byte, keep bool)) error {
	value, found, err := a.Get(ctx, ns, key)
	if err != nil {
		return err
	}

	next, keep := mutate(value, found)
	if !keep {
		return a.Delete(ctx, ns, key)
	}
	return a.Set(ctx, ns, key, next)
}

// Update acquires the lane once for the whole read-modify-write, so no
// interleaving write from another caller can be observed between the
// read and the write. See Access.Update.
func (s *Store) Update(ctx context.Context, ns, key string, mutate func(value []byte, found bool) (next []byte, keep bool)) error {
	return s.WithAccess(func(a *Access) error {
		return a.Update(ctx, ns, key, mutate)
	})
}
