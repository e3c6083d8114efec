package sqlitekv

import (
	"fmt"
	"strings"
)

// tablePrefix distinguishes namespace tables from anything else in the
// engine's catalog. Namespace listing strips it back off.
const tablePrefix = "kv_"

// sanitizeIdentifier maps an opaque namespace string onto a safe SQL
// identifier. Any rune outside [A-Za-z0-9_] becomes '_'. The mapping is
// total and never errors; distinct namespaces that collapse to the same
// identifier share a table, which is the caller's responsibility to avoid.
func sanitizeIdentifier(ns string) string {
	var b strings.Builder
	b.Grow(len(ns))
	for _, r := range ns {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// tableName derives the physical table name for a namespace.
func tableName(ns string) string {
	return tablePrefix + sanitizeIdentifier(ns)
}

// namespaceFromTable strips the table prefix, recovering the namespace
// identifier from a catalog entry.
func namespaceFromTable(table string) string {
	return strings.TrimPrefix(table, tablePrefix)
}

// likePrefix builds a LIKE pattern matching keys that start with prefix,
// byte-wise and case-sensitive. LIKE metacharacters in the prefix are
// escaped so they match literally; statements using the pattern must
// declare ESCAPE '\'.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

// createTableSQL returns the idempotent DDL for a namespace table: the
// table itself plus a secondary index on updated_at for range scans.
func createTableSQL(table string) []string {
	return []string{
		fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %q (key TEXT PRIMARY KEY, value BLOB, updated_at INTEGER NOT NULL DEFAULT (strftime('%%s','now')))",
			table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %q ON %q (updated_at)",
			table+"_updated_at", table),
	}
}

// createCacheTableSQL returns the DDL for the expiring variant's table,
// which additionally carries expires_at and an index to keep pruning
// efficient.
func createCacheTableSQL(table string) []string {
	return []string{
		fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %q (key TEXT PRIMARY KEY, value BLOB, updated_at INTEGER NOT NULL DEFAULT (strftime('%%s','now')), expires_at INTEGER NOT NULL)",
			table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %q ON %q (expires_at)",
			table+"_expires_at", table),
	}
}

func dropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %q", table)
}

// Statement texts for one namespace table. INSERT OR REPLACE re-inserts
// the row, so updated_at takes its default on every overwrite.

func upsertSQL(table string) string {
	return fmt.Sprintf("INSERT OR REPLACE INTO %q (key, value) VALUES (?, ?)", table)
}

func selectKeySQL(table string) string {
	return fmt.Sprintf("SELECT value FROM %q WHERE key = ?", table)
}

func selectPrefixSQL(table string) string {
	return fmt.Sprintf("SELECT key, value FROM %q WHERE key LIKE ? ESCAPE '\\'", table)
}

func deleteKeySQL(table string) string {
	return fmt.Sprintf("DELETE FROM %q WHERE key = ?", table)
}

func deletePrefixSQL(table string) string {
	return fmt.Sprintf("DELETE FROM %q WHERE key LIKE ? ESCAPE '\\'", table)
}

func deleteAllSQL(table string) string {
	return fmt.Sprintf("DELETE FROM %q", table)
}

// selectPageSQL orders by rowid: physical insertion order, the basis for
// exhaustive pagination.
func selectPageSQL(table string) string {
	return fmt.Sprintf("SELECT key, value, updated_at FROM %q ORDER BY rowid LIMIT ? OFFSET ?", table)
}

func selectUpdatedAfterSQL(table string) string {
	return fmt.Sprintf("SELECT key, value, updated_at FROM %q WHERE updated_at >= ? ORDER BY updated_at ASC LIMIT ? OFFSET ?", table)
}

func countSQL(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %q", table)
}

// Expiring-variant statement texts. Reads exclude rows at or past their
// expiry instant (strict >); prune deletes the same rows (inclusive <=).
// Both treat the boundary instant as gone from a reader's perspective.

func cacheUpsertSQL(table string) string {
	return fmt.Sprintf("INSERT OR REPLACE INTO %q (key, value, expires_at) VALUES (?, ?, ?)", table)
}

func cacheSelectKeySQL(table string) string {
	return fmt.Sprintf("SELECT value FROM %q WHERE key = ? AND expires_at > ?", table)
}

func cacheSelectPrefixSQL(table string) string {
	return fmt.Sprintf("SELECT key, value FROM %q WHERE key LIKE ? ESCAPE '\\' AND expires_at > ?", table)
}

func cachePruneSQL(table string) string {
	return fmt.Sprintf("DELETE FROM %q WHERE expires_at <= ?", table)
}

func cacheCountSQL(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %q WHERE expires_at > ?", table)
}

// listTablesSQL enumerates namespace tables from the engine's catalog,
// in name order.
const listTablesSQL = "SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE ? ESCAPE '\\' ORDER BY name"
