package sqlitekv

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"events", "events"},
		{"Events", "Events"},
		{"user_sessions", "user_sessions"},
		{"my-ns", "my_ns"},
		{"a.b.c", "a_b_c"},
		{"sp ace", "sp_ace"},
		{`x"; DROP TABLE y; --`, "x___DROP_TABLE_y____"},
		{"héllo", "h_llo"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeIdentifier(tt.in), "input %q", tt.in)
	}
}

func TestTableName_RoundTrip(t *testing.T) {
	assert.Equal(t, "kv_events", tableName("events"))
	assert.Equal(t, "events", namespaceFromTable(tableName("events")))
}

func TestLikePrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"p", "p%"},
		{"p_", `p\_%`},
		{"50%", `50\%%`},
		{`a\b`, `a\\b%`},
		{"", "%"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, likePrefix(tt.in), "input %q", tt.in)
	}
}

func TestNamespaceSQL_Golden(t *testing.T) {
	table := tableName("events")

	parts := createTableSQL(table)
	parts = append(parts,
		upsertSQL(table),
		selectKeySQL(table),
		selectPrefixSQL(table),
		deleteKeySQL(table),
		deletePrefixSQL(table),
		deleteAllSQL(table),
		selectPageSQL(table),
		selectUpdatedAfterSQL(table),
		countSQL(table),
		dropTableSQL(table),
	)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "namespace_sql", []byte(strings.Join(parts, "\n")+"\n"))
}

func TestCacheSQL_Golden(t *testing.T) {
	parts := createCacheTableSQL(cacheTable)
	parts = append(parts,
		cacheUpsertSQL(cacheTable),
		cacheSelectKeySQL(cacheTable),
		cacheSelectPrefixSQL(cacheTable),
		cachePruneSQL(cacheTable),
		cacheCountSQL(cacheTable),
	)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "cache_sql", []byte(strings.Join(parts, "\n")+"\n"))
}
