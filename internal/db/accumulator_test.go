package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck

	_, err = db.Exec(`
		CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT);
		CREATE TABLE tags (item_id INTEGER NOT NULL, tag TEXT NOT NULL, PRIMARY KEY (item_id, tag));
	`)
	require.NoError(t, err)
	return db
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

var (
	itemsSink = InsertConfig{Table: "items", Columns: []string{"id", "name"}}
	tagsSink  = InsertConfig{Table: "tags", Columns: []string{"item_id", "tag"}, OnConflict: ConflictIgnore}
)

func TestInsertConfig_SQL(t *testing.T) {
	assert.Equal(t, `INSERT INTO "items" ("id", "name") VALUES (?, ?)`, itemsSink.SQL())
	assert.Equal(t, `INSERT OR IGNORE INTO "tags" ("item_id", "tag") VALUES (?, ?)`, tagsSink.SQL())
}

func TestAccumulator_FlushesAtCapacity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	acc, err := NewAccumulator(db, 2, itemsSink, tagsSink)
	require.NoError(t, err)

	var flushes []FlushInfo
	acc.OnFlush = func(info FlushInfo) { flushes = append(flushes, info) }

	require.NoError(t, acc.Add(ctx, [][]any{{1, "a"}}, [][]any{{1, "x"}, {1, "y"}}))
	assert.Equal(t, 1, acc.Pending())
	assert.Equal(t, 0, countRows(t, db, "items"), "nothing written before capacity")

	require.NoError(t, acc.Add(ctx, [][]any{{2, "b"}}, nil))
	assert.Equal(t, 0, acc.Pending())
	assert.Equal(t, 2, countRows(t, db, "items"))
	assert.Equal(t, 2, countRows(t, db, "tags"))

	require.NoError(t, acc.Add(ctx, [][]any{{3, "c"}}))
	require.NoError(t, acc.Close(ctx))
	assert.Equal(t, 3, countRows(t, db, "items"))

	require.Len(t, flushes, 2)
	assert.Equal(t, FlushInfo{Records: 2, Total: 2}, flushes[0])
	assert.Equal(t, FlushInfo{Records: 1, Total: 3}, flushes[1])
	assert.Equal(t, int64(3), acc.Records())

	totals := acc.Totals()
	assert.Equal(t, SinkTotals{Table: "items", Queued: 3, Written: 3}, totals[0])
	assert.Equal(t, SinkTotals{Table: "tags", Queued: 2, Written: 2}, totals[1])
}

func TestAccumulator_IgnoreConflictIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	acc, err := NewAccumulator(db, 10, tagsSink)
	require.NoError(t, err)

	require.NoError(t, acc.Add(ctx, [][]any{{1, "x"}, {1, "x"}}))
	require.NoError(t, acc.Close(ctx))
	require.NoError(t, acc.Add(ctx, [][]any{{1, "x"}}))
	require.NoError(t, acc.Close(ctx))

	assert.Equal(t, 1, countRows(t, db, "tags"))
	totals := acc.Totals()
	assert.Equal(t, int64(3), totals[0].Queued)
	assert.Equal(t, int64(1), totals[0].Written)
}

func TestAccumulator_FailedFlushCommitsNothing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	acc, err := NewAccumulator(db, 10, itemsSink, tagsSink)
	require.NoError(t, err)

	require.NoError(t, acc.Add(ctx, [][]any{{1, "a"}}, [][]any{{1, "x"}}))
	require.NoError(t, acc.Add(ctx, [][]any{{1, "dup"}}, [][]any{{1, "y"}}))

	err = acc.Close(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush items")
	assert.Equal(t, 0, countRows(t, db, "items"))
	assert.Equal(t, 0, countRows(t, db, "tags"))
}

func TestAccumulator_EmptyCloseIsNoop(t *testing.T) {
	db := newTestDB(t)
	acc, err := NewAccumulator(db, 5, itemsSink)
	require.NoError(t, err)

	called := false
	acc.OnFlush = func(FlushInfo) { called = true }
	require.NoError(t, acc.Close(context.Background()))
	assert.False(t, called)
}

func TestNewAccumulator_Invalid(t *testing.T) {
	db := newTestDB(t)

	_, err := NewAccumulator(db, 0, itemsSink)
	assert.Error(t, err)

	_, err = NewAccumulator(db, 10)
	assert.Error(t, err)
}

func TestAccumulator_TooManyGroups(t *testing.T) {
	db := newTestDB(t)
	acc, err := NewAccumulator(db, 5, itemsSink)
	require.NoError(t, err)

	err = acc.Add(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestBulkInsert_ColumnMismatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback() //nolint:errcheck

	_, err = BulkInsert(ctx, tx, itemsSink, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has 1 values, want 2")
}

func TestBulkInsert_Empty(t *testing.T) {
	n, err := BulkInsert(context.Background(), nil, itemsSink, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
