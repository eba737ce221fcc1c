package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBuildConnectionString(t *testing.T) {
	standard := buildConnectionString("/tmp/a.db", ProfileStandard)
	assert.Contains(t, standard, "/tmp/a.db?_pragma=journal_mode(WAL)")
	assert.Contains(t, standard, "synchronous(NORMAL)")

	cache := buildConnectionString("/tmp/b.db", ProfileCache)
	assert.Contains(t, cache, "synchronous(OFF)")
	assert.Contains(t, cache, "auto_vacuum(FULL)")

	memory := buildConnectionString("file:x?mode=memory", ProfileStandard)
	assert.Contains(t, memory, "file:x?mode=memory&_pragma=journal_mode(WAL)")
}

func TestMigrate_AppliesEmbeddedSchema(t *testing.T) {
	db := newTestDB(t, "harvest", ProfileStandard)
	require.NoError(t, db.Migrate())
	// second run is a no-op
	require.NoError(t, db.Migrate())

	var name string
	err := db.Conn().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='timeseries'").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "timeseries", name)
}

func TestMigrate_UnknownDatabase(t *testing.T) {
	db := newTestDB(t, "nope", ProfileStandard)
	assert.Error(t, db.Migrate())
}

func TestWithTransaction(t *testing.T) {
	db := newTestDB(t, "harvest", ProfileStandard)
	require.NoError(t, db.Migrate())

	insert := func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO timeseries (ticker, date, adjusted_close, type) VALUES ('CPI', '2020-01-01', 257.9, 'cpi')`)
		return err
	}

	t.Run("rollback on error", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			require.NoError(t, insert(tx))
			return errors.New("boom")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")

		var count int
		require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM timeseries").Scan(&count))
		assert.Equal(t, 0, count)
	})

	t.Run("rollback on panic", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			require.NoError(t, insert(tx))
			panic("unexpected")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic in transaction")
	})

	t.Run("commit on success", func(t *testing.T) {
		require.NoError(t, WithTransaction(db.Conn(), insert))

		var count int
		require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM timeseries").Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("nil db", func(t *testing.T) {
		assert.Error(t, WithTransaction(nil, insert))
	})
}

func TestHealthCheckAndStats(t *testing.T) {
	db := newTestDB(t, "cache", ProfileCache)
	require.NoError(t, db.Migrate())

	require.NoError(t, db.HealthCheck(context.Background()))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
}

func TestWALCheckpoint(t *testing.T) {
	db := newTestDB(t, "harvest", ProfileStandard)

	assert.NoError(t, db.WALCheckpoint(""))
	assert.NoError(t, db.WALCheckpoint("passive"))
	assert.Error(t, db.WALCheckpoint("DROP TABLE"))
}

func TestBackupTo(t *testing.T) {
	db := newTestDB(t, "harvest", ProfileStandard)
	require.NoError(t, db.Migrate())
	_, err := db.Conn().Exec(`INSERT INTO timeseries (ticker, date, adjusted_close, close, dividend_amount, type) VALUES ('VTI', '2020-01-31', 150.0, 151.0, 0.5, 'asset')`)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "backups", "harvest-copy.db")
	require.NoError(t, db.BackupTo(context.Background(), dest))

	_, err = os.Stat(dest)
	require.NoError(t, err)

	copyDB, err := New(Config{Path: dest, Name: "harvest"})
	require.NoError(t, err)
	defer copyDB.Close()

	var count int
	require.NoError(t, copyDB.Conn().QueryRow("SELECT COUNT(*) FROM timeseries WHERE ticker = 'VTI'").Scan(&count))
	assert.Equal(t, 1, count)

	// VACUUM INTO refuses to overwrite
	assert.Error(t, db.BackupTo(context.Background(), dest))
}
