package archive

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/hoststat/internal/errors"
	"codeberg.org/mutker/hoststat/internal/logger"
	"codeberg.org/mutker/hoststat/internal/optional"
	"codeberg.org/mutker/hoststat/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotAt(sec int64, cpu float64) stats.Snapshot {
	return stats.Snapshot{
		CPU: stats.CPUStats{
			AggregateLoadPercent: optional.Of(cpu),
		},
		Memory: optional.Of(stats.MemoryStats{UsedMB: 512, TotalMB: 2048}),
		Network: stats.NetworkStats{
			Sockets: optional.Of(stats.SocketStats{TCPInUse: 7, UDPInUse: 2}),
		},
		CollectionTime: time.Unix(sec, 0).UTC(),
	}
}

func openTestRecorder(t *testing.T, path string) Recorder {
	t.Helper()
	r, err := NewRecorder(Config{DBPath: path, Enabled: true})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, Config{Enabled: false}.Validate())

	err := Config{Enabled: true}.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidDBPath))
}

func TestDisabledRecorderIsNoop(t *testing.T) {
	r, err := NewRecorder(Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, r.Enabled())
	assert.NoError(t, r.Record(context.Background(), snapshotAt(1, 10)))

	got, err := r.Range(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, r.Close())
}

func TestRecordAndRange(t *testing.T) {
	r := openTestRecorder(t, filepath.Join(t.TempDir(), "nested", "archive.db"))
	ctx := context.Background()

	assert.True(t, r.Enabled())
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, r.Record(ctx, snapshotAt(i*60, float64(i*10))))
	}

	all, err := r.Range(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, snapshotAt(60, 10), all[0])
	assert.Equal(t, snapshotAt(300, 50), all[4])

	window, err := r.Range(ctx, time.Unix(120, 0), time.Unix(240, 0))
	require.NoError(t, err)
	require.Len(t, window, 3)
	assert.Equal(t, 30.0, window[1].CPU.AggregateLoadPercent.OrElse(0))
}

func TestRecordSameTimeReplaces(t *testing.T) {
	r := openTestRecorder(t, filepath.Join(t.TempDir(), "archive.db"))
	ctx := context.Background()

	require.NoError(t, r.Record(ctx, snapshotAt(60, 10)))
	require.NoError(t, r.Record(ctx, snapshotAt(60, 90)))

	all, err := r.Range(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 90.0, all[0].CPU.AggregateLoadPercent.OrElse(0))
}

func TestRecordCancelledContext(t *testing.T) {
	r := openTestRecorder(t, filepath.Join(t.TempDir(), "archive.db"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Record(ctx, snapshotAt(60, 10))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrOperationTimeout))
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")

	r, err := NewRecorder(Config{DBPath: path, Enabled: true})
	require.NoError(t, err)
	require.NoError(t, r.Record(context.Background(), snapshotAt(60, 10)))
	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "close is idempotent")

	reopened := openTestRecorder(t, path)
	all, err := reopened.Range(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSchemaMismatchBacksUpAndRecreates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_versions VALUES (99, datetime('now'));
		CREATE TABLE snapshots (collected_at INTEGER PRIMARY KEY);`)
	require.NoError(t, err)

	log := logger.With("archive")
	require.NoError(t, validateAndUpdateSchema(db, backupDir(path), log))

	version, err := schemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
	require.NoError(t, db.Close())

	backups, err := os.ReadDir(backupDir(path))
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Contains(t, backups[0].Name(), "archive_v99_")

	r := openTestRecorder(t, path)
	assert.NoError(t, r.Record(context.Background(), snapshotAt(60, 10)))
}
