package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/hoststat/internal/errors"
	"codeberg.org/mutker/hoststat/internal/logger"
	"codeberg.org/mutker/hoststat/internal/optional"
	"codeberg.org/mutker/hoststat/internal/stats"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db     *sql.DB
	logger logger.Logger
	cfg    Config
	mu     sync.Mutex
	closed bool
}

func newRepository(cfg Config, log logger.Logger) (*repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := validateAndUpdateSchema(db, backupDir(cfg.DBPath), log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Msg("Archive initialized")

	return &repository{
		db:     db,
		logger: log,
		cfg:    cfg,
	}, nil
}

func backupDir(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), backupDirName)
}

func (r *repository) insert(ctx context.Context, snapshot stats.Snapshot) error {
	errFactory := errors.New()

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return errFactory.Wrap(ErrEncodeFailed, err)
	}

	var (
		memUsed, memTotal  sql.NullInt64
		load1, load5       sql.NullFloat64
		load15             sql.NullFloat64
		tcpInUse, udpInUse sql.NullInt64
	)

	if m, ok := snapshot.Memory.Get(); ok {
		memUsed = sql.NullInt64{Int64: int64(m.UsedMB), Valid: true}
		memTotal = sql.NullInt64{Int64: int64(m.TotalMB), Valid: true}
	}
	if l, ok := snapshot.General.LoadAverages.Get(); ok {
		load1 = sql.NullFloat64{Float64: l.OneMinute, Valid: true}
		load5 = sql.NullFloat64{Float64: l.FiveMinutes, Valid: true}
		load15 = sql.NullFloat64{Float64: l.FifteenMinutes, Valid: true}
	}
	if s, ok := snapshot.Network.Sockets.Get(); ok {
		tcpInUse = sql.NullInt64{Int64: int64(s.TCPInUse), Valid: true}
		udpInUse = sql.NullInt64{Int64: int64(s.UDPInUse), Valid: true}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.ExecContext(ctx, insertSnapshotSQL,
		snapshot.CollectionTime.UnixMilli(),
		nullFloat(snapshot.CPU.AggregateLoadPercent),
		nullFloat(snapshot.CPU.TempCelsius),
		memUsed, memTotal,
		load1, load5, load15,
		tcpInUse, udpInUse,
		string(payload),
	); err != nil {
		r.logger.Error().Err(err).Msg("Failed to insert snapshot")
		return errFactory.Wrap(ErrInsertFailed, err)
	}

	r.logger.Debug().Time("collected_at", snapshot.CollectionTime).Msg("Archived snapshot")

	return nil
}

// between returns archived snapshots collected in [since, until], oldest first.
// A zero until means no upper bound.
func (r *repository) between(ctx context.Context, since, until time.Time) ([]stats.Snapshot, error) {
	errFactory := errors.New()

	upper := int64(1<<63 - 1)
	if !until.IsZero() {
		upper = until.UnixMilli()
	}

	rows, err := r.db.QueryContext(ctx, selectRangeSQL, since.UnixMilli(), upper)
	if err != nil {
		return nil, errFactory.Wrap(ErrQueryFailed, err)
	}
	defer rows.Close()

	var out []stats.Snapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errFactory.Wrap(ErrQueryFailed, err)
		}

		var snapshot stats.Snapshot
		if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
			return nil, errFactory.Wrap(ErrQueryFailed, err)
		}
		out = append(out, snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrQueryFailed, err)
	}

	return out, nil
}

func (r *repository) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	// Checkpoint WAL and cleanup on close
	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		r.db.Close()
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := r.db.Close(); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	r.logger.Info().Msg("Archive closed")

	return nil
}

func nullFloat(v optional.Value[float64]) sql.NullFloat64 {
	f, ok := v.Get()
	return sql.NullFloat64{Float64: f, Valid: ok}
}
