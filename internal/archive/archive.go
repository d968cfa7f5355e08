// Package archive keeps every consolidated snapshot in a sqlite database so
// history survives beyond the rolling in-memory window.
package archive

import (
	"context"
	"time"

	"codeberg.org/mutker/hoststat/internal/errors"
	"codeberg.org/mutker/hoststat/internal/logger"
	"codeberg.org/mutker/hoststat/internal/stats"
)

// Recorder stores consolidated snapshots and answers range queries.
type Recorder interface {
	Record(ctx context.Context, snapshot stats.Snapshot) error
	Range(ctx context.Context, since, until time.Time) ([]stats.Snapshot, error)
	Enabled() bool
	Close() error
}

type service struct {
	repo *repository
}

type noopRecorder struct{}

// NewRecorder opens the archive, or returns a no-op recorder when archiving
// is disabled.
func NewRecorder(cfg Config) (Recorder, error) {
	errFactory := errors.New()
	log := logger.With("archive")

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Archive disabled, using no-op recorder")
		return noopRecorder{}, nil
	}

	repo, err := newRepository(cfg, log)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to create archive repository")
		return nil, err
	}

	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, snapshot stats.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return errors.New().Wrap(ErrOperationTimeout, err)
	}
	return s.repo.insert(ctx, snapshot)
}

func (s *service) Range(ctx context.Context, since, until time.Time) ([]stats.Snapshot, error) {
	return s.repo.between(ctx, since, until)
}

func (*service) Enabled() bool {
	return true
}

func (s *service) Close() error {
	return s.repo.close()
}

func (noopRecorder) Record(context.Context, stats.Snapshot) error {
	return nil
}

func (noopRecorder) Range(context.Context, time.Time, time.Time) ([]stats.Snapshot, error) {
	return nil, nil
}

func (noopRecorder) Enabled() bool {
	return false
}

func (noopRecorder) Close() error {
	return nil
}
