// Package updater runs the sampling loop that feeds the shared history.
package updater

import (
	"context"
	"time"

	"codeberg.org/mutker/hoststat/internal/errors"
	"codeberg.org/mutker/hoststat/internal/history"
	"codeberg.org/mutker/hoststat/internal/logger"
	"codeberg.org/mutker/hoststat/internal/stats"
)

// Config controls batching and pacing.
type Config struct {
	// ConsolidationLimit is the number of raw samples averaged into one
	// history entry.
	ConsolidationLimit int
	UpdateFrequency    time.Duration
	CPUSampleDuration  time.Duration
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.ConsolidationLimit < 1 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			Field string
			Value int
		}{
			Field: "consolidation_limit",
			Value: c.ConsolidationLimit,
		})
	}

	if c.CPUSampleDuration < 0 || c.sleepInterval() <= 0 {
		return errFactory.WithData(ErrInvalidInterval, struct {
			UpdateFrequency   string
			CPUSampleDuration string
		}{
			UpdateFrequency:   c.UpdateFrequency.String(),
			CPUSampleDuration: c.CPUSampleDuration.String(),
		})
	}

	return nil
}

func (c Config) sleepInterval() time.Duration {
	return c.UpdateFrequency - c.CPUSampleDuration
}

// Appender persists consolidated snapshots.
type Appender interface {
	Append(snapshot stats.Snapshot) error
}

// Recorder archives consolidated snapshots.
type Recorder interface {
	Record(ctx context.Context, snapshot stats.Snapshot) error
}

type Option func(*Loop)

// WithStore persists every consolidated snapshot.
func WithStore(store Appender) Option {
	return func(l *Loop) {
		l.store = store
	}
}

// WithRecorder archives every consolidated snapshot.
func WithRecorder(recorder Recorder) Option {
	return func(l *Loop) {
		l.recorder = recorder
	}
}

// Loop samples the host and publishes into a shared history. Raw samples
// are shown in the in-progress slot until a full batch is consolidated.
type Loop struct {
	cfg      Config
	sampler  stats.Sampler
	history  *history.Shared
	store    Appender
	recorder Recorder
	batch    []stats.Snapshot
	log      logger.Logger
}

func New(cfg Config, sampler stats.Sampler, h *history.Shared, opts ...Option) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Loop{
		cfg:     cfg,
		sampler: sampler,
		history: h,
		batch:   make([]stats.Snapshot, 0, cfg.ConsolidationLimit),
		log:     logger.With("updater"),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Run cycles until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info().
		Int("consolidation_limit", l.cfg.ConsolidationLimit).
		Dur("update_frequency", l.cfg.UpdateFrequency).
		Dur("cpu_sample_duration", l.cfg.CPUSampleDuration).
		Msg("Update loop started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("Update loop stopped")
			return nil
		case <-timer.C:
			if err := l.Step(ctx); err != nil {
				return err
			}
			timer.Reset(l.cfg.sleepInterval())
		}
	}
}

// Step takes one sample and either publishes it as in-progress data or, once
// the batch is full, flushes the consolidated batch.
func (l *Loop) Step(ctx context.Context) error {
	raw := l.sampler.Sample(l.cfg.CPUSampleDuration)
	l.batch = append(l.batch, raw)

	if !batchFull(len(l.batch), l.cfg.ConsolidationLimit) {
		l.history.UpdateMostRecent(raw)
		return nil
	}

	return l.flush(ctx, raw)
}

func batchFull(size, limit int) bool {
	return size >= limit
}

func (l *Loop) flush(ctx context.Context, raw stats.Snapshot) error {
	consolidated, err := stats.Consolidate(l.batch)
	if err != nil {
		return errors.New().Wrap(ErrConsolidate, err)
	}

	if l.store != nil {
		if err := l.store.Append(consolidated); err != nil {
			l.logError("Failed to persist snapshot", err)
		}
	}

	if l.recorder != nil {
		if err := l.recorder.Record(ctx, consolidated); err != nil {
			l.logError("Failed to archive snapshot", err)
		}
	}

	// The consolidated batch replaces the in-progress slot, and the newest
	// raw sample opens the next one.
	l.history.UpdateMostRecent(consolidated)
	l.history.Push(raw)
	l.batch = l.batch[:0]

	l.log.Debug().
		Time("collected_at", consolidated.CollectionTime).
		Int("history_len", l.history.Len()).
		Msg("Consolidated batch")

	return nil
}

func (l *Loop) logError(msg string, err error) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		l.log.ErrorWithCode(appErr).Msg(msg)
		return
	}
	l.log.Error().Err(err).Msg(msg)
}
