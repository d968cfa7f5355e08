package updater

import (
	"context"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/hoststat/internal/errors"
	"codeberg.org/mutker/hoststat/internal/history"
	"codeberg.org/mutker/hoststat/internal/optional"
	"codeberg.org/mutker/hoststat/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequenceSampler returns snapshots whose aggregate load and collection time
// both equal the sample number, starting at 1.
type sequenceSampler struct {
	mu        sync.Mutex
	n         int
	durations []time.Duration
	onSample  func(n int)
}

func (s *sequenceSampler) Sample(d time.Duration) stats.Snapshot {
	s.mu.Lock()
	s.n++
	n := s.n
	s.durations = append(s.durations, d)
	hook := s.onSample
	s.mu.Unlock()

	if hook != nil {
		hook(n)
	}

	return stats.Snapshot{
		CPU:            stats.CPUStats{AggregateLoadPercent: optional.Of(float64(n))},
		CollectionTime: time.Unix(int64(n), 0),
	}
}

type recordingStore struct {
	appended []stats.Snapshot
	err      error
}

func (s *recordingStore) Append(snapshot stats.Snapshot) error {
	s.appended = append(s.appended, snapshot)
	return s.err
}

type recordingArchive struct {
	recorded []stats.Snapshot
}

func (a *recordingArchive) Record(_ context.Context, snapshot stats.Snapshot) error {
	a.recorded = append(a.recorded, snapshot)
	return nil
}

func validConfig(limit int) Config {
	return Config{
		ConsolidationLimit: limit,
		UpdateFrequency:    3 * time.Second,
		CPUSampleDuration:  time.Second,
	}
}

func newShared(t *testing.T, capacity int) *history.Shared {
	t.Helper()
	h, err := history.New(capacity)
	require.NoError(t, err)
	return history.NewShared(h)
}

func aggregates(items []stats.Snapshot) []float64 {
	out := make([]float64, 0, len(items))
	for _, s := range items {
		out = append(out, s.CPU.AggregateLoadPercent.OrElse(-1))
	}
	return out
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, validConfig(20).Validate())

	err := validConfig(0).Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidConfig))

	cfg := validConfig(1)
	cfg.UpdateFrequency = cfg.CPUSampleDuration
	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidInterval))

	cfg.UpdateFrequency = 500 * time.Millisecond
	assert.True(t, errors.HasCode(cfg.Validate(), ErrInvalidInterval))
}

func TestBatchFull(t *testing.T) {
	assert.False(t, batchFull(1, 2))
	assert.True(t, batchFull(2, 2))
	assert.True(t, batchFull(1, 1))
}

func TestFiveSamplesIntoCapacityThree(t *testing.T) {
	shared := newShared(t, 3)
	store := &recordingStore{}
	loop, err := New(validConfig(2), &sequenceSampler{}, shared, WithStore(store))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, loop.Step(context.Background()))
	}

	items := shared.Snapshots()
	assert.Len(t, items, 3)
	// two consolidated flushes then the raw in-progress sample
	assert.Equal(t, []float64{1.5, 3.5, 5}, aggregates(items))
	assert.Equal(t, []float64{1.5, 3.5}, aggregates(store.appended))
}

func TestRawSamplesPublishedInProgress(t *testing.T) {
	shared := newShared(t, 4)
	loop, err := New(validConfig(3), &sequenceSampler{}, shared)
	require.NoError(t, err)

	require.NoError(t, loop.Step(context.Background()))
	require.NoError(t, loop.Step(context.Background()))

	assert.Equal(t, 1, shared.Len())
	latest, ok := shared.MostRecent()
	require.True(t, ok)
	assert.Equal(t, 2.0, latest.CPU.AggregateLoadPercent.OrElse(-1))

	require.NoError(t, loop.Step(context.Background()))
	assert.Equal(t, []float64{2, 3}, aggregates(shared.Snapshots()))
}

func TestConsolidatedCollectionTimeIsLastSample(t *testing.T) {
	shared := newShared(t, 2)
	archive := &recordingArchive{}
	loop, err := New(validConfig(3), &sequenceSampler{}, shared, WithRecorder(archive))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, loop.Step(context.Background()))
	}

	require.Len(t, archive.recorded, 1)
	assert.Equal(t, time.Unix(3, 0), archive.recorded[0].CollectionTime)
	assert.Equal(t, 2.0, archive.recorded[0].CPU.AggregateLoadPercent.OrElse(-1))
}

func TestPersistFailureDoesNotStopUpdates(t *testing.T) {
	shared := newShared(t, 3)
	store := &recordingStore{err: errors.New().New(errors.ErrOperationFailed)}
	loop, err := New(validConfig(1), &sequenceSampler{}, shared, WithStore(store))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, loop.Step(context.Background()))
	}

	assert.Len(t, store.appended, 4)
	latest, ok := shared.MostRecent()
	require.True(t, ok)
	assert.Equal(t, 4.0, latest.CPU.AggregateLoadPercent.OrElse(-1))
}

func TestSamplerGetsConfiguredDuration(t *testing.T) {
	sampler := &sequenceSampler{}
	loop, err := New(validConfig(2), sampler, newShared(t, 2))
	require.NoError(t, err)

	require.NoError(t, loop.Step(context.Background()))

	assert.Equal(t, []time.Duration{time.Second}, sampler.durations)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sampler := &sequenceSampler{
		onSample: func(n int) {
			if n == 4 {
				cancel()
			}
		},
	}
	shared := newShared(t, 10)
	loop, err := New(Config{
		ConsolidationLimit: 2,
		UpdateFrequency:    2 * time.Millisecond,
		CPUSampleDuration:  time.Millisecond,
	}, sampler, shared)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("update loop did not stop")
	}

	items := shared.Snapshots()
	require.GreaterOrEqual(t, len(items), 3)
	assert.Equal(t, []float64{1.5, 3.5}, aggregates(items[:2]))
}
