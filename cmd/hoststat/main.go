package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"codeberg.org/mutker/hoststat/internal/archive"
	"codeberg.org/mutker/hoststat/internal/collector"
	"codeberg.org/mutker/hoststat/internal/config"
	"codeberg.org/mutker/hoststat/internal/errors"
	"codeberg.org/mutker/hoststat/internal/gpu"
	"codeberg.org/mutker/hoststat/internal/history"
	"codeberg.org/mutker/hoststat/internal/logger"
	"codeberg.org/mutker/hoststat/internal/persist"
	"codeberg.org/mutker/hoststat/internal/pid"
	"codeberg.org/mutker/hoststat/internal/server"
	"codeberg.org/mutker/hoststat/internal/updater"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 5 * time.Second

type app struct {
	cfg      *config.Config
	pidFile  *pid.File
	shared   *history.Shared
	sampler  *collector.System
	store    *persist.Store
	recorder archive.Recorder
	loop     *updater.Loop
	server   *server.Server
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, _ := logger.ParseLevel(cfg.LogLevel.String())
	logger.Init(level, logger.IsService())
	logger.Debug().Interface("config", cfg).Msg("Config loaded")

	a, err := initApp(cfg)
	if err != nil {
		logError(err, "Failed to start")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := a.run(ctx); err != nil {
		logError(err, "Stopped with error")
	}
	a.cleanup()
}

func initApp(cfg *config.Config) (*app, error) {
	errFactory := errors.New()
	a := &app{cfg: cfg}

	a.pidFile = pid.New(cfg.PIDDir)
	if err := a.pidFile.Write(); err != nil {
		return nil, err
	}

	h, err := loadHistory(cfg)
	if err != nil {
		a.pidFile.Remove()
		return nil, err
	}
	a.shared = history.NewShared(h)

	opts := collector.Options{}
	if cfg.GPU {
		if reader, err := gpu.New(); err != nil {
			logger.Info().Err(err).Msg("GPU telemetry unavailable")
		} else {
			opts.GPU = reader
		}
	}
	a.sampler = collector.New(opts)

	var loopOpts []updater.Option
	if cfg.Persist {
		a.store, err = persist.NewStore(cfg.PersistenceDir, cfg.PersistenceSizeLimit)
		if err != nil {
			a.cleanup()
			return nil, err
		}
		loopOpts = append(loopOpts, updater.WithStore(a.store))
	}

	a.recorder, err = archive.NewRecorder(archive.Config{
		DBPath:  cfg.ArchivePath,
		Enabled: cfg.Archive,
	})
	if err != nil {
		a.cleanup()
		return nil, err
	}
	loopOpts = append(loopOpts, updater.WithRecorder(a.recorder))

	a.loop, err = updater.New(updater.Config{
		ConsolidationLimit: cfg.ConsolidationLimit,
		UpdateFrequency:    cfg.UpdateFrequency,
		CPUSampleDuration:  cfg.CPUSampleDuration,
	}, a.sampler, a.shared, loopOpts...)
	if err != nil {
		a.cleanup()
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	a.server = server.New(cfg.Listen, a.shared,
		server.WithPollInterval(cfg.UpdateFrequency),
		server.WithArchive(a.recorder),
	)

	return a, nil
}

// loadHistory restores persisted snapshots into a history of the configured
// size. Unreadable data is logged and replaced by an empty history; corrupt
// files are moved aside so they are not appended to.
func loadHistory(cfg *config.Config) (*history.History, error) {
	if !cfg.Persist {
		return history.New(cfg.HistorySize)
	}

	loaded, err := persist.Load(cfg.PersistenceDir)
	if err != nil {
		logError(errors.New().Wrap(errors.ErrLoadHistory, err), "Starting with empty history")
		if errors.HasCode(err, persist.ErrCorruptRecord) {
			if qErr := persist.Quarantine(cfg.PersistenceDir); qErr != nil {
				logError(qErr, "Failed to move corrupt history aside")
			}
		}
		return history.New(cfg.HistorySize)
	}

	logger.Info().
		Int("snapshots", loaded.Len()).
		Str("dir", cfg.PersistenceDir).
		Msg("Loaded persisted history")

	return history.Resize(loaded, cfg.HistorySize)
}

func (a *app) run(ctx context.Context) error {
	if err := a.server.Start(); err != nil {
		return err
	}

	var wg sync.WaitGroup
	loopErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		loopErr <- a.loop.Run(ctx)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-loopErr:
		if err != nil {
			err = errors.New().Wrap(errors.ErrUpdateLoop, err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := a.server.Shutdown(shutdownCtx); shutdownErr != nil {
		logError(shutdownErr, "Failed to stop HTTP server")
	}

	wg.Wait()

	return err
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func (a *app) cleanup() {
	if a.sampler != nil {
		if err := a.sampler.Close(); err != nil {
			logError(err, "Failed to release GPU")
		}
	}
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			logError(err, "Failed to close archive")
		}
	}
	if err := a.pidFile.Remove(); err != nil {
		logError(err, "Failed to remove PID file")
	}
	logger.Info().Msg("Exiting...")
}

func logError(err error, msg string) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.ErrorWithCode(appErr).Msg(msg)
		return
	}
	logger.Error().Err(err).Msg(msg)
}
