package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/regionvision/internal/config"
	"github.com/udisondev/regionvision/internal/db"
	"github.com/udisondev/regionvision/internal/region"
	"github.com/udisondev/regionvision/internal/regionvision"
	"github.com/udisondev/regionvision/internal/render"
	"github.com/udisondev/regionvision/internal/tick"
	"github.com/udisondev/regionvision/internal/world"
)

const statsInterval = time.Minute

func main() {
	configPath := flag.String("config", config.Path(), "path to the YAML config")
	importPath := flag.String("import", "", "copy permanent regions from this YAML file into the configured storage and exit")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, *configPath, *importPath); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, importPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := config.ParseLogLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))
	render.EnableDebugLogging(level <= slog.LevelDebug)
	slog.Info("regionvision starting", "config", configPath, "log_level", cfg.LogLevel, "storage", cfg.Storage.Backend)

	repo, err := openRepository(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening %s storage: %w", cfg.Storage.Backend, err)
	}

	if importPath != "" {
		defer repo.Close()
		return importRegions(ctx, repo, importPath)
	}

	index := region.NewIndex()
	if cfg.RegionsFile != "" {
		n, err := index.LoadFile(cfg.RegionsFile)
		if err != nil {
			repo.Close()
			return fmt.Errorf("loading regions: %w", err)
		}
		slog.Info("regions loaded", "file", cfg.RegionsFile, "count", n)
	}

	loop := tick.NewLoop(tick.WithRate(cfg.TickRate))
	players := world.NewMemory(false)

	svc, err := regionvision.New(ctx, cfg, regionvision.Deps{
		Clock:      loop,
		Authority:  index,
		Selections: region.NewSessions(),
		Presence:   players,
		Sink:       players,
		Messenger:  players,
		Repository: repo,
	})
	if err != nil {
		repo.Close()
		return fmt.Errorf("starting regionvision: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Error("closing storage", "err", err)
		}
		loop.Wait()
	}()

	svc.Start()
	slog.Info("permanent regions ready", "count", svc.Store().Len())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := loop.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("tick loop: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				slog.Info("stats",
					"tick", loop.Tick(),
					"permanent", svc.Store().Len(),
					"visualizations", svc.Scheduler().Count(),
					"render_passes", svc.Renderer().Passes(),
					"particles", players.ParticlesDrawn(),
					"notifications", svc.Dispatcher().Sent())
			}
		}
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// openRepository opens the configured settings storage.
func openRepository(ctx context.Context, st config.Storage) (db.RegionRepository, error) {
	switch st.Backend {
	case config.BackendSQLite:
		return db.OpenSQLite(ctx, st.ResolvedPath())
	case config.BackendPostgres:
		return db.OpenPostgres(ctx, st.Database.DSN())
	default:
		return db.NewYAMLRepository(st.ResolvedPath())
	}
}

func importRegions(ctx context.Context, dst db.RegionRepository, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("importing: %w", err)
	}
	src, err := db.NewYAMLRepository(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer src.Close()

	n, err := db.Copy(ctx, dst, src)
	if err != nil {
		return fmt.Errorf("importing %s: %w", path, err)
	}
	slog.Info("permanent regions imported", "from", path, "count", n)
	return nil
}
