// corridord is the corridor geometry daemon: it owns the project model,
// rebuilds dirty entities on demand and serves the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/alignworks/corridord/pkg/api"
	"github.com/alignworks/corridord/pkg/engine"
	"github.com/alignworks/corridord/pkg/section"
	"github.com/alignworks/corridord/pkg/store"
	redisstore "github.com/alignworks/corridord/pkg/store/redis"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalw("invalid configuration", "err", err)
	}

	var st store.EntityStore
	if cfg.RedisAddr != "" {
		st = redisstore.New(goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr}))
		log.Infow("store initialized", "backend", "redis", "addr", cfg.RedisAddr)
	} else {
		sqlite, err := store.NewStore(cfg.DBPath)
		if err != nil {
			log.Fatalw("failed to init store", "err", err)
		}
		st = sqlite
		log.Infow("store initialized", "backend", "sqlite", "path", cfg.DBPath)
	}

	eng := engine.New(log, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Load(ctx); err != nil {
		log.Fatalw("failed to load project", "err", err)
	}
	if cfg.CatalogPath != "" {
		if err := importCatalog(eng, cfg.CatalogPath, log); err != nil {
			log.Fatalw("failed to import template catalog", "path", cfg.CatalogPath, "err", err)
		}
	}

	if cfg.RebuildDebounce > 0 {
		auto := engine.NewAutoRebuilder(eng, cfg.RebuildDebounce)
		go auto.Run(ctx)
		log.Infow("auto rebuild enabled", "debounce", cfg.RebuildDebounce)
	}

	server := api.NewServer(eng, cfg.Addr, log)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()
	log.Infow("corridord started", "addr", cfg.Addr)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		log.Infow("shutdown initiated", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Errorw("api server failed", "err", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Errorw("api server shutdown failed", "err", err)
	}
	if err := st.Close(); err != nil {
		log.Errorw("failed to close store", "err", err)
	}
	log.Infow("shutdown complete")
}

// importCatalog loads the YAML template catalog and registers templates
// the project does not already carry, keyed by name.
func importCatalog(eng *engine.Engine, path string, log *zap.SugaredLogger) error {
	templates, err := section.LoadCatalog(path)
	if err != nil {
		return err
	}
	existing := make(map[string]bool)
	for _, e := range eng.Entities() {
		if e.Kind == "template" {
			existing[e.Name] = true
		}
	}
	imported := 0
	for _, t := range templates {
		if existing[t.Name] {
			continue
		}
		if _, err := eng.CreateTemplate(t.Name, t.Components()); err != nil {
			return err
		}
		imported++
	}
	log.Infow("template catalog imported", "path", path, "templates", imported)
	return nil
}
