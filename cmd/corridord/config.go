package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultAddr            = "127.0.0.1:8090"
	defaultRebuildDebounce = 500 * time.Millisecond
)

type Config struct {
	DBPath          string
	CatalogPath     string
	Addr            string
	RedisAddr       string
	RebuildDebounce time.Duration
}

func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	defaultDBPath := filepath.Join(cwd, "corridord.db")

	dbPath := envOrDefault("CORRIDORD_DB_PATH", defaultDBPath)
	catalogPath := os.Getenv("CORRIDORD_CATALOG_PATH")
	addr := addrFromEnv(defaultAddr)
	redisAddr := os.Getenv("CORRIDORD_REDIS_ADDR")
	debounce := defaultRebuildDebounce
	if debounceEnv := os.Getenv("CORRIDORD_REBUILD_DEBOUNCE"); debounceEnv != "" {
		parsed, err := time.ParseDuration(debounceEnv)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CORRIDORD_REBUILD_DEBOUNCE: %w", err)
		}
		debounce = parsed
	}

	flagSet := flag.NewFlagSet("corridord", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagDB := flagSet.String("db", dbPath, "path to SQLite database")
	flagCatalog := flagSet.String("catalog", catalogPath, "path to YAML template catalog")
	flagAddr := flagSet.String("addr", addr, "HTTP listen address")
	flagRedis := flagSet.String("redis", redisAddr, "Redis address; uses Redis instead of SQLite when set")
	flagDebounce := flagSet.String("rebuild-debounce", debounce.String(), "quiet period before a background rebuild starts")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	debounceParsed, err := time.ParseDuration(*flagDebounce)
	if err != nil {
		return Config{}, fmt.Errorf("invalid rebuild debounce: %w", err)
	}

	config := Config{
		DBPath:          resolvePath(*flagDB, cwd),
		CatalogPath:     resolvePath(*flagCatalog, cwd),
		Addr:            strings.TrimSpace(*flagAddr),
		RedisAddr:       strings.TrimSpace(*flagRedis),
		RebuildDebounce: debounceParsed,
	}

	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}
	if config.RebuildDebounce < 0 {
		return Config{}, errors.New("rebuild debounce cannot be negative")
	}

	return config, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("CORRIDORD_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("CORRIDORD_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
