// Package config loads environment-driven tunables for the decision core
// via godotenv, mirroring the teacher's .env-file convention for local
// development and CI.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// StoreKind selects the checkpoint store backend.
type StoreKind string

const (
	StoreMemory StoreKind = "memory"
	StoreFile   StoreKind = "file"
	StoreSQLite StoreKind = "sqlite"
)

// OracleProvider selects which oracle adapter to construct.
type OracleProvider string

const (
	OracleAnthropic OracleProvider = "anthropic"
	OracleOpenAI    OracleProvider = "openai"
	OracleGoogle    OracleProvider = "google"
	OracleMock      OracleProvider = "mock"
)

// Config holds every environment-driven tunable the host uses to wire the
// engine, adapters, and checkpoint store.
type Config struct {
	MaxIter            int
	DefaultNodeTimeout time.Duration
	RunWallClockBudget time.Duration

	StoreKind    StoreKind
	SQLitePath   string
	FileStoreDir string

	OracleProvider OracleProvider
	OracleAPIKey   string
	OracleModel    string

	ExecutorBaseURL string
}

// Load reads a .env file at path (if present; a missing file is not an
// error, matching godotenv's optional-overlay convention) and then layers
// environment variables over compiled-in defaults.
func Load(path string) (Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return Config{}, err
		}
	}

	cfg := Config{
		MaxIter:            envInt("MAX_ITER", 20),
		DefaultNodeTimeout: envDuration("DEFAULT_NODE_TIMEOUT", 30*time.Second),
		RunWallClockBudget: envDuration("RUN_WALL_CLOCK_BUDGET", 5*time.Minute),
		StoreKind:          StoreKind(envString("CHECKPOINT_STORE", string(StoreMemory))),
		SQLitePath:         envString("SQLITE_PATH", "robobrain.db"),
		FileStoreDir:       envString("FILE_STORE_DIR", "robobrain-threads"),
		OracleProvider:     OracleProvider(envString("ORACLE_PROVIDER", string(OracleMock))),
		OracleAPIKey:       envString("ORACLE_API_KEY", ""),
		OracleModel:        envString("ORACLE_MODEL", ""),
		ExecutorBaseURL:    envString("EXECUTOR_BASE_URL", ""),
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
